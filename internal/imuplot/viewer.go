package imuplot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/imu.capture/internal/csvstore"
	"github.com/banshee-data/imu.capture/internal/httputil"
	"github.com/banshee-data/imu.capture/internal/monitoring"
)

// DefaultShutdownTimeout bounds graceful shutdown once the viewer is dismissed.
const DefaultShutdownTimeout = time.Second

// Viewer serves the rendered figures over HTTP until its context is
// cancelled. It is the interactive stand-in for a desktop plot window.
type Viewer struct {
	Addr            string
	ShutdownTimeout time.Duration
	// AssetsHost is the URL prefix the page loads echarts.min.js from.
	AssetsHost string

	figs      []Figure
	summaries []csvstore.ColumnSummary
	mux       *http.ServeMux
}

// NewViewer returns a viewer for figs listening on addr.
func NewViewer(addr string, figs []Figure) *Viewer {
	v := &Viewer{
		Addr:            addr,
		ShutdownTimeout: DefaultShutdownTimeout,
		figs:            figs,
		mux:             http.NewServeMux(),
	}
	v.mux.HandleFunc("/", v.handleIndex)
	v.mux.HandleFunc("/plots/", v.handlePNG)
	return v
}

// SetSummaries attaches column summaries shown on the debug page.
func (v *Viewer) SetSummaries(s []csvstore.ColumnSummary) {
	v.summaries = s
}

// Mux exposes the viewer's mux so other components can mount routes.
func (v *Viewer) Mux() *http.ServeMux {
	return v.mux
}

// Handler returns the viewer's HTTP handler.
func (v *Viewer) Handler() http.Handler {
	return v.mux
}

func (v *Viewer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}

	var buf bytes.Buffer
	if err := WriteHTML(&buf, v.figs, v.AssetsHost); err != nil {
		http.Error(w, fmt.Sprintf("Failed to render figures: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (v *Viewer) handlePNG(w http.ResponseWriter, r *http.Request) {
	slug, ok := strings.CutSuffix(strings.TrimPrefix(r.URL.Path, "/plots/"), ".png")
	if !ok {
		http.NotFound(w, r)
		return
	}
	for _, fig := range v.figs {
		if fig.Slug != slug {
			continue
		}
		p, err := fig.Plot()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to plot %s: %v", slug, err), http.StatusInternalServerError)
			return
		}
		wt, err := p.WriterTo(PNGWidth, PNGHeight, "png")
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to render %s: %v", slug, err), http.StatusInternalServerError)
			return
		}
		var buf bytes.Buffer
		if _, err := wt.WriteTo(&buf); err != nil {
			http.Error(w, fmt.Sprintf("Failed to render %s: %v", slug, err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(buf.Bytes())
		return
	}
	http.NotFound(w, r)
}

// AttachAdminRoutes mounts the figure summary on the tsweb debug page.
func (v *Viewer) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.KV("Figures", len(v.figs))
	for _, fig := range v.figs {
		debug.URL("/plots/"+fig.Slug+".png", fmt.Sprintf("%s (%d samples)", fig.Title, fig.Points()))
	}

	debug.HandleFunc("columns", "Column summaries of the loaded capture", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if len(v.summaries) == 0 {
			io.WriteString(w, "no summaries\n")
			return
		}
		for _, s := range v.summaries {
			fmt.Fprintln(w, s.String())
		}
	})
}

// ListenAndServe listens on v.Addr and serves until ctx is cancelled.
func (v *Viewer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", v.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", v.Addr, err)
	}
	return v.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// It returns nil after a requested shutdown.
func (v *Viewer) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{Handler: v.mux}

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(ln)
	}()
	monitoring.Logf("serving %d figures at http://%s/ (Ctrl+C to close)", len(v.figs), ln.Addr())

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("viewer stopped: %w", err)
	case <-ctx.Done():
	}

	timeout := v.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("viewer shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("viewer force close error: %v", err)
		}
	}
	monitoring.Logf("viewer closed")
	return nil
}
