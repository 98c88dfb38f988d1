// Package pipeline wires capture, CSV persistence and rendering into the
// forward-only workflow run by the imucap command.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/banshee-data/imu.capture/internal/capture"
	"github.com/banshee-data/imu.capture/internal/config"
	"github.com/banshee-data/imu.capture/internal/csvstore"
	"github.com/banshee-data/imu.capture/internal/fsutil"
	"github.com/banshee-data/imu.capture/internal/imuplot"
	"github.com/banshee-data/imu.capture/internal/monitoring"
	"github.com/banshee-data/imu.capture/internal/serialport"
	"github.com/banshee-data/imu.capture/internal/timeutil"
)

var (
	// ErrNoData is returned when a capture accepted no lines. Nothing is
	// written in that case.
	ErrNoData = errors.New("no data captured")

	// ErrDeviceNotFound is returned when no port is configured and none is
	// detected, or the configured port does not exist.
	ErrDeviceNotFound = serialport.ErrDeviceNotFound
)

// HistoryStore records captured sessions.
type HistoryStore interface {
	RecordSession(s *capture.Session) error
}

type adminRouter interface {
	AttachAdminRoutes(mux *http.ServeMux) error
}

// Pipeline holds the explicit configuration and collaborators of each stage.
type Pipeline struct {
	Config *config.CaptureConfig
	Ports  serialport.PortFactory
	Lister serialport.PortLister
	FS     fsutil.FileSystem
	Clock  timeutil.Clock
	// History is optional; when set every persisted session is recorded.
	History HistoryStore
}

// New returns a pipeline using the real serial ports, filesystem and clock.
func New(cfg *config.CaptureConfig) *Pipeline {
	if cfg == nil {
		cfg = config.EmptyCaptureConfig()
	}
	return &Pipeline{
		Config: cfg,
		Ports:  serialport.RealPortFactory{},
		Lister: serialport.SystemPorts,
		FS:     fsutil.OSFileSystem{},
		Clock:  timeutil.RealClock{},
	}
}

// Rendered is the outcome of the rendering stage.
type Rendered struct {
	Path string
	Rows int
	// Skipped counts incomplete rows left out of the figures.
	Skipped   int
	Figures   []imuplot.Figure
	Summaries []csvstore.ColumnSummary
	// PNGs lists the written image files, if a plot directory is configured.
	PNGs []string
}

// Result is the outcome of a full run.
type Result struct {
	Session  *capture.Session
	Path     string
	Rendered *Rendered
}

// ResolvePort returns the configured port, or detects one when unset.
func (p *Pipeline) ResolvePort() (string, error) {
	if port := p.Config.GetPort(); port != "" {
		return port, nil
	}
	lister := p.Lister
	if lister == nil {
		lister = serialport.SystemPorts
	}
	port, err := serialport.FindPort(lister)
	if err != nil {
		return "", err
	}
	monitoring.Logf("auto-detected serial port %s", port)
	return port, nil
}

// Capture runs one capture session. An empty session is returned together
// with ErrNoData.
func (p *Pipeline) Capture(ctx context.Context) (*capture.Session, error) {
	port, err := p.ResolvePort()
	if err != nil {
		return nil, err
	}

	opts := capture.Options{
		Port:         port,
		Serial:       serialport.PortOptions{BaudRate: p.Config.GetBaudRate()},
		Timeout:      p.Config.GetCaptureTimeout(),
		PollInterval: p.Config.GetPollInterval(),
		Command:      p.Config.GetCommand(),
		Header:       p.Config.GetSchema().HeaderLine(),
	}
	session, err := capture.NewCapturer(p.Ports, p.Clock).Capture(ctx, opts)
	if err != nil {
		return session, err
	}
	if session.Empty() {
		return session, ErrNoData
	}
	return session, nil
}

// Persist writes the session's lines to the configured CSV path and records
// the session in the history store, if any. It returns the path written.
func (p *Pipeline) Persist(s *capture.Session) (string, error) {
	if s.Empty() {
		return "", ErrNoData
	}

	path := p.Config.GetOutputPath()
	if err := csvstore.WriteLines(p.FS, path, s.Lines); err != nil {
		return "", err
	}
	monitoring.Logf("saved %d lines to %s", len(s.Lines), path)

	if p.History != nil {
		if err := p.History.RecordSession(s); err != nil {
			return path, fmt.Errorf("failed to record session %s: %w", s.ID, err)
		}
	}
	return path, nil
}

// Render loads the CSV at path, logs column summaries and builds the figures.
// On a schema mismatch no figures are produced and the error matches
// csvstore.ErrSchemaMismatch.
func (p *Pipeline) Render(path string) (*Rendered, error) {
	table, err := csvstore.Load(p.FS, path)
	if err != nil {
		return nil, err
	}
	schema := p.Config.GetSchema()

	figs, err := imuplot.Build(table, schema)
	if err != nil {
		return nil, fmt.Errorf("cannot plot %s: %w", path, err)
	}

	out := &Rendered{Path: path, Rows: table.Rows(), Skipped: table.Skipped, Figures: figs}
	out.Summaries, err = csvstore.Summarize(table, schema.Columns()[1:])
	if err != nil {
		return nil, err
	}
	monitoring.Logf("loaded %d samples from %s", out.Rows, path)
	if out.Skipped > 0 {
		monitoring.Logf("skipped %d incomplete rows", out.Skipped)
	}
	for _, s := range out.Summaries {
		monitoring.Logf("  %s", s)
	}

	if dir := p.Config.GetPlotDir(); dir != "" {
		out.PNGs, err = imuplot.SavePNG(p.FS, dir, figs)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// Run executes capture, persistence and rendering in order. It stops at the
// first failing stage; an empty capture writes nothing.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	session, err := p.Capture(ctx)
	res := &Result{Session: session}
	if err != nil {
		return res, err
	}

	res.Path, err = p.Persist(session)
	if err != nil {
		return res, err
	}

	res.Rendered, err = p.Render(res.Path)
	return res, err
}

// Display serves the rendered figures on the configured listen address until
// ctx is cancelled. The history console is mounted when a store is set.
func (p *Pipeline) Display(ctx context.Context, r *Rendered) error {
	viewer := imuplot.NewViewer(p.Config.GetListen(), r.Figures)
	viewer.AssetsHost = p.Config.GetAssetsHost()
	monitoring.Logf("viewer page loads echarts from %s", viewer.AssetsHost)
	viewer.SetSummaries(r.Summaries)
	viewer.AttachAdminRoutes(viewer.Mux())

	if admin, ok := p.History.(adminRouter); ok {
		if err := admin.AttachAdminRoutes(viewer.Mux()); err != nil {
			return err
		}
	}
	return viewer.ListenAndServe(ctx)
}
