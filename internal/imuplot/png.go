package imuplot

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/imu.capture/internal/fsutil"
	"github.com/banshee-data/imu.capture/internal/monitoring"
)

// Default PNG size.
const (
	PNGWidth  = 12 * vg.Inch
	PNGHeight = 5 * vg.Inch
)

// SavePNG writes one <slug>.png per figure into dir and returns the paths.
func SavePNG(fsys fsutil.FileSystem, dir string, figs []Figure) ([]string, error) {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plot dir: %w", err)
	}

	paths := make([]string, 0, len(figs))
	for _, fig := range figs {
		path := filepath.Join(dir, fig.Slug+".png")
		if err := savePNG(fsys, path, fig); err != nil {
			return paths, err
		}
		monitoring.Logf("wrote %s (%d samples)", path, fig.Points())
		paths = append(paths, path)
	}
	return paths, nil
}

func savePNG(fsys fsutil.FileSystem, path string, fig Figure) error {
	p, err := fig.Plot()
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(PNGWidth, PNGHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", fig.Slug, err)
	}

	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
