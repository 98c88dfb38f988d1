package csvstore

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/imu.capture/internal/fsutil"
	"github.com/banshee-data/imu.capture/internal/monitoring"
)

// ErrEmptyFile is returned when a CSV file has no header row.
var ErrEmptyFile = errors.New("csv file is empty")

// Table is a rectangular numeric table keyed by header names.
type Table struct {
	Header []string
	// Skipped counts incomplete rows left out of the table.
	Skipped int
	index   map[string]int
	// data is nil when the table has no rows.
	data *mat.Dense
}

// Load reads path and parses it into a Table. The first row is the header;
// every following row must have at most as many fields as the header.
func Load(fsys fsutil.FileSystem, path string) (*Table, error) {
	raw, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	t, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return t, nil
}

// Parse reads CSV records from r into a Table. Rows with fewer fields than
// the header or with empty cells, such as a row cut off when a capture
// stops mid-dump, are skipped and counted in Table.Skipped. Rows with extra
// fields and non-numeric cells are errors.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	header := make([]string, len(records[0]))
	index := make(map[string]int, len(header))
	for i, name := range records[0] {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		header[i] = name
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	t := &Table{Header: header, index: index}
	rows := records[1:]
	if len(rows) == 0 {
		return t, nil
	}

	values := make([]float64, 0, len(rows)*len(header))
	kept := 0
	for r, rec := range rows {
		if len(rec) > len(header) {
			return nil, fmt.Errorf("line %d: %d fields, header has %d", r+2, len(rec), len(header))
		}
		if incomplete(rec, len(header)) {
			monitoring.Logf("skipping incomplete row on line %d: %q", r+2, strings.Join(rec, ","))
			t.Skipped++
			continue
		}
		for c, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				// r+2: one for the header, one for 1-based line numbers
				return nil, fmt.Errorf("line %d column %q: %w", r+2, header[c], err)
			}
			values = append(values, v)
		}
		kept++
	}
	if kept > 0 {
		t.data = mat.NewDense(kept, len(header), values)
	}
	return t, nil
}

func incomplete(rec []string, width int) bool {
	if len(rec) < width {
		return true
	}
	for _, field := range rec {
		if strings.TrimSpace(field) == "" {
			return true
		}
	}
	return false
}

// Rows returns the number of data rows, excluding the header.
func (t *Table) Rows() int {
	if t.data == nil {
		return 0
	}
	r, _ := t.data.Dims()
	return r
}

// Has reports whether the header contains name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns a copy of the named column's values.
func (t *Table) Column(name string) ([]float64, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("no column %q", name)
	}
	if t.data == nil {
		return []float64{}, nil
	}
	return mat.Col(nil, i, t.data), nil
}

// Matrix exposes the underlying data, or nil for an empty table.
func (t *Table) Matrix() mat.Matrix {
	if t.data == nil {
		return nil
	}
	return t.data
}
