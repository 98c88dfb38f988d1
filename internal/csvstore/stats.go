package csvstore

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ColumnSummary describes the spread of one column.
type ColumnSummary struct {
	Name   string
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

func (s ColumnSummary) String() string {
	return fmt.Sprintf("%s: n=%d min=%.4f max=%.4f mean=%.4f sd=%.4f",
		s.Name, s.Count, s.Min, s.Max, s.Mean, s.StdDev)
}

// Summarize computes a ColumnSummary for each named column. Columns with no
// rows are reported with a zero count and zero statistics.
func Summarize(t *Table, columns []string) ([]ColumnSummary, error) {
	out := make([]ColumnSummary, 0, len(columns))
	for _, name := range columns {
		values, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		s := ColumnSummary{Name: name, Count: len(values)}
		if len(values) > 0 {
			s.Min = floats.Min(values)
			s.Max = floats.Max(values)
			if len(values) > 1 {
				s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
			} else {
				s.Mean = values[0]
			}
		}
		out = append(out, s)
	}
	return out, nil
}
