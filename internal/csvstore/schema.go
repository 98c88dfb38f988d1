package csvstore

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSchemaMismatch reports a table that lacks one or more expected columns.
var ErrSchemaMismatch = errors.New("schema mismatch")

// Schema names the seven columns of an IMU sample row.
type Schema struct {
	Name  string
	Index string
	Accel [3]string
	Gyro  [3]string
}

// DefaultSchema is the column set written by current firmware.
var DefaultSchema = Schema{
	Name:  "default",
	Index: "sample_index",
	Accel: [3]string{"accel_x", "accel_y", "accel_z"},
	Gyro:  [3]string{"gyro_x", "gyro_y", "gyro_z"},
}

// LegacySchema is the localized column set of the original datalogger.
var LegacySchema = Schema{
	Name:  "legacy",
	Index: "numero_amostra",
	Accel: [3]string{"accel_x", "accel_y", "accel_z"},
	Gyro:  [3]string{"giro_x", "giro_y", "giro_z"},
}

var schemas = map[string]Schema{
	DefaultSchema.Name: DefaultSchema,
	LegacySchema.Name:  LegacySchema,
}

// SchemaByName looks up a schema preset. The empty name selects DefaultSchema.
func SchemaByName(name string) (Schema, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultSchema, nil
	}
	s, ok := schemas[name]
	if !ok {
		names := make([]string, 0, len(schemas))
		for n := range schemas {
			names = append(names, n)
		}
		sort.Strings(names)
		return Schema{}, fmt.Errorf("unknown schema %q: expected one of %s", name, strings.Join(names, ", "))
	}
	return s, nil
}

// Columns returns the expected columns in file order.
func (s Schema) Columns() []string {
	return []string{
		s.Index,
		s.Accel[0], s.Accel[1], s.Accel[2],
		s.Gyro[0], s.Gyro[1], s.Gyro[2],
	}
}

// HeaderLine is the literal header row the device emits for this schema.
func (s Schema) HeaderLine() string {
	return strings.Join(s.Columns(), ",")
}

// SchemaError lists the expected columns absent from a table header.
type SchemaError struct {
	Schema  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%v: %s schema requires missing columns %s",
		ErrSchemaMismatch, e.Schema, strings.Join(e.Missing, ", "))
}

// Is lets errors.Is(err, ErrSchemaMismatch) match a *SchemaError.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// Validate checks that every schema column is present in the table header.
// Column order and extra columns are ignored.
func (s Schema) Validate(t *Table) error {
	var missing []string
	for _, col := range s.Columns() {
		if t == nil || !t.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Schema: s.Name, Missing: missing}
	}
	return nil
}
