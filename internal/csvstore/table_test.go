package csvstore

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/imu.capture/internal/fsutil"
	"github.com/banshee-data/imu.capture/internal/testutil"
)

const header = "sample_index,accel_x,accel_y,accel_z,gyro_x,gyro_y,gyro_z"

func TestParse_SingleRow(t *testing.T) {
	tbl, err := Parse(strings.NewReader(header + "\n1,0.1,0.2,0.3,0.4,0.5,0.6\n"))
	require.NoError(t, err)

	assert.Equal(t, 1, tbl.Rows())
	assert.Equal(t, DefaultSchema.Columns(), tbl.Header)

	gz, err := tbl.Column("gyro_z")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.6}, gz)
}

func TestParse_HeaderOnly(t *testing.T) {
	tbl, err := Parse(strings.NewReader(header + "\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Rows())
	assert.Nil(t, tbl.Matrix())

	col, err := tbl.Column("accel_x")
	require.NoError(t, err)
	assert.Empty(t, col)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestParse_TrimsHeaderNames(t *testing.T) {
	tbl, err := Parse(strings.NewReader("\ufeffsample_index, accel_x\r\n1, 2\r\n"))
	require.NoError(t, err)
	assert.True(t, tbl.Has("sample_index"))
	assert.True(t, tbl.Has("accel_x"))
	col, _ := tbl.Column("accel_x")
	assert.Equal(t, []float64{2}, col)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"non-numeric cell", header + "\n1,0.1,abc,0.3,0.4,0.5,0.6\n"},
		{"long row", header + "\n1,0.1,0.2,0.3,0.4,0.5,0.6,0.7\n"},
		{"unterminated quote", header + "\n1,\"0.1,0.2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.input)); err == nil {
				t.Error("Parse() error = nil, want error")
			}
		})
	}
}

func TestParse_SkipsIncompleteRows(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		rows    int
		skipped int
	}{
		{"cut off final row", header + "\n1,0,0,1,0,0,0\n2,0,0,1,0,0,0\n3,0.01\n", 2, 1},
		{"empty cell", header + "\n1,0,0,1,0,0,0\n2,0,,1,0,0,0\n", 1, 1},
		{"trailing comma", header + "\n1,0,0,1,0,0,\n", 0, 1},
		{"complete rows", header + "\n1,0,0,1,0,0,0\n", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.QuietLogs(t)
			tbl, err := Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.rows, tbl.Rows())
			assert.Equal(t, tt.skipped, tbl.Skipped)
		})
	}
}

func TestParse_IncompleteRowKeepsOrder(t *testing.T) {
	testutil.QuietLogs(t)
	tbl, err := Parse(strings.NewReader(header + "\n1,0,0,1,0,0,0\n2,0.5\n3,0,0,1,0,0,0\n"))
	require.NoError(t, err)
	idx, err := tbl.Column("sample_index")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, idx)
}

func TestParse_ErrorNamesLineAndColumn(t *testing.T) {
	_, err := Parse(strings.NewReader(header + "\n1,0,0,0,0,0,0\n2,0,0,oops,0,0,0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), `"accel_z"`)
}

func TestColumn_Unknown(t *testing.T) {
	tbl, err := Parse(strings.NewReader(header + "\n1,0,0,0,0,0,0\n"))
	require.NoError(t, err)
	_, err = tbl.Column("mag_x")
	assert.Error(t, err)
}

func TestRoundTrip_WriteThenLoad(t *testing.T) {
	for _, n := range []int{0, 1, 5, 250} {
		t.Run(fmt.Sprintf("rows=%d", n), func(t *testing.T) {
			lines := []string{header}
			for i := 1; i <= n; i++ {
				lines = append(lines, fmt.Sprintf("%d,%.4f,0.2,0.3,0.4,0.5,0.6", i, float64(i)/10))
			}

			m := fsutil.NewMemoryFileSystem()
			require.NoError(t, WriteLines(m, "imu.csv", lines))

			tbl, err := Load(m, "imu.csv")
			require.NoError(t, err)
			assert.Equal(t, n, tbl.Rows())

			idx, err := tbl.Column("sample_index")
			require.NoError(t, err)
			want := make([]float64, n)
			for i := range want {
				want[i] = float64(i + 1)
			}
			if diff := cmp.Diff(want, idx); diff != "" {
				t.Errorf("sample_index mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(fsutil.NewMemoryFileSystem(), "missing.csv")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load() error = %v, want fs.ErrNotExist", err)
	}
}
