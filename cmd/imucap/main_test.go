package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/imu.capture/internal/db"
)

const sampleCSV = "sample_index,accel_x,accel_y,accel_z,gyro_x,gyro_y,gyro_z\n" +
	"1,0.01,0.02,0.98,1,2,3\n" +
	"2,0.02,0.01,0.99,2,3,1\n"

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	assert.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(out, "imucap "), out)
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", []string{"frobnicate"}},
		{"unknown flag", []string{"run", "-no-such-flag"}},
		{"bad baud", []string{"capture", "-baud", "0", "-env", ""}},
		{"bad timeout", []string{"capture", "-timeout", "soon", "-env", ""}},
		{"bad schema", []string{"plot", "-schema", "metric", "-env", ""}},
		{"extra args", []string{"capture", "-env", "", "surplus"}},
		{"history without db", []string{"history", "-env", ""}},
		{"export without id", []string{"export", "-env", "", "-db", "x.db"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			assert.Equal(t, exitUsage, code)
		})
	}
}

func TestHelp(t *testing.T) {
	code, out, _ := runCLI(t, "help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "Usage: imucap")
	assert.Contains(t, out, "-assets-host")

	code, _, _ = runCLI(t, "run", "-h")
	assert.Equal(t, exitOK, code)
}

func TestPlot_NoDisplay(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "imu_data.csv")
	writeFile(t, csvPath, sampleCSV)

	code, out, errOut := runCLI(t, "plot", "-env", "", "-no-display", "-plot-dir", filepath.Join(dir, "plots"), csvPath)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "built 2 figures from 2 samples")
	assert.FileExists(t, filepath.Join(dir, "plots", "accelerometer.png"))
	assert.FileExists(t, filepath.Join(dir, "plots", "gyroscope.png"))
}

func TestPlot_SchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "imu_data.csv")
	writeFile(t, csvPath, "sample_index,accel_x,accel_y,accel_z\n1,0,0,1\n")

	code, out, errOut := runCLI(t, "plot", "-env", "", "-no-display", "-plot-dir", filepath.Join(dir, "plots"), csvPath)
	assert.Equal(t, exitSchemaMismatch, code)
	assert.Contains(t, errOut, "gyro_x")
	assert.NotContains(t, out, "built")
	assert.NoFileExists(t, filepath.Join(dir, "plots", "accelerometer.png"))
}

func TestPlot_MissingFile(t *testing.T) {
	code, _, _ := runCLI(t, "plot", "-env", "", "-no-display", filepath.Join(t.TempDir(), "none.csv"))
	assert.Equal(t, exitFailure, code)
}

func TestRun_DevFixtureWithHistory(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "ArquivosDados", "imu_data.csv")
	dbPath := filepath.Join(dir, "history.db")

	code, stdout, errOut := runCLI(t, "run", "-env", "", "-dev", "testdata/dump.txt",
		"-timeout", "300ms", "-poll", "10ms", "-output", out, "-db", dbPath, "-no-display")
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, stdout, "saved 4 lines")
	assert.Contains(t, stdout, "built 2 figures from 3 samples")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "sample_index,accel_x,accel_y,accel_z,gyro_x,gyro_y,gyro_z", lines[0])
	assert.True(t, strings.HasPrefix(lines[3], "3,"))

	code, stdout, errOut = runCLI(t, "history", "-env", "", "-db", dbPath)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, stdout, "4 lines")

	store, err := db.OpenDB(dbPath)
	require.NoError(t, err)
	sessions, err := store.Sessions(1)
	store.Close()
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	exported := filepath.Join(dir, "export.csv")
	code, stdout, errOut = runCLI(t, "export", "-env", "", "-db", dbPath, "-output", exported, sessions[0].ID)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, stdout, "exported 4 lines")

	again, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestRun_NoDataWritesNothing(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "imu_data.csv")

	code, _, errOut := runCLI(t, "run", "-env", "", "-dev", "testdata/silent.txt",
		"-timeout", "50ms", "-poll", "10ms", "-output", out, "-no-display")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "no data")
	assert.NoFileExists(t, out)
}

func TestCapture_EnvFileOverrides(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "from-env.csv")
	envPath := filepath.Join(dir, ".env")
	writeFile(t, envPath, "IMUCAP_OUTPUT_PATH="+out+"\nIMUCAP_CAPTURE_TIMEOUT=200ms\nIMUCAP_POLL_INTERVAL=10ms\n")

	code, stdout, errOut := runCLI(t, "capture", "-env", envPath, "-dev", "testdata/dump.txt")
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, stdout, out)
	assert.FileExists(t, out)
}

func TestCapture_FlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "imucap.json")
	fromFile := filepath.Join(dir, "from-file.csv")
	fromFlag := filepath.Join(dir, "from-flag.csv")
	writeFile(t, cfgPath, `{"output_path": "`+fromFile+`", "capture_timeout": "200ms", "poll_interval": "10ms"}`)

	code, _, errOut := runCLI(t, "capture", "-env", "", "-config", cfgPath, "-dev", "testdata/dump.txt", "-output", fromFlag)
	require.Equal(t, exitOK, code, errOut)
	assert.FileExists(t, fromFlag)
	assert.NoFileExists(t, fromFile)
}

func TestExport_UnknownSession(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	code, _, errOut := runCLI(t, "export", "-env", "", "-db", dbPath, "no-such-id")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, errOut, "session not found")
}

func TestListPorts(t *testing.T) {
	var buf bytes.Buffer
	err := listPorts(func() ([]string, error) {
		return []string{"/dev/ttyS0", "/dev/ttyACM0"}, nil
	}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "  /dev/ttyS0\n* /dev/ttyACM0\n", buf.String())

	buf.Reset()
	require.NoError(t, listPorts(func() ([]string, error) { return nil, nil }, &buf))
	assert.Equal(t, "no serial ports found\n", buf.String())
}
