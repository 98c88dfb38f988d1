// Command imucap captures IMU samples from a serial datalogger, saves them
// as CSV and shows accelerometer and gyroscope plots.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/imu.capture/internal/config"
	"github.com/banshee-data/imu.capture/internal/csvstore"
	"github.com/banshee-data/imu.capture/internal/db"
	"github.com/banshee-data/imu.capture/internal/fsutil"
	"github.com/banshee-data/imu.capture/internal/monitoring"
	"github.com/banshee-data/imu.capture/internal/pipeline"
	"github.com/banshee-data/imu.capture/internal/serialport"
	"github.com/banshee-data/imu.capture/internal/version"
)

// Exit codes.
const (
	exitOK             = 0
	exitFailure        = 1
	exitUsage          = 2
	exitSchemaMismatch = 3
)

// errUsage marks command-line mistakes.
var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one imucap invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	logger := log.New(stderr, "", log.LstdFlags)
	original := monitoring.Logf
	monitoring.SetLogger(logger.Printf)
	defer func() { monitoring.Logf = original }()

	command := "run"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	var err error
	switch command {
	case "run":
		err = cmdRun(ctx, args, stdout, stderr)
	case "capture":
		err = cmdCapture(ctx, args, stdout, stderr)
	case "plot":
		err = cmdPlot(ctx, args, stdout, stderr)
	case "ports":
		err = cmdPorts(args, stdout, stderr)
	case "history":
		err = cmdHistory(args, stdout, stderr)
	case "export":
		err = cmdExport(args, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version.String())
	case "help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return exitUsage
	}

	return exitCode(logger, err)
}

func exitCode(logger *log.Logger, err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		logger.Printf("%v", err)
		return exitUsage
	case errors.Is(err, csvstore.ErrSchemaMismatch):
		logger.Printf("❌ %v", err)
		return exitSchemaMismatch
	case errors.Is(err, pipeline.ErrNoData):
		logger.Printf("⚠️  no data received from the device; nothing was saved")
		return exitFailure
	default:
		logger.Printf("❌ %v", err)
		return exitFailure
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `imucap - capture and plot IMU samples from a serial datalogger

Usage: imucap [command] [flags]

Commands:
  run             Capture, save the CSV and show the plots (default)
  capture         Capture and save the CSV only
  plot [path]     Plot an existing CSV (defaults to -output)
  ports           List serial ports and the one auto-detection would pick
  history         List recorded capture sessions (requires -db)
  export <id>     Write a recorded session back to -output (requires -db)
  version         Show version information
  help            Show this help message

The plot viewer page loads echarts from a public CDN. On an offline machine
set -assets-host (or IMUCAP_ASSETS_HOST) to a local copy of echarts.min.js.

Run "imucap <command> -h" for the flags of a command.
`)
}

// options mirrors every configuration field plus the CLI-only switches.
type options struct {
	configPath string
	envPath    string
	dev        string
	noDisplay  bool
	limit      int

	port     string
	baud     int
	timeout  string
	poll     string
	command  string
	output   string
	schema   string
	plotDir  string
	listen   string
	assets   string
	dbPath   string
	setFlags map[string]bool
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *options) {
	o := &options{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.configPath, "config", "", "JSON config file")
	fs.StringVar(&o.envPath, "env", ".env", "dotenv file with IMUCAP_* overrides (optional)")
	fs.StringVar(&o.dev, "dev", "", "replay this fixture file instead of opening a serial device")
	fs.BoolVar(&o.noDisplay, "no-display", false, "produce the figures without serving them")
	fs.IntVar(&o.limit, "limit", 20, "number of sessions listed by history")

	fs.StringVar(&o.port, "port", "", "serial port (auto-detect when empty)")
	fs.IntVar(&o.baud, "baud", config.DefaultBaudRate, "baud rate")
	fs.StringVar(&o.timeout, "timeout", config.DefaultCaptureTimeout.String(), "total capture duration")
	fs.StringVar(&o.poll, "poll", config.DefaultPollInterval.String(), "serial read poll interval")
	fs.StringVar(&o.command, "command", config.DefaultCommand, "trigger command sent to the device")
	fs.StringVar(&o.output, "output", config.DefaultOutputPath, "CSV output path")
	fs.StringVar(&o.schema, "schema", config.DefaultSchema, "column schema preset (default, legacy)")
	fs.StringVar(&o.plotDir, "plot-dir", "", "also write PNG figures to this directory")
	fs.StringVar(&o.listen, "listen", config.DefaultListen, "plot viewer listen address")
	fs.StringVar(&o.assets, "assets-host", config.DefaultAssetsHost, "URL prefix the viewer loads echarts.min.js from")
	fs.StringVar(&o.dbPath, "db", "", "SQLite capture history (disabled when empty)")
	return fs, o
}

func parseFlags(name string, args []string, stderr io.Writer) (*options, []string, error) {
	fs, o := newFlagSet(name, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	o.setFlags = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.setFlags[f.Name] = true })
	return o, fs.Args(), nil
}

// loadConfig layers the JSON file, the environment and explicit flags, in
// that order of increasing precedence.
func (o *options) loadConfig() (*config.CaptureConfig, error) {
	cfg := config.EmptyCaptureConfig()

	if o.configPath != "" {
		fileCfg, err := config.LoadCaptureConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg.Merge(fileCfg)
	}

	env, err := config.LoadEnv(o.envPath)
	if err != nil {
		return nil, err
	}
	envCfg, err := config.FromEnv(env)
	if err != nil {
		return nil, err
	}
	cfg.Merge(envCfg)

	flagCfg := config.EmptyCaptureConfig()
	str := func(name, v string) *string {
		if o.setFlags[name] {
			return &v
		}
		return nil
	}
	flagCfg.Port = str("port", o.port)
	flagCfg.CaptureTimeout = str("timeout", o.timeout)
	flagCfg.PollInterval = str("poll", o.poll)
	flagCfg.Command = str("command", o.command)
	flagCfg.OutputPath = str("output", o.output)
	flagCfg.Schema = str("schema", o.schema)
	flagCfg.PlotDir = str("plot-dir", o.plotDir)
	flagCfg.Listen = str("listen", o.listen)
	flagCfg.AssetsHost = str("assets-host", o.assets)
	flagCfg.DBPath = str("db", o.dbPath)
	if o.setFlags["baud"] {
		baud := o.baud
		flagCfg.BaudRate = &baud
	}
	cfg.Merge(flagCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	return cfg, nil
}

// newPipeline builds the pipeline for o. The returned cleanup closes the
// history database, if one was opened.
func (o *options) newPipeline() (*pipeline.Pipeline, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	p := pipeline.New(cfg)
	if o.dev != "" {
		monitoring.Logf("dev mode: replaying %s", o.dev)
		p.Ports = serialport.FixturePortFactory(o.dev)
		if cfg.GetPort() == "" {
			fixture := "fixture:" + o.dev
			cfg.Port = &fixture
		}
	}

	cleanup := func() {}
	if path := cfg.GetDBPath(); path != "" {
		store, err := db.OpenDB(path)
		if err != nil {
			return nil, nil, err
		}
		p.History = store
		cleanup = func() { store.Close() }
	}
	return p, cleanup, nil
}

func cmdRun(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, rest, err := parseFlags("run", args, stderr)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, rest)
	}
	p, cleanup, err := o.newPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := p.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✅ saved %d lines to %s\n", len(res.Session.Lines), res.Path)
	return show(ctx, p, res.Rendered, o.noDisplay, stdout)
}

func cmdCapture(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, rest, err := parseFlags("capture", args, stderr)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, rest)
	}
	p, cleanup, err := o.newPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	session, err := p.Capture(ctx)
	if err != nil {
		return err
	}
	path, err := p.Persist(session)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✅ saved %d lines to %s (session %s)\n", len(session.Lines), path, session.ID)
	return nil
}

func cmdPlot(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, rest, err := parseFlags("plot", args, stderr)
	if err != nil {
		return err
	}
	if len(rest) > 1 {
		return fmt.Errorf("%w: plot takes at most one path", errUsage)
	}
	p, cleanup, err := o.newPipeline()
	if err != nil {
		return err
	}
	defer cleanup()

	path := p.Config.GetOutputPath()
	if len(rest) == 1 {
		path = rest[0]
	}
	rendered, err := p.Render(path)
	if err != nil {
		return err
	}
	return show(ctx, p, rendered, o.noDisplay, stdout)
}

func show(ctx context.Context, p *pipeline.Pipeline, r *pipeline.Rendered, noDisplay bool, stdout io.Writer) error {
	for _, png := range r.PNGs {
		fmt.Fprintf(stdout, "🖼  %s\n", png)
	}
	if noDisplay {
		fmt.Fprintf(stdout, "built %d figures from %d samples\n", len(r.Figures), r.Rows)
		return nil
	}
	return p.Display(ctx, r)
}

func cmdPorts(args []string, stdout, stderr io.Writer) error {
	if _, rest, err := parseFlags("ports", args, stderr); err != nil {
		return err
	} else if len(rest) > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, rest)
	}
	return listPorts(serialport.SystemPorts, stdout)
}

func listPorts(lister serialport.PortLister, stdout io.Writer) error {
	ports, err := lister()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		fmt.Fprintln(stdout, "no serial ports found")
		return nil
	}
	preferred, _ := serialport.FindPort(func() ([]string, error) { return ports, nil })
	for _, p := range ports {
		marker := " "
		if p == preferred {
			marker = "*"
		}
		fmt.Fprintf(stdout, "%s %s\n", marker, p)
	}
	return nil
}

func openHistory(o *options) (*db.DB, *config.CaptureConfig, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	path := cfg.GetDBPath()
	if path == "" {
		return nil, nil, fmt.Errorf("%w: history requires -db or IMUCAP_DB_PATH", errUsage)
	}
	store, err := db.OpenDB(path)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func cmdHistory(args []string, stdout, stderr io.Writer) error {
	o, rest, err := parseFlags("history", args, stderr)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", errUsage, rest)
	}
	store, _, err := openHistory(o)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.Sessions(o.limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(stdout, "no recorded sessions")
		return nil
	}
	for i := range sessions {
		fmt.Fprintln(stdout, sessions[i].String())
	}
	return nil
}

func cmdExport(args []string, stdout, stderr io.Writer) error {
	o, rest, err := parseFlags("export", args, stderr)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("%w: export takes exactly one session ID", errUsage)
	}
	store, cfg, err := openHistory(o)
	if err != nil {
		return err
	}
	defer store.Close()

	lines, err := store.SessionLines(rest[0])
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return pipeline.ErrNoData
	}

	path := cfg.GetOutputPath()
	if err := csvstore.WriteLines(fsutil.OSFileSystem{}, path, lines); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✅ exported %d lines to %s\n", len(lines), path)
	return nil
}
