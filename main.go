package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"
	"github.com/tcnksm/go-latest"
	"go.uber.org/zap"

	"lazytree/internal/archive"
	"lazytree/internal/config"
	"lazytree/internal/explorer"
	"lazytree/internal/logging"
	"lazytree/internal/model"
	"lazytree/internal/report"
	"lazytree/internal/tui"
	"lazytree/internal/watch"
	"lazytree/internal/web"
)

func checkUpdate(currentVer string) {
	githubTag := &latest.GithubTag{
		Owner:      "lazytree",
		Repository: "lazytree",
	}

	res, err := latest.Check(githubTag, currentVer)
	if err != nil {
		return // Silently fail
	}

	if res.Outdated {
		fmt.Printf("\n✨ A new version is available: %s (you have %s)\n", res.Current, currentVer)
		fmt.Println("👉 Download it from https://github.com/lazytree/lazytree/releases")
	} else if pflag.Lookup("update").Changed {
		fmt.Printf("✅ You are using the latest version: %s\n", currentVer)
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses flags and runs one mode. Deferred cleanup has finished by the
// time it returns.
func run() error {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lazytree [options] [path...]\n\n")
		fmt.Fprintf(os.Stderr, "lazytree shows directories as a lazily loaded, filterable tree.\n")
		fmt.Fprintf(os.Stderr, "Archives can be extracted in place and browsed like directories.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lazytree                    # Start TUI mode with the volume roots\n")
		fmt.Fprintf(os.Stderr, "  lazytree ~/src /var/log     # Start TUI mode with two directories\n")
		fmt.Fprintf(os.Stderr, "  lazytree -r -d 3 .          # Print a report three levels deep\n")
		fmt.Fprintf(os.Stderr, "  lazytree --json . > t.json  # Output the tree as JSON\n")
		fmt.Fprintf(os.Stderr, "  lazytree -x logs.zip        # Extract an archive with a progress bar\n")
	}

	jsonFlag := pflag.BoolP("json", "j", false, "Output the tree as JSON")
	reportFlag := pflag.BoolP("report", "r", false, "Print a text report of the tree (CLI mode)")
	outputFlag := pflag.StringP("output", "o", "", "Save report or JSON to the specified file")
	verboseFlag := pflag.BoolP("verbose", "v", false, "Include hidden and filtered entries in the report")
	depthFlag := pflag.IntP("depth", "d", 0, "Levels to build eagerly (0 uses the configured depth)")
	filterFlag := pflag.StringP("filter", "f", "", "Custom extension filter, e.g. \"txt; log\" or \"*; bak\"")
	extractFlag := pflag.StringP("extract", "x", "", "Extract an archive and print the destination")
	webFlag := pflag.BoolP("web", "w", false, "Start Web Mode")
	addrFlag := pflag.String("addr", "", "Web Mode listen address (default from config)")
	configFlag := pflag.StringP("config", "c", "", "Config file (default ~/.config/lazytree/config.yaml)")
	noVolumesFlag := pflag.Bool("no-volumes", false, "Do not show volume roots")
	noWatchFlag := pflag.Bool("no-watch", false, "Do not refresh expanded directories on change")
	debugFlag := pflag.Bool("debug", false, "Log at debug level")
	versionFlag := pflag.BoolP("version", "V", false, "Print version information")
	updateFlag := pflag.BoolP("update", "u", false, "Check for latest version")
	helpFlag := pflag.BoolP("help", "h", false, "Show this help message")
	pflag.Parse()

	if *helpFlag {
		pflag.Usage()
		return nil
	}

	if *versionFlag {
		fmt.Printf("lazytree version %s\n", model.Version)
		return nil
	}

	if *updateFlag {
		checkUpdate(model.Version)
		return nil
	}

	// Optional .env next to the working directory
	_ = godotenv.Load()

	cfg, err := config.LoadFrom(*configFlag)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *depthFlag > 0 {
		cfg.Tree.PreloadDepth = *depthFlag
	}
	if *filterFlag != "" {
		cfg.Filter.Custom = true
		cfg.Filter.CustomList = *filterFlag
	}
	if *noVolumesFlag {
		cfg.Tree.LoadVolumeRoots = false
	}
	if *noWatchFlag {
		cfg.Tree.Watch = false
	}
	if *addrFlag != "" {
		cfg.Web.Addr = *addrFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	tuiMode := !*webFlag && !*reportFlag && !*jsonFlag && *extractFlag == ""
	if err := initLogging(cfg, tuiMode); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logging.Sync()
	if *debugFlag {
		logging.SetLevel("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *extractFlag != "":
		return runExtractMode(ctx, cfg, *extractFlag)
	case *webFlag:
		return runWebMode(ctx, cfg, pflag.Args())
	case *reportFlag, *jsonFlag:
		return runReportMode(ctx, cfg, pathsOrCwd(pflag.Args()), *jsonFlag, *outputFlag, *verboseFlag)
	default:
		return runTuiMode(ctx, cfg, pflag.Args(), *configFlag)
	}
}

// initLogging sends logs to the configured file, or discards them in TUI mode
// when there is none since the TUI owns the terminal.
func initLogging(cfg *config.Config, tuiMode bool) error {
	output := cfg.Log.File
	if output == "" {
		if tuiMode {
			logging.InitNop()
			return nil
		}
		output = "stderr"
	} else if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	return logging.Init(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputPath: output,
	})
}

func pathsOrCwd(args []string) []string {
	if len(args) > 0 {
		return args
	}
	return []string{"."}
}

func newExplorer(cfg *config.Config) *explorer.Explorer {
	log := logging.L()
	return explorer.New(explorer.Options{
		Extractor:             archive.NewArchives(cfg.Archive.TempDir, log),
		Logger:                log,
		PreloadDepth:          cfg.Tree.PreloadDepth,
		Filter:                cfg.Filter,
		ReplaceOnAdd:          cfg.Tree.ReplaceOnAdd,
		DeleteExtractedOnExit: cfg.Archive.DeleteExtractedOnExit,
	})
}

// follow refreshes expanded directories as they change, when enabled.
func follow(ctx context.Context, cfg *config.Config, e *explorer.Explorer) func() {
	if !cfg.Tree.Watch {
		return func() {}
	}
	w, err := watch.New(logging.L())
	if err != nil {
		logging.L().Warn("watching disabled", zap.Error(err))
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		watch.Follow(ctx, e, w)
	}()
	return func() {
		cancel()
		<-done
		_ = w.Close()
	}
}

func runReportMode(ctx context.Context, cfg *config.Config, paths []string, asJSON bool, outputFile string, verbose bool) error {
	e := newExplorer(cfg)
	defer e.Close()

	if err := e.AddPaths(ctx, paths, true); err != nil {
		return fmt.Errorf("building tree: %w", err)
	}
	snap := e.Snapshot()
	if len(snap.Children) == 0 {
		return fmt.Errorf("no such path: %v", paths)
	}

	out := os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("writing report to %s: %w", outputFile, err)
		}
		defer f.Close()
		out = f
	}

	if asJSON {
		if err := report.WriteJSON(out, snap); err != nil {
			return fmt.Errorf("encoding tree: %w", err)
		}
	} else {
		text := report.Generate(snap, report.Options{
			Color:   outputFile == "" && !color.NoColor,
			Verbose: verbose,
		})
		if _, err := fmt.Fprint(out, text); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
	}
	if outputFile != "" {
		fmt.Printf("Report saved to %s\n", outputFile)
	}
	return nil
}

func runExtractMode(ctx context.Context, cfg *config.Config, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	bar := progressbar.DefaultBytes(info.Size(), "extracting "+filepath.Base(path))
	a := archive.NewArchives(cfg.Archive.TempDir, logging.L())
	dest, err := a.Extract(ctx, path, func(p archive.Progress) {
		_ = bar.Set64(p.BytesRead)
	})
	_ = bar.Finish()
	if err != nil {
		if errors.Is(err, archive.ErrUnsupportedFormat) {
			return fmt.Errorf("%s is not a supported archive", path)
		}
		return fmt.Errorf("extracting %s: %w", path, err)
	}
	fmt.Println(color.GreenString("Extracted to %s", dest))
	return nil
}

func runWebMode(ctx context.Context, cfg *config.Config, paths []string) error {
	e := newExplorer(cfg)
	defer e.Close()

	if cfg.Tree.LoadVolumeRoots {
		if err := e.LoadVolumeRoots(ctx); err != nil {
			return fmt.Errorf("loading volumes: %w", err)
		}
	}
	if len(paths) > 0 {
		if err := e.AddPaths(ctx, paths, cfg.Tree.ExpandTopLevel); err != nil {
			return fmt.Errorf("adding paths: %w", err)
		}
	}
	stopWatch := follow(ctx, cfg, e)
	defer stopWatch()

	srv := web.NewServer(e, web.Options{
		Addr:        cfg.Web.Addr,
		CORSOrigins: cfg.Web.CORSOrigins,
		Logger:      logging.L(),
	})
	fmt.Printf("Starting lazytree web server at http://%s\n", cfg.Web.Addr)
	return srv.ListenAndServe(ctx)
}

func runTuiMode(ctx context.Context, cfg *config.Config, paths []string, configPath string) error {
	e := newExplorer(cfg)
	defer e.Close()

	stopWatch := follow(ctx, cfg, e)
	defer stopWatch()

	opts := tui.Options{
		Paths:           paths,
		ExpandTopLevel:  cfg.Tree.ExpandTopLevel,
		LoadVolumeRoots: cfg.Tree.LoadVolumeRoots,
		Logger:          logging.L(),
	}
	if len(paths) == 0 && !cfg.Tree.LoadVolumeRoots {
		opts.Paths = pathsOrCwd(nil)
	}

	m := tui.InitialModel(e, opts)
	defer m.Close()
	p := tea.NewProgram(&m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("alas, there's been an error: %w", err)
	}

	if len(paths) == 0 {
		return nil
	}
	for _, path := range paths {
		cfg.AddRecent(path)
	}
	var err error
	if configPath != "" {
		err = config.SaveTo(cfg, configPath)
	} else {
		err = config.Save(cfg)
	}
	if err != nil {
		logging.L().Warn("failed to save recent paths", zap.Error(err))
	}
	return nil
}
