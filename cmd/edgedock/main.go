package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgedock/edgedock/internal/config"
	"github.com/edgedock/edgedock/internal/control"
	"github.com/edgedock/edgedock/internal/dragwatch"
	"github.com/edgedock/edgedock/internal/events"
	"github.com/edgedock/edgedock/internal/ipc"
	"github.com/edgedock/edgedock/internal/platform"
	"github.com/edgedock/edgedock/internal/shelf"
	"github.com/edgedock/edgedock/internal/watchdog"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		if len(os.Args) > 2 && (os.Args[2] == "help" || os.Args[2] == "-h" || os.Args[2] == "--help") {
			fmt.Fprintln(os.Stdout, "Usage: edgedock daemon")
			os.Exit(0)
		}
		if len(os.Args) > 2 {
			fmt.Fprintln(os.Stderr, "daemon takes no arguments")
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Usage: edgedock daemon")
			os.Exit(2)
		}
		os.Exit(runDaemon())
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "monitors":
		os.Exit(runMonitors(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: edgedock <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the edgedock daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  monitors            Show monitors as seen by the daemon")
	fmt.Fprintln(w, "  reload              Reload daemon configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'edgedock <command> --help' for command-specific options.")
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func dragParams(cfg *config.Config) dragwatch.Params {
	return dragwatch.Params{
		MinDisplacement: cfg.Jiggle.MinDisplacement,
		ReversalDot:     cfg.Jiggle.ReversalDot,
		Window:          cfg.JiggleWindow(),
		Reversals:       cfg.Jiggle.Reversals,
		Renotify:        cfg.JiggleRenotify(),
		Interval:        cfg.DragPoll(),
	}
}

func runDaemon() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	backend, err := platform.NewX11Backend()
	if err != nil {
		logger.Error("failed to connect to display", "error", err)
		return 1
	}

	clock := control.RealClock()
	loop := control.NewLoop()
	bus := events.NewBus()
	host := platform.NewWindowHost(backend, logger)

	ctrl := shelf.New(shelf.Options{
		Clock:    clock,
		Exec:     loop,
		Bus:      bus,
		Host:     host,
		Displays: backend,
		Config:   cfg,
		Logger:   logger,
	})

	buffer := backend.DragBuffer()
	detector := dragwatch.New(clock, loop, bus,
		backend.QueryPointer, buffer, dragParams(cfg), logger)
	guard := watchdog.New(clock, loop, ctrl, cfg.WatchdogInterval(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		loop.Run(ctx)
		return nil
	})

	// Control loop is draining now; register the monitors before any
	// poller produces samples.
	var startErr error
	loop.Call(func() { startErr = ctrl.Start() })
	if startErr != nil {
		logger.Error("controller start failed", "error", startErr)
		stop()
		backend.Close()
		return 1
	}

	applyReload := func(newCfg *config.Config) {
		loop.Post(func() {
			ctrl.ApplyConfig(newCfg)
			detector.SetParams(dragParams(newCfg))
		})
	}

	ipcServer, err := ipc.NewServer(ipc.Handlers{
		Status: func() (ipc.StatusData, error) {
			var st shelf.Status
			loop.Call(func() { st = ctrl.Status() })
			return statusData(st), nil
		},
		Monitors: func() (ipc.MonitorsData, error) {
			var data ipc.MonitorsData
			loop.Call(func() {
				for _, m := range ctrl.Monitors() {
					data.Monitors = append(data.Monitors, ipc.MonitorInfo{
						ID:      m.ID,
						X:       m.Frame.X,
						Y:       m.Frame.Y,
						Width:   m.Frame.Width,
						Height:  m.Frame.Height,
						Primary: m.Primary,
					})
				}
			})
			return data, nil
		},
		Reload: func() error {
			newCfg, err := config.Load()
			if err != nil {
				return err
			}
			applyReload(newCfg)
			return nil
		},
	}, logger)
	if err != nil {
		logger.Error("failed to create IPC server", "error", err)
		stop()
		backend.Close()
		return 1
	}
	if err := ipcServer.Start(); err != nil {
		logger.Error("failed to start IPC server", "error", err)
		stop()
		backend.Close()
		return 1
	}
	defer ipcServer.Stop()

	g.Go(func() error {
		ctrl.RunPointerPoller(ctx, backend.QueryPointer)
		return nil
	})
	g.Go(func() error {
		detector.Run(ctx)
		return nil
	})
	g.Go(func() error {
		guard.Run(ctx)
		return nil
	})
	g.Go(func() error {
		err := backend.RunDisplayWatcher(ctx, func() {
			loop.Post(func() { bus.Publish(events.DisplaysChanged{}) })
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		path, err := config.DefaultConfigPath()
		if err != nil {
			logger.Warn("config watch disabled", "error", err)
			return nil
		}
		return config.Watch(ctx, path, logger, applyReload)
	})
	g.Go(func() error {
		// Unblock the display watcher's event read on shutdown.
		<-ctx.Done()
		backend.Close()
		return nil
	})

	logger.Info("edgedock daemon started")
	if err := g.Wait(); err != nil {
		logger.Error("daemon exited with error", "error", err)
		return 1
	}
	logger.Info("edgedock daemon stopped")
	return 0
}

func statusData(st shelf.Status) ipc.StatusData {
	data := ipc.StatusData{
		UptimeSeconds: int64(time.Since(st.StartedAt).Seconds()),
		DaemonRunning: true,
		DragActive:    st.DragActive,
	}
	for _, m := range st.Monitors {
		data.Monitors = append(data.Monitors, ipc.MonitorStatusData{
			ID:             m.MonitorID,
			Phase:          m.Phase,
			Hovering:       m.Hovering,
			Expanded:       m.Expanded,
			DropTargeted:   m.DropTargeted,
			ExpectedHeight: m.ExpectedHeight,
			AppliedHeight:  m.AppliedHeight,
		})
	}
	return data
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: edgedock status")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	client := ipc.NewClient()
	status, err := client.GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("daemon_running: %v\n", status.DaemonRunning)
	fmt.Printf("uptime_seconds: %d\n", status.UptimeSeconds)
	fmt.Printf("drag_active:    %v\n", status.DragActive)
	for _, m := range status.Monitors {
		fmt.Printf("monitor %s: phase=%s hovering=%v expanded=%v drop_targeted=%v height=%.0f/%.0f\n",
			m.ID, m.Phase, m.Hovering, m.Expanded, m.DropTargeted, m.AppliedHeight, m.ExpectedHeight)
	}
	return 0
}

func runMonitors(args []string) int {
	fs := flag.NewFlagSet("monitors", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: edgedock monitors")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show monitors as seen by the daemon.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "monitors takes no arguments")
		fs.Usage()
		return 2
	}

	client := ipc.NewClient()
	monitors, err := client.GetMonitors()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, m := range monitors.Monitors {
		primary := ""
		if m.Primary {
			primary = " (primary)"
		}
		fmt.Printf("%s: %.0fx%.0f at %.0f,%.0f%s\n", m.ID, m.Width, m.Height, m.X, m.Y, primary)
	}
	return 0
}

func runReload(args []string) int {
	fs := flag.NewFlagSet("reload", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: edgedock reload")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Reload the daemon configuration.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "reload takes no arguments")
		fs.Usage()
		return 2
	}

	client := ipc.NewClient()
	if err := client.Reload(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println("config reloaded")
	return 0
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  edgedock config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  edgedock config print [--path PATH] [--defaults]")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/edgedock/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		var err error
		if *path == "" {
			_, err = config.Load()
		} else {
			_, err = config.LoadFromPath(*path)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/edgedock/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		var cfg *config.Config
		var err error
		if *printDefaults {
			cfg = config.DefaultConfig()
		} else if *path == "" {
			cfg, err = config.Load()
		} else {
			cfg, err = config.LoadFromPath(*path)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		out, err := cfg.Print()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(out)
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config command: %s\n", args[0])
		return 2
	}
}
