package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/pinchvolume/internal/app"
	"github.com/ayusman/pinchvolume/internal/audio"
	"github.com/ayusman/pinchvolume/internal/capture"
	"github.com/ayusman/pinchvolume/internal/config"
	"github.com/ayusman/pinchvolume/internal/detector"
	"github.com/ayusman/pinchvolume/internal/plugin"
	"github.com/ayusman/pinchvolume/internal/server"
	"github.com/ayusman/pinchvolume/internal/store"
	"github.com/ayusman/pinchvolume/internal/tracker"
	"github.com/ayusman/pinchvolume/internal/tray"
	"github.com/ayusman/pinchvolume/internal/volume"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pinchvolume: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "Path to the session database (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: error, warn, info, debug (overrides config)")
	pluginDir := flag.String("plugins", "", "Plugin directory (overrides config)")
	cameraID := flag.Int("camera", -1, "Camera device index (overrides config)")
	noTray := flag.Bool("no-tray", false, "Run headless without the system tray")
	autostart := flag.Bool("autostart", false, "Start hand tracking immediately")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	overrides := config.FlagOverrides{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			overrides.Addr = addr
		case "db":
			overrides.DBPath = dbPath
		case "log-level":
			overrides.LogLevel = logLevel
		case "plugins":
			overrides.PluginDir = pluginDir
		case "camera":
			overrides.Camera = cameraID
		case "no-tray":
			overrides.NoTray = noTray
		case "autostart":
			overrides.Autostart = autostart
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := config.NewLogger(cfg.Logging.Level, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("PinchVolume - hand gesture volume control",
		"tray", cfg.Tray.Enabled,
		"server", cfg.Server.Enabled,
		"sink", cfg.Sink.Backend,
		"detector", cfg.Detector.Backend,
	)

	st, err := store.New(config.ExpandPath(cfg.Store.Path))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if n, err := st.Sessions().CloseDangling(store.StopReasonCrashed); err != nil {
		logger.Warn("failed to close dangling sessions", "error", err)
	} else if n > 0 {
		logger.Info("closed sessions left open by a previous run", "count", n)
	}

	sink, err := newSink(cfg, logger)
	if err != nil {
		return err
	}

	source, err := newSource(cfg, logger)
	if err != nil {
		return err
	}

	application := app.New(app.Config{
		Source:      source,
		Sink:        sink,
		Control:     cfg.ControlConfig(),
		Store:       st,
		ReadBackoff: time.Second / time.Duration(cfg.Camera.FPS),
		Logger:      logger,
	})
	defer application.Shutdown()

	var httpServer *http.Server
	if cfg.Server.Enabled {
		webDir := cfg.Server.WebDir
		if webDir == "" {
			webDir = findWebDir()
		} else {
			webDir = config.ExpandPath(webDir)
		}
		if webDir != "" {
			logger.Info("serving static files", "dir", webDir)
		}

		srv := server.New(server.Config{
			StaticDir: webDir,
			Store:     st,
			Session:   application,
			Events:    application,
			Control:   cfg.ControlConfig(),
			Logger:    logger,
		})
		httpServer = srv.HTTPServer(cfg.Server.Addr)

		go func() {
			logger.Info("starting server", "addr", cfg.Server.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server failed", "error", err)
			}
		}()
		defer shutdownServer(httpServer, logger)
	}

	if cfg.Tray.Autostart {
		if err := application.Start(); err != nil {
			logger.Error("autostart failed", "error", err)
		}
	}

	if cfg.Tray.Enabled {
		runTray(application, cfg, logger)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("running headless, press Ctrl+C to exit")
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// newSource builds the camera-backed landmark source. The mock detector is
// only used when configured; a MediaPipe setup failure is fatal.
func newSource(cfg config.Config, logger *slog.Logger) (app.LandmarkSource, error) {
	camera := capture.NewCamera(cfg.CaptureConfig())

	if cfg.Detector.Backend == config.BackendMock {
		logger.Warn("using mock detector, no hands will be reported")
		return tracker.New(camera, detector.NewMockDetector(), logger), nil
	}

	det, err := detector.NewMediaPipeDetector(cfg.DetectorConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("mediapipe detector: %w", err)
	}
	return tracker.New(camera, det, logger), nil
}

func newSink(cfg config.Config, logger *slog.Logger) (volume.Sink, error) {
	if cfg.Sink.Backend == config.BackendMemory {
		logger.Warn("using in-memory audio sink, the system volume will not change")
		return audio.NewMemorySink(0.5), nil
	}

	manager := plugin.NewManager(config.ExpandPath(cfg.Sink.PluginDir), logger)
	if err := manager.Discover(); err != nil {
		return nil, fmt.Errorf("discover plugins: %w", err)
	}

	return audio.NewPluginSink(audio.PluginSinkConfig{
		Manager:    manager,
		PluginName: cfg.Sink.Plugin,
		Timeout:    time.Duration(cfg.Sink.TimeoutMS) * time.Millisecond,
		Logger:     logger,
	}), nil
}

// runTray blocks until the user quits from the tray menu.
func runTray(application *app.App, cfg config.Config, logger *slog.Logger) {
	t := tray.New()
	t.OnStart(func() error {
		err := application.Start()
		if err != nil {
			logger.Error("start failed", "error", err)
		}
		return err
	})
	t.OnStop(application.Stop)
	t.OnSettings(func() {
		if !cfg.Server.Enabled {
			logger.Warn("settings page needs the HTTP server")
			return
		}
		url := "http://" + browserAddr(cfg.Server.Addr)
		if err := openBrowser(url); err != nil {
			logger.Warn("failed to open browser", "url", url, "error", err)
		}
	})
	t.OnQuit(func() {
		logger.Info("quit requested from tray")
	})

	events, cancel := application.Subscribe()
	defer cancel()
	go t.Watch(events)

	// A terminal kill leaves through the tray so deferred shutdown still runs.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	exited := make(chan struct{})
	defer close(exited)
	go quitOnSignal(sigCtx, exited, func() {
		logger.Info("signal received, quitting")
		t.Quit()
	})

	// Show the state of an autostarted session.
	if status := application.Status(); status.Running {
		t.Apply(app.Event{Type: app.EventSessionStarted, SessionID: status.SessionID, Value: status.Level})
	}

	t.Run()
}

// quitOnSignal calls quit if ctx ends before done is closed.
func quitOnSignal(ctx context.Context, done <-chan struct{}, quit func()) {
	select {
	case <-ctx.Done():
	case <-done:
		return
	}
	// The tray may have exited while the context was being cancelled.
	select {
	case <-done:
	default:
		quit()
	}
}

func shutdownServer(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
}

// browserAddr turns a listen address like ":8080" into one a browser can open.
func browserAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	return addr
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.pinchvolume/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeWebDir := config.ExpandPath(config.DataDir + "/web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
