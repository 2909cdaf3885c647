package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/casedesk/internal/bus"
	"github.com/Ashfaaq98/casedesk/internal/feedback"
	"github.com/Ashfaaq98/casedesk/internal/fixtures"
	"github.com/Ashfaaq98/casedesk/internal/store"
	"github.com/Ashfaaq98/casedesk/internal/turn"
	"github.com/Ashfaaq98/casedesk/internal/ui"
)

var (
	noTUI        bool
	forceTUI     bool
	noFeedback   bool
	feedbackBind string
	themeName    string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the TUI and background services",
	Long: `Start the Casedesk desk, which includes:

1. Terminal User Interface (TUI) with the Review, Communications and Assistant pages
2. Feedback HTTP endpoint (POST /api/feedback, GET /healthz)
3. Fixture directory watcher that loads cases and threads into the database
4. Redis Streams publishing of chat turns and feedback (when --redis is set)

Examples:
  # Start with TUI (default)
  casedesk serve

  # Start without TUI (headless mode)
  casedesk serve --no-tui

  # Use a light theme and a different feedback port
  casedesk serve --theme light --feedback-bind 127.0.0.1:9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&noTUI, "no-tui", false, "Run in headless mode without TUI")
	serveCmd.Flags().BoolVar(&forceTUI, "force-tui", false, "Force TUI mode even in unsupported terminals")
	serveCmd.Flags().BoolVar(&noFeedback, "no-feedback", false, "Do not start the feedback HTTP endpoint")
	serveCmd.Flags().StringVar(&feedbackBind, "feedback-bind", "", "Bind address for the feedback endpoint (overrides feedback.bind)")
	serveCmd.Flags().StringVar(&themeName, "theme", "", "TUI theme: dark, light or high-contrast (overrides ui.theme)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()
	if feedbackBind != "" {
		config.Feedback.Bind = feedbackBind
	}
	if themeName != "" {
		config.UI.Theme = themeName
	}

	useTUI := determineTUIMode()

	// In TUI mode logs go to files so the screen stays clean; errors still reach stderr.
	var logger *log.Logger
	if useTUI {
		logFile := openLogFile("casedesk-serve.log")
		if logFile != nil {
			logger = newLogger(io.MultiWriter(logFile, &errorFilterWriter{os.Stderr}), "[serve] ", config.Log.Level)
			defer logFile.Close()
		} else {
			logger = newLogger(os.Stderr, "[serve] ", config.Log.Level)
		}
	} else {
		logger = newLogger(os.Stderr, "[serve] ", config.Log.Level)
	}
	logger.Println("Starting Casedesk")
	logger.Printf("Terminal info: %s", getTerminalInfo())

	st, err := openStore(config, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	busLogger := logger
	if useTUI {
		busLogger = log.New(io.Discard, "", 0)
	}
	eventBus := bus.NewBus(config.Redis.URL, busLogger)
	defer eventBus.Close()

	asst, err := buildAssistant(ctx, config.Assistant, logger)
	if err != nil {
		return fmt.Errorf("failed to configure assistant: %w", err)
	}
	logger.Printf("Assistant provider: %s (persona %s)", asst.Provider.Name(), asst.Config.Persona)

	svcCtx, svcCancel := context.WithCancel(ctx)
	defer svcCancel()

	chatStore, detach := newChatStore(svcCtx, st, eventBus, logger)
	defer detach()
	engine := turn.NewEngine(chatStore, asst.Responder, nil, engineConfig(config.Assistant),
		log.New(logger.Writer(), "[turn] ", log.LstdFlags))
	defer engine.Close()

	if !noFeedback {
		if err := startFeedback(svcCtx, config.Feedback, st, eventBus, logger); err != nil {
			logger.Printf("Feedback endpoint error: %v", err)
		}
	}

	coordinator := &ServiceCoordinator{store: st, bus: eventBus, logger: logger, ctx: svcCtx}
	coordinator.Start(!useTUI)
	defer func() {
		svcCancel()
		coordinator.Stop()
	}()

	fixturesPath := resolvePathRelativeToBase(getWorkingDir(), config.Fixtures.Dir)
	if err := os.MkdirAll(fixturesPath, 0o755); err != nil {
		logger.Printf("Warning: Could not create fixtures directory %s: %v", fixturesPath, err)
	}
	watchOpts := fixtures.WatchOptions{
		Dir:    fixturesPath,
		Watch:  true,
		Logger: log.New(logger.Writer(), "[fixtures] ", log.LstdFlags),
	}

	if !useTUI {
		go runWatcher(svcCtx, st, watchOpts, logger)
		logger.Println("Running in headless mode...")
		<-ctx.Done()
		logger.Println("Received shutdown signal")
		return nil
	}

	uiLogger := log.New(io.Discard, "[UI] ", log.LstdFlags)
	if f := openLogFile("casedesk-ui.log"); f != nil {
		defer f.Close()
		uiLogger = newLogger(f, "[UI] ", config.Log.Level)
		uiLogger.Printf("UI logger initialized (path=%s)", f.Name())
	}
	deps := ui.Deps{
		Cases:    st,
		Threads:  st,
		Store:    st,
		Chat:     chatStore,
		Engine:   engine,
		Provider: asst.Provider,
		Theme:    config.UI.Theme,
		Logger:   uiLogger,
	}
	if asst.Persona != nil {
		deps.Persona = asst.Persona
	}
	app, err := ui.New(svcCtx, deps)
	if err != nil {
		return fmt.Errorf("failed to build TUI: %w", err)
	}

	// Fixture files written while the desk is open show up without a restart.
	watchOpts.Logger = uiLogger
	watchOpts.OnLoad = func(path string, set fixtures.Set) {
		if err := app.Reload(svcCtx); err != nil {
			uiLogger.Printf("reload after %s: %v", filepath.Base(path), err)
		}
	}
	go runWatcher(svcCtx, st, watchOpts, logger)

	logger.Println("Starting TUI...")
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	logger.Println("TUI exited, cancelling background services...")
	svcCancel()
	logger.Println("Casedesk stopped")
	return nil
}

func startFeedback(ctx context.Context, cfg FeedbackConfig, st *store.Store, b bus.Bus, logger *log.Logger) error {
	fbLogger := log.New(logger.Writer(), "[feedback] ", log.LstdFlags)
	h, err := feedback.NewHandler(st, b, fbLogger)
	if err != nil {
		return err
	}
	srv := feedback.NewServer(h, feedback.ServerOptions{
		Bind:   cfg.Bind,
		RPS:    cfg.RPS,
		Burst:  cfg.Burst,
		Logger: fbLogger,
	})
	return srv.Start(ctx)
}

func runWatcher(ctx context.Context, sink fixtures.Sink, opts fixtures.WatchOptions, logger *log.Logger) {
	w := fixtures.NewWatcher(sink, opts)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Printf("Fixture watcher error: %v", err)
	}
}

// canInitializeTUI tests if tcell can actually be initialized
func canInitializeTUI() bool {
	screen, err := tcell.NewScreen()
	if err != nil {
		return false
	}
	if err := screen.Init(); err != nil {
		return false
	}
	screen.Fini()
	return true
}

// determineTUIMode decides before any logging is set up whether the TUI runs.
func determineTUIMode() bool {
	if noTUI {
		return false
	}
	return forceTUI || canInitializeTUI()
}

// getTerminalInfo returns detailed terminal information
func getTerminalInfo() string {
	var info []string
	if term := os.Getenv("TERM"); term == "" {
		info = append(info, "TERM=<not set>")
	} else {
		info = append(info, "TERM="+term)
	}
	if p := os.Getenv("TERM_PROGRAM"); p != "" {
		info = append(info, "TERM_PROGRAM="+p)
	}
	if isTerminal() {
		info = append(info, "TTY=yes")
	} else {
		info = append(info, "TTY=no")
	}
	if os.Getenv("COLORTERM") != "" {
		info = append(info, "COLORTERM="+os.Getenv("COLORTERM"))
	}
	return strings.Join(info, ", ")
}

// isTerminal checks if stdout is a terminal
func isTerminal() bool {
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// openLogFile opens logs/<name> under the working directory for appending.
// It returns nil when the file cannot be created.
func openLogFile(name string) *os.File {
	logDir := filepath.Join(getWorkingDir(), "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil
	}
	return f
}

// ServiceCoordinator runs the background loops that sit beside the TUI:
// bus health checks, periodic stats, and in headless mode a turns consumer
// that logs every chat turn seen on the bus.
type ServiceCoordinator struct {
	store  *store.Store
	bus    bus.Bus
	logger *log.Logger
	ctx    context.Context

	wg      sync.WaitGroup
	running bool
}

// Start launches the loops. consumeTurns adds the turns stream reader.
func (sc *ServiceCoordinator) Start(consumeTurns bool) {
	if sc.running {
		return
	}
	sc.running = true

	sc.wg.Add(2)
	go sc.runHealthMonitor()
	go sc.runMetricsCollector()
	if consumeTurns {
		sc.wg.Add(1)
		go sc.runTurnsConsumer()
	}
	sc.logger.Println("Background services started")
}

// Stop waits for the loops; they exit when the coordinator context ends.
func (sc *ServiceCoordinator) Stop() {
	if !sc.running {
		return
	}
	sc.logger.Println("Stopping background services...")
	sc.running = false
	sc.wg.Wait()
	sc.logger.Println("Background services stopped")
}

func (sc *ServiceCoordinator) runTurnsConsumer() {
	defer sc.wg.Done()

	handler := func(ctx context.Context, t bus.TurnMessage) error {
		sc.logger.Printf("turn %s/%s %s: %q", t.ConversationID, t.MessageID, t.Role, t.Summary)
		return nil
	}
	for {
		err := sc.bus.ReadTurnsStream(sc.ctx, "casedesk", "serve", handler)
		if sc.ctx.Err() != nil {
			return
		}
		if err != nil {
			sc.logger.Printf("Error reading turns stream: %v", err)
		}
		select {
		case <-sc.ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (sc *ServiceCoordinator) runHealthMonitor() {
	defer sc.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-sc.ctx.Done():
			return
		case <-ticker.C:
			sc.performHealthChecks()
		}
	}
}

func (sc *ServiceCoordinator) runMetricsCollector() {
	defer sc.wg.Done()
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-sc.ctx.Done():
			return
		case <-ticker.C:
			sc.collectMetrics()
		}
	}
}

func (sc *ServiceCoordinator) performHealthChecks() {
	ctx, cancel := context.WithTimeout(sc.ctx, 10*time.Second)
	defer cancel()
	if err := sc.bus.HealthCheck(ctx); err != nil {
		sc.logger.Printf("Redis health check failed: %v", err)
	}
	if err := sc.store.Ping(ctx); err != nil {
		sc.logger.Printf("Database health check failed: %v", err)
	}
}

func (sc *ServiceCoordinator) collectMetrics() {
	ctx, cancel := context.WithTimeout(sc.ctx, 30*time.Second)
	defer cancel()

	if stats, err := sc.bus.GetStats(ctx); err != nil {
		sc.logger.Printf("Failed to get bus stats: %v", err)
	} else {
		sc.logger.Printf("Bus stats: %+v", stats)
	}
	if counts, err := sc.store.Stats(ctx); err != nil {
		sc.logger.Printf("Failed to get database stats: %v", err)
	} else {
		sc.logger.Printf("Database stats: %d cases, %d threads, %d conversations",
			counts["cases"], counts["threads"], counts["conversations"])
	}
}
