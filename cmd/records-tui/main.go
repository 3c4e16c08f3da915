package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/srjmnh/student-ai/internal/config"
	"github.com/srjmnh/student-ai/internal/convo"
	"github.com/srjmnh/student-ai/internal/desk"
	"github.com/srjmnh/student-ai/internal/gateway"
	"github.com/srjmnh/student-ai/internal/history"
	"github.com/srjmnh/student-ai/internal/logging"
	"github.com/srjmnh/student-ai/internal/notify"
)

type flagValues struct {
	configPath       string
	serviceURL       string
	token            string
	timeoutSeconds   int
	rateLimit        float64
	rateBurst        int
	gradeConcurrency int
	historyPath      string
	historyLimit     int
	logPath          string
	logLevel         string
	altScreen        bool
	markdown         bool
	sessionSeed      string
}

func newRootCmd() *cobra.Command {
	var fv flagValues
	cmd := &cobra.Command{
		Use:   "records-tui",
		Short: "Terminal desk for the student records assistant",
		Long: `records-tui sends natural-language prompts to the records service and
shows its replies as a conversation. Student and grade tables open in an
editable side panel; edits are submitted back to the service in bulk.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, fv)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	defaults := config.Default()
	flags := cmd.Flags()
	flags.StringVar(&fv.configPath, "config", config.DefaultPath(), "YAML config file")
	flags.StringVar(&fv.serviceURL, "service-url", defaults.ServiceURL, "records service base URL")
	flags.StringVar(&fv.token, "token", "", "bearer token for the records service")
	flags.IntVar(&fv.timeoutSeconds, "timeout", defaults.RequestTimeoutSeconds, "per-request timeout in seconds (0 waits for the service)")
	flags.Float64Var(&fv.rateLimit, "rate-limit", defaults.RateLimit, "requests per second (0 disables limiting)")
	flags.IntVar(&fv.rateBurst, "rate-burst", defaults.RateBurst, "request burst size")
	flags.IntVar(&fv.gradeConcurrency, "grade-concurrency", defaults.GradeConcurrency, "parallel grade updates (1-3)")
	flags.StringVar(&fv.historyPath, "history", defaults.HistoryPath, "SQLite history file (empty disables history)")
	flags.IntVar(&fv.historyLimit, "history-limit", defaults.HistoryLimit, "messages restored at startup")
	flags.StringVar(&fv.logPath, "log-file", defaults.LogPath, "log file (empty disables logging)")
	flags.StringVar(&fv.logLevel, "log-level", defaults.LogLevel, "debug|info|warn|error")
	flags.BoolVar(&fv.altScreen, "alt-screen", defaults.AltScreen, "use the terminal alt screen")
	flags.BoolVar(&fv.markdown, "markdown", defaults.Markdown, "render system replies as markdown")
	flags.StringVar(&fv.sessionSeed, "session-seed", "", "idempotency key prefix")
	return cmd
}

// loadConfig layers explicitly set flags over the file and environment.
func loadConfig(cmd *cobra.Command, fv flagValues) (config.Config, error) {
	cfg, err := config.Load(fv.configPath)
	if err != nil {
		return config.Config{}, err
	}
	changed := cmd.Flags().Changed
	if changed("service-url") {
		cfg.ServiceURL = fv.serviceURL
	}
	if changed("token") {
		cfg.Token = fv.token
	}
	if changed("timeout") {
		cfg.RequestTimeoutSeconds = fv.timeoutSeconds
	}
	if changed("rate-limit") {
		cfg.RateLimit = fv.rateLimit
	}
	if changed("rate-burst") {
		cfg.RateBurst = fv.rateBurst
	}
	if changed("grade-concurrency") {
		cfg.GradeConcurrency = fv.gradeConcurrency
	}
	if changed("history") {
		cfg.HistoryPath = fv.historyPath
	}
	if changed("history-limit") {
		cfg.HistoryLimit = fv.historyLimit
	}
	if changed("log-file") {
		cfg.LogPath = fv.logPath
	}
	if changed("log-level") {
		cfg.LogLevel = fv.logLevel
	}
	if changed("alt-screen") {
		cfg.AltScreen = fv.altScreen
	}
	if changed("markdown") {
		cfg.Markdown = fv.markdown
	}
	if changed("session-seed") {
		cfg.SessionSeed = fv.sessionSeed
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := logging.New(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	notices := notify.NewCenter(notify.WithTTL(cfg.NoticeTTL()), notify.WithLogger(logger))

	logOpts := []convo.Option{convo.WithLogger(logger)}
	deskOpts := []desk.Option{desk.WithLogger(logger)}
	var store *history.Store
	if cfg.HistoryPath != "" {
		store, err = history.Open(ctx, cfg.HistoryPath)
		if err != nil {
			logger.Warn("history disabled", zap.Error(err))
			store = nil
		}
	}
	var restored []convo.Message
	if store != nil {
		defer store.Close()
		if cfg.HistoryLimit > 0 {
			restored, err = store.Recent(ctx, cfg.HistoryLimit)
			if err != nil {
				logger.Warn("history restore failed", zap.Error(err))
			}
		}
		logOpts = append(logOpts, convo.WithRecorder(store))
		deskOpts = append(deskOpts, desk.WithActivity(store))
	}
	log := convo.NewLog(logOpts...)
	log.Restore(restored)
	deskOpts = append(deskOpts, desk.WithLog(log))

	clientOpts := []gateway.ClientOption{
		gateway.WithTimeout(cfg.RequestTimeout()),
		gateway.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		gateway.WithClientLogger(logger),
	}
	if cfg.Token != "" {
		clientOpts = append(clientOpts, gateway.WithToken(cfg.Token))
	}
	if cfg.SessionSeed != "" {
		clientOpts = append(clientOpts, gateway.WithSessionSeed(cfg.SessionSeed))
	}
	client := gateway.NewHTTPClient(cfg.ServiceURL, clientOpts...)
	svc := gateway.New(client, notices,
		gateway.WithLogger(logger),
		gateway.WithGradeConcurrency(cfg.GradeConcurrency),
	)
	d := desk.New(svc, notices, deskOpts...)

	logger.Info("records desk starting",
		zap.String("service_url", cfg.ServiceURL),
		zap.Int("restored_messages", len(restored)),
	)

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(newModel(cfg, d, svc, notices, logger), opts...)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("records-tui fatal error: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "records-tui: %v\n", err)
		os.Exit(1)
	}
}
