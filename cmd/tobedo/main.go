// tobedo is a Telegram bot that turns list messages into checklists.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	_ "github.com/spetr/tobedo/builtin"
	"github.com/spetr/tobedo/internal/config"
	"github.com/spetr/tobedo/internal/handler"
	"github.com/spetr/tobedo/internal/telegram"
	"github.com/spetr/tobedo/pkg/provider"
)

var (
	version   = "0.1.0"
	cfgFile   string
	logLevel  string
	logFormat string

	// logLevelVar lets a config reload change the level of the running logger.
	logLevelVar = new(slog.LevelVar)
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tobedo",
	Short: "Telegram checklist bot",
	Long: `tobedo turns every list you send it into a checklist reply with a
button per item. Tapping a button toggles the item.

Commands inside the chat:
  /todos    show all items
  /done     show completed items
  /pending  show pending items`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tobedo %s\n", version)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot",
	Run: func(cmd *cobra.Command, args []string) {
		watch, _ := cmd.Flags().GetBool("watch-config")
		runServe(watch)
	},
}

var todosCmd = &cobra.Command{
	Use:   "todos <chat-id>",
	Short: "Print the todo items stored for a chat",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		completed, _ := cmd.Flags().GetBool("completed")
		pending, _ := cmd.Flags().GetBool("pending")

		filter := handler.AnyState
		switch {
		case completed && pending:
			fmt.Fprintln(os.Stderr, "Error: --completed and --pending are mutually exclusive")
			os.Exit(1)
		case completed:
			filter = handler.Completed
		case pending:
			filter = handler.Pending
		}
		runTodos(args[0], filter)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration",
	Run: func(cmd *cobra.Command, args []string) {
		runConfigInit()
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Run: func(cmd *cobra.Command, args []string) {
		runConfigValidate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json); overrides config")

	serveCmd.Flags().Bool("watch-config", false, "reload log level when the config file changes")

	todosCmd.Flags().Bool("completed", false, "show completed items only")
	todosCmd.Flags().Bool("pending", false, "show pending items only")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(todosCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads the config file and applies the logging flags on top of it.
func loadConfig() *config.Config {
	cfg, _, warnings, err := config.Load(cfgFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	for _, w := range warnings {
		slog.Debug(w)
	}
	applyLogFlags(cfg)
	return cfg
}

func applyLogFlags(cfg *config.Config) {
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
}

func runServe(watch bool) {
	cfg, v, warnings, err := config.Load(cfgFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	for _, w := range warnings {
		slog.Warn(w)
	}
	applyLogFlags(cfg)
	setupLoggingFrom(cfg.Logging)

	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			slog.Error("invalid config", "error", e)
		}
		os.Exit(1)
	}

	tgLogger := newAdapterLogger(cfg.Logging)

	if watch && v.ConfigFileUsed() != "" {
		config.Watch(v, func(next *config.Config) {
			applyLogFlags(next)
			logLevelVar.Set(parseLevel(next.Logging.Level))
			tgLogger.SetLevel(hclog.LevelFromString(next.Logging.Level))
			slog.Info("config reloaded", "log_level", next.Logging.Level)
		}, func(err error) {
			slog.Warn("config reload failed", "error", err)
		})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := createStore(cfg)
	if err := store.Init(ctx); err != nil {
		slog.Error("failed to initialize store", "path", cfg.Store.Path, "error", err)
		os.Exit(1)
	}

	bot, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		Debug:       cfg.Telegram.Debug,
		PollTimeout: cfg.Telegram.PollTimeout,
		Logger:      tgLogger,
	})
	if err != nil {
		slog.Error("failed to start bot", "error", err)
		os.Exit(1)
	}

	h, err := handler.New(handler.Config{
		Store:     store,
		Messenger: bot,
		Logger:    slog.Default().With("component", "handler"),
	})
	if err != nil {
		slog.Error("failed to create handler", "error", err)
		os.Exit(1)
	}

	slog.Info("starting bot", "store", store.Name(), "path", cfg.Store.Path)
	if err := bot.Run(ctx, h); err != nil {
		slog.Error("bot stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func runTodos(chatID string, filter handler.Completion) {
	cfg := loadConfig()
	ctx := context.Background()

	h, err := handler.New(handler.Config{
		Store:     createStore(cfg),
		Messenger: newConsoleMessenger(os.Stdout),
	})
	if err != nil {
		slog.Error("failed to create handler", "error", err)
		os.Exit(1)
	}

	if err := h.ShowTodos(ctx, handler.Update{ChatID: chatID}, filter); err != nil {
		slog.Error("failed to show todos", "chat_id", chatID, "error", err)
		os.Exit(1)
	}
}

// createStore creates the reply store selected by the config.
func createStore(cfg *config.Config) provider.ReplyStore {
	store, err := provider.DefaultRegistry.CreateReplyStore(provider.ReplyStoreConfig{
		Provider: cfg.Store.Provider,
		Path:     cfg.Store.Path,
	})
	if err != nil {
		slog.Error("failed to create store", "error", err)
		os.Exit(1)
	}
	return store
}

func runConfigInit() {
	cfg := config.DefaultConfig()

	if err := config.Save(cfgFile, cfg); err != nil {
		slog.Error("failed to save config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Created config at %s\n", cfgFile)
	fmt.Printf("Set %s to your bot token before running 'tobedo serve'\n", config.TokenEnv)
}

func runConfigValidate() {
	cfg, _, warnings, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	for _, w := range warnings {
		fmt.Printf("Warning: %s\n", w)
	}

	errs := config.Validate(cfg)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Printf("Error: %v\n", e)
		}
		os.Exit(1)
	}

	redacted := cfg.Redacted()
	fmt.Printf("Store: %s (%s)\n", redacted.Store.Path, redacted.Store.Provider)
	fmt.Printf("Token: %s\n", redacted.Telegram.Token)
	fmt.Println("\nConfiguration is valid")
}

func setupLogging() {
	lc := config.DefaultConfig().Logging
	if logLevel != "" {
		lc.Level = logLevel
	}
	if logFormat != "" {
		lc.Format = logFormat
	}
	setupLoggingFrom(lc)
}

func setupLoggingFrom(lc config.LoggingConfig) {
	logLevelVar.Set(parseLevel(lc.Level))

	var logHandler slog.Handler
	opts := &slog.HandlerOptions{Level: logLevelVar}

	if lc.Format == "json" {
		logHandler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		logHandler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(logHandler))
}

func parseLevel(level string) slog.Level {
	switch level {
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

// newAdapterLogger creates the hashicorp logger used by the Telegram adapter.
func newAdapterLogger(lc config.LoggingConfig) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "telegram",
		Level:      hclog.LevelFromString(lc.Level),
		Output:     os.Stderr,
		JSONFormat: lc.Format == "json",
	})
}
