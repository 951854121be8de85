package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/background"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/bot"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/config"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/server"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/telegram"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "zavvetka-api",
		Short: "Encrypted Telegram notes backend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.StringVar(&envFile, "env-file", ".env", "Path to an optional dotenv file")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.String("trusted-platform", defaults.GetString("http.trusted_platform"), "Header carrying the client IP (e.g. CF-Connecting-IP)")
	flags.String("allowed-origins", defaults.GetString("http.allowed_origins"), "Comma-separated CORS origins")
	flags.String("public-domain", defaults.GetString("public.domain"), "Public base URL used in note links")
	flags.String("store-driver", defaults.GetString("store.driver"), "Note store backend (memory, sqlite, postgres, redis, s3)")
	flags.String("database-path", defaults.GetString("database.path"), "SQLite database path")
	flags.String("database-dsn", defaults.GetString("database.dsn"), "Postgres DSN")
	flags.String("redis-address", defaults.GetString("redis.address"), "Redis address")
	flags.String("s3-bucket", defaults.GetString("s3.bucket"), "S3 bucket holding notes")
	flags.String("s3-endpoint", defaults.GetString("s3.endpoint"), "S3-compatible endpoint")
	flags.String("bot-token", "", "Telegram bot token (overrides env)")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.trusted_platform", "trusted-platform")
	bindFlag(cmd, "http.allowed_origins", "allowed-origins")
	bindFlag(cmd, "public.domain", "public-domain")
	bindFlag(cmd, "store.driver", "store-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "redis.address", "redis-address")
	bindFlag(cmd, "s3.bucket", "s3-bucket")
	bindFlag(cmd, "s3.endpoint", "s3-endpoint")
	bindFlag(cmd, "telegram.bot_token", "bot-token")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	noteStore, closeStore, err := openNoteStore(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	notesService, err := notes.NewService(notes.ServiceConfig{
		Store:      noteStore,
		Guard:      auth.NewAccessGuard(auth.AccessGuardConfig{}),
		Fragments:  notes.NewFragmentGenerator(notes.FragmentConfig{}),
		Clock:      time.Now,
		IDProvider: notes.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	telegramClient, err := telegram.NewClient(telegram.ClientConfig{
		BotToken: appConfig.BotToken,
		BaseURL:  appConfig.TelegramAPIBaseURL,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	noteBot, err := bot.New(bot.Config{
		Notes:        notesService,
		Messenger:    telegramClient,
		PublicDomain: appConfig.PublicDomain,
		Location:     appConfig.Location,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	executor := background.NewExecutor(background.Config{
		Workers:     appConfig.BackgroundWorkers,
		QueueSize:   appConfig.BackgroundQueueSize,
		TaskTimeout: appConfig.TaskTimeout,
		Logger:      logger,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		NotesService:    notesService,
		Updates:         noteBot,
		Notifier:        noteBot,
		Tasks:           executor,
		WebhookProbe:    telegramClient,
		WebhookSecret:   appConfig.WebhookSecret,
		PublicDomain:    appConfig.PublicDomain,
		TrustedPlatform: appConfig.TrustedPlatform,
		AllowedOrigins:  appConfig.AllowedOrigins,
		EnableMetrics:   true,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("store_driver", appConfig.StoreDriver))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		if err := executor.Shutdown(shutdownCtx); err != nil {
			logger.Warn("background tasks abandoned on shutdown", zap.Error(err))
		}
		return shutdownErr
	case err := <-errCh:
		_ = executor.Shutdown(context.Background())
		return err
	}
}
