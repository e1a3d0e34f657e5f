package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/MarkoPoloResearchLab/coinbot/internal/command"
	"github.com/MarkoPoloResearchLab/coinbot/internal/discord"
	"github.com/MarkoPoloResearchLab/coinbot/internal/relay"
	"github.com/MarkoPoloResearchLab/coinbot/internal/store/postbacklog"
	"github.com/MarkoPoloResearchLab/coinbot/internal/store/snapfile"
	"github.com/MarkoPoloResearchLab/coinbot/internal/telegram"
	"github.com/MarkoPoloResearchLab/coinbot/pkg/economy"
	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	flagDataFile      = "data-file"
	flagCommandPrefix = "command-prefix"
	flagListenAddr    = "listen-addr"
	flagPostbackDBURL = "postback-db-url"

	configKeyDataFile      = "data_file"
	configKeyCommandPrefix = "command_prefix"
	configKeyListenAddr    = "listen_addr"
	configKeyPostbackDBURL = "postback_db_url"
	configKeyDiscordToken  = "discord_token"
	configKeyGuildID       = "discord_guild_id"
	configKeyRoleID        = "discord_role_id"
	configKeyTelegramToken = "telegram_api_token"
	configKeyTelegramChat  = "telegram_chat_id"
	configKeyTimewallOID   = "timewall_oid"

	defaultDataFile    = "data.json"
	defaultPrefix      = "!"
	defaultListenAddr  = ":3000"
	defaultTimewallOID = "e81e5fbe6a8a28a1"
)

type runtimeConfig struct {
	DataFile      string
	CommandPrefix string
	ListenAddr    string
	PostbackDBURL string
	DiscordToken  string
	GuildID       string
	AdminRoleID   string
	TelegramToken string
	TelegramChat  string
	TimewallOID   string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "coinbot: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "coinbot",
		Short:         "Community coin bot with reward redemption and postback relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runBot(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDataFile, defaultDataFile, "Path to the JSON snapshot file")
	cmd.Flags().String(flagCommandPrefix, defaultPrefix, "Chat command prefix")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "Postback relay listen address")
	cmd.Flags().String(flagPostbackDBURL, "", "Optional database URL for the postback audit log")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	envBindings := map[string]string{
		configKeyDataFile:      "DATA_FILE",
		configKeyCommandPrefix: "COMMAND_PREFIX",
		configKeyListenAddr:    "LISTEN_ADDR",
		configKeyPostbackDBURL: "POSTBACK_DB_URL",
		configKeyDiscordToken:  "DISCORD_TOKEN",
		configKeyGuildID:       "DISCORD_GUILD_ID",
		configKeyRoleID:        "DISCORD_ROLE_ID",
		configKeyTelegramToken: "TELEGRAM_API_TOKEN",
		configKeyTelegramChat:  "TELEGRAM_CHAT_ID",
		configKeyTimewallOID:   "TIMEWALL_OID",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}

	flagBindings := map[string]string{
		configKeyDataFile:      flagDataFile,
		configKeyCommandPrefix: flagCommandPrefix,
		configKeyListenAddr:    flagListenAddr,
		configKeyPostbackDBURL: flagPostbackDBURL,
	}
	for key, flag := range flagBindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DataFile = viper.GetString(configKeyDataFile)
	if cfg.DataFile == "" {
		cfg.DataFile = defaultDataFile
	}
	cfg.CommandPrefix = viper.GetString(configKeyCommandPrefix)
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = defaultPrefix
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	cfg.PostbackDBURL = viper.GetString(configKeyPostbackDBURL)
	cfg.DiscordToken = viper.GetString(configKeyDiscordToken)
	cfg.GuildID = viper.GetString(configKeyGuildID)
	cfg.AdminRoleID = viper.GetString(configKeyRoleID)
	cfg.TelegramToken = viper.GetString(configKeyTelegramToken)
	cfg.TelegramChat = viper.GetString(configKeyTelegramChat)
	cfg.TimewallOID = viper.GetString(configKeyTimewallOID)
	if cfg.TimewallOID == "" {
		cfg.TimewallOID = defaultTimewallOID
	}
	return nil
}

func runBot(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// The store's snapshot source closes over the service pointer; the first
	// ScheduleSave can only happen after the service exists.
	var service *economy.Service
	store, err := snapfile.New(cfg.DataFile, func() economy.Snapshot { return service.Snapshot() }, snapfile.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("snapshot store init: %w", err)
	}

	snapshot, err := store.Load()
	if errors.Is(err, snapfile.ErrCorruptSnapshot) {
		// Starting fresh would silently zero every balance. Refuse instead.
		return fmt.Errorf("snapshot file %s is corrupt, refusing to start: %w", cfg.DataFile, err)
	}
	if err != nil {
		return fmt.Errorf("snapshot load: %w", err)
	}

	service, err = economy.NewService(snapshot,
		economy.WithPersister(store),
		economy.WithOperationLogger(operationLogger{logger: logger}),
	)
	if err != nil {
		return fmt.Errorf("economy service init: %w", err)
	}

	var forwarder relay.Forwarder
	if telegramClient, clientErr := telegram.NewClient(cfg.TelegramToken, cfg.TelegramChat); clientErr == nil {
		forwarder = telegramClient
	} else {
		logger.Warn("telegram not configured, postbacks will be rejected")
	}

	auditLog, auditCleanup, err := openAuditLog(ctx, cfg.PostbackDBURL)
	if err != nil {
		return fmt.Errorf("postback audit log init: %w", err)
	}
	if auditCleanup != nil {
		defer func() { _ = auditCleanup() }()
	}

	relayServer, err := relay.NewServer(relay.Config{
		ListenAddr: cfg.ListenAddr,
		Forwarder:  forwarder,
		AuditLog:   auditLog,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("relay init: %w", err)
	}

	relayErr := make(chan error, 1)
	go func() { relayErr <- relayServer.Run(ctx) }()

	var gateway *discord.Gateway
	if cfg.DiscordToken == "" {
		logger.Warn("DISCORD_TOKEN not set, running relay only")
	} else {
		gateway, err = startGateway(ctx, cfg, service, logger)
		if err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-relayErr:
		if err != nil {
			return fmt.Errorf("relay: %w", err)
		}
	}

	if gateway != nil {
		if err := gateway.Close(); err != nil {
			logger.Warn("discord close error", zap.Error(err))
		}
	}
	// Final flush so the tail of the debounce window survives shutdown.
	if err := store.Close(); err != nil {
		return fmt.Errorf("snapshot flush: %w", err)
	}
	return nil
}

func startGateway(ctx context.Context, cfg *runtimeConfig, service *economy.Service, logger *zap.Logger) (*discord.Gateway, error) {
	gateway, err := discord.New(discord.Config{
		Token:       cfg.DiscordToken,
		GuildID:     cfg.GuildID,
		AdminRoleID: cfg.AdminRoleID,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("discord init: %w", err)
	}
	router, err := command.NewRouter(command.Config{
		Service:   service,
		Notifier:  discord.NewNotifier(gateway.Session(), logger),
		Prefix:    cfg.CommandPrefix,
		PartnerID: cfg.TimewallOID,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("command router init: %w", err)
	}
	gateway.SetRouter(router)
	if err := gateway.Open(ctx); err != nil {
		return nil, err
	}
	return gateway, nil
}

func openAuditLog(ctx context.Context, dsn string) (relay.AuditLog, func() error, error) {
	if dsn == "" {
		return nil, nil, nil
	}
	db, cleanup, err := openDatabase(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	store := postbacklog.New(db)
	if err := store.Migrate(ctx); err != nil {
		_ = cleanup()
		return nil, nil, err
	}
	return store, cleanup, nil
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, err
	}

	var db *gorm.DB
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
	default:
		return nil, nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "postbacks.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

// operationLogger bridges economy operation callbacks onto zap.
type operationLogger struct {
	logger *zap.Logger
}

func (adapter operationLogger) LogOperation(_ context.Context, entry economy.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if entry.UserID.String() != "" {
		fields = append(fields, zap.String("user_id", entry.UserID.String()))
	}
	if entry.Reward.String() != "" {
		fields = append(fields, zap.String("reward", entry.Reward.String()))
	}
	if entry.Amount != 0 {
		fields = append(fields, zap.Int64("amount", entry.Amount))
	}
	if entry.Quantity != 0 {
		fields = append(fields, zap.Int("quantity", entry.Quantity))
	}
	if entry.Error != nil {
		adapter.logger.Warn("economy operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	adapter.logger.Info("economy operation", fields...)
}
