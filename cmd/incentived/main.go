package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/goodhaul/incentive/internal/authgate"
	"github.com/goodhaul/incentive/internal/httpserver"
	"github.com/goodhaul/incentive/internal/metrics"
	"github.com/goodhaul/incentive/internal/store/gormstore"
	"github.com/goodhaul/incentive/internal/store/pgstore"
	"github.com/goodhaul/incentive/pkg/incentive"
)

const (
	flagDatabaseURL       = "database-url"
	flagListenAddr        = "listen-addr"
	flagStoreBackend      = "store-backend"
	flagSessionKey        = "session-signing-key"
	flagSessionIssuer     = "session-issuer"
	flagSessionCookie     = "session-cookie-name"
	flagAllowedOrigins    = "allowed-origins"
	configKeyDatabaseURL  = "database_url"
	configKeyListenAddr   = "listen_addr"
	configKeyStoreBackend = "store_backend"
	configKeySessionKey   = "session_signing_key"
	configKeyIssuer       = "session_issuer"
	configKeyCookie       = "session_cookie_name"
	configKeyOrigins      = "allowed_origins"

	defaultDatabaseURL  = "sqlite:///tmp/incentive.db"
	defaultListenAddr   = ":8080"
	defaultStoreBackend = "gorm"
	defaultIssuer       = "incentive"
	defaultCookieName   = "session"
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	StoreBackend   string
	SessionKey     string
	SessionIssuer  string
	SessionCookie  string
	AllowedOrigins []string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "incentived: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "incentived",
		Short:         "Driver incentive marketplace HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL connection string or sqlite path")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagStoreBackend, defaultStoreBackend, "Store backend: gorm or pgx")
	cmd.Flags().String(flagSessionKey, "", "HMAC key for session token verification")
	cmd.Flags().String(flagSessionIssuer, defaultIssuer, "Expected session token issuer")
	cmd.Flags().String(flagSessionCookie, defaultCookieName, "Session cookie name")
	cmd.Flags().StringSlice(flagAllowedOrigins, nil, "CORS allowed origins")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL:  "DATABASE_URL",
		configKeyListenAddr:   "LISTEN_ADDR",
		configKeyStoreBackend: "STORE_BACKEND",
		configKeySessionKey:   "SESSION_SIGNING_KEY",
		configKeyIssuer:       "SESSION_ISSUER",
		configKeyCookie:       "SESSION_COOKIE_NAME",
		configKeyOrigins:      "ALLOWED_ORIGINS",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}
	flags := map[string]string{
		configKeyDatabaseURL:  flagDatabaseURL,
		configKeyListenAddr:   flagListenAddr,
		configKeyStoreBackend: flagStoreBackend,
		configKeySessionKey:   flagSessionKey,
		configKeyIssuer:       flagSessionIssuer,
		configKeyCookie:       flagSessionCookie,
		configKeyOrigins:      flagAllowedOrigins,
	}
	for key, flag := range flags {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	cfg.StoreBackend = viper.GetString(configKeyStoreBackend)
	cfg.SessionKey = viper.GetString(configKeySessionKey)
	cfg.SessionIssuer = viper.GetString(configKeyIssuer)
	cfg.SessionCookie = viper.GetString(configKeyCookie)
	cfg.AllowedOrigins = viper.GetStringSlice(configKeyOrigins)

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database url is required")
	}
	if cfg.ListenAddr == "" {
		return fmt.Errorf("listen addr is required")
	}
	if cfg.SessionKey == "" {
		return fmt.Errorf("session signing key is required")
	}
	if cfg.StoreBackend != "gorm" && cfg.StoreBackend != "pgx" {
		return fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	defer func() { _ = cleanup() }()

	collectors := metrics.New()
	operationLogger := fanoutOperationLogger{
		&zapOperationLogger{logger: logger},
		collectors,
	}

	clock := func() int64 { return time.Now().UTC().Unix() }
	ledger, err := incentive.NewLedgerService(store, clock, incentive.WithLedgerOperationLogger(operationLogger))
	if err != nil {
		return fmt.Errorf("ledger service init: %w", err)
	}
	orders, err := incentive.NewOrderService(store, ledger, clock, incentive.WithOrderOperationLogger(operationLogger))
	if err != nil {
		return fmt.Errorf("order service init: %w", err)
	}
	cart, err := incentive.NewCartService(store)
	if err != nil {
		return fmt.Errorf("cart service init: %w", err)
	}
	catalog, err := incentive.NewCatalogService(store)
	if err != nil {
		return fmt.Errorf("catalog service init: %w", err)
	}
	applications, err := incentive.NewApplicationService(store, ledger, clock)
	if err != nil {
		return fmt.Errorf("application service init: %w", err)
	}

	validator, err := authgate.New(authgate.Config{
		SigningKey: []byte(cfg.SessionKey),
		Issuer:     cfg.SessionIssuer,
		CookieName: cfg.SessionCookie,
	})
	if err != nil {
		return fmt.Errorf("auth gate init: %w", err)
	}

	server := httpserver.New(logger, httpserver.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
	}, httpserver.Services{
		Ledger:       ledger,
		Orders:       orders,
		Cart:         cart,
		Catalog:      catalog,
		Applications: applications,
	}, validator, collectors)

	return server.Run(ctx)
}

func openStore(ctx context.Context, cfg *runtimeConfig) (incentive.Store, func() error, error) {
	if cfg.StoreBackend == "pgx" {
		if !strings.HasPrefix(cfg.DatabaseURL, "postgres://") && !strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
			return nil, nil, fmt.Errorf("pgx backend requires a postgres connection string")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() error {
			pool.Close()
			return nil
		}
		return pgstore.New(pool), cleanup, nil
	}

	target, err := parseDatabaseTarget(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := gorm.Open(target.dialector(), &gorm.Config{})
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, nil, err
	}
	// Postgres schemas are managed by migrations; sqlite gets bootstrapped
	// in place.
	if target.sqlitePath != "" {
		if err := gormstore.Migrate(gormDB); err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	return gormstore.New(gormDB.WithContext(ctx)), sqlDB.Close, nil
}

// databaseTarget is a parsed database-url flag: either a postgres DSN or a
// local sqlite file.
type databaseTarget struct {
	postgresDSN string
	sqlitePath  string
}

func (target databaseTarget) dialector() gorm.Dialector {
	if target.postgresDSN != "" {
		return postgres.Open(target.postgresDSN)
	}
	return sqlite.Open(target.sqlitePath)
}

func parseDatabaseTarget(raw string) (databaseTarget, error) {
	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") {
		return databaseTarget{postgresDSN: raw}, nil
	}
	path := raw
	if strings.HasPrefix(raw, "sqlite://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return databaseTarget{}, fmt.Errorf("parse sqlite url: %w", err)
		}
		path = parsed.Path
		if path == "" {
			path = parsed.Host
		}
		if path == "" || path == "/" {
			path = "incentive.db"
		}
	}
	return sqliteTarget(path)
}

func sqliteTarget(path string) (databaseTarget, error) {
	if path == ":memory:" {
		return databaseTarget{sqlitePath: path}, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(".", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return databaseTarget{}, err
	}
	return databaseTarget{sqlitePath: path}, nil
}

// zapOperationLogger emits one structured log line per domain operation.
type zapOperationLogger struct {
	logger *zap.Logger
}

func (operationLogger *zapOperationLogger) LogOperation(_ context.Context, entry incentive.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
		zap.String("actor", entry.Actor.String()),
	}
	if !entry.DriverProfileID.IsZero() {
		fields = append(fields, zap.String("driver_profile_id", entry.DriverProfileID.String()))
	}
	if !entry.OrderID.IsZero() {
		fields = append(fields, zap.String("order_id", entry.OrderID.String()))
	}
	if entry.Amount != 0 {
		fields = append(fields, zap.Int64("amount", entry.Amount.Int64()))
	}
	if entry.Reason != "" {
		fields = append(fields, zap.String("reason", entry.Reason))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		operationLogger.logger.Warn("operation failed", fields...)
		return
	}
	operationLogger.logger.Info("operation completed", fields...)
}

// fanoutOperationLogger forwards each entry to every wired logger.
type fanoutOperationLogger []incentive.OperationLogger

func (loggers fanoutOperationLogger) LogOperation(ctx context.Context, entry incentive.OperationLog) {
	for _, logger := range loggers {
		logger.LogOperation(ctx, entry)
	}
}
