// Package app wires configuration, storage, clients and services into the
// shared core used by cmd/investtrack-server.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nikitakreml/invest-track-app/internal/auth"
	"github.com/nikitakreml/invest-track-app/internal/clients/eodhd"
	"github.com/nikitakreml/invest-track-app/internal/clients/s3sheet"
	"github.com/nikitakreml/invest-track-app/internal/clients/sheets"
	"github.com/nikitakreml/invest-track-app/internal/clients/tinkoff"
	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/interfaces"
	"github.com/nikitakreml/invest-track-app/internal/services/account"
	"github.com/nikitakreml/invest-track-app/internal/services/ledger"
	"github.com/nikitakreml/invest-track-app/internal/services/pricing"
	"github.com/nikitakreml/invest-track-app/internal/services/quote"
	"github.com/nikitakreml/invest-track-app/internal/services/sheetsync"
	"github.com/nikitakreml/invest-track-app/internal/services/valuation"
	"github.com/nikitakreml/invest-track-app/internal/storage"
)

// App holds all initialized services and clients.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Storage          interfaces.StorageManager
	PriceOracle      interfaces.PriceOracle
	Spreadsheet      interfaces.SpreadsheetSync
	AccountService   interfaces.AccountService
	LedgerService    interfaces.LedgerService
	PricingService   interfaces.PricingService
	ValuationService interfaces.ValuationService
	SheetSyncService interfaces.SheetSyncService
	Tokens           *auth.Signer
	StartupTime      time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: explicit path, INVESTTRACK_CONFIG,
// investtrack.toml next to the binary, then config/investtrack.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("INVESTTRACK_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "investtrack.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/investtrack.toml" // fallback for development
		}
	}
	return configPath
}

// LoadConfig loads the configuration and resolves relative paths against
// the binary directory.
func LoadConfig(configPath string) (*common.Config, error) {
	common.LoadBuildInfo()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(getBinaryDir(), config.Logging.FilePath)
	}
	return config, nil
}

// NewApp initializes storage, clients and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	startupStart := time.Now()

	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewStorageManager(ctx, logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	oracle, err := NewPriceChain(config.Clients.Prices, logger)
	if err != nil {
		storageManager.Close()
		return nil, err
	}

	sheetClient, err := NewSpreadsheet(ctx, config, logger)
	if err != nil {
		storageManager.Close()
		return nil, err
	}

	a, err := Wire(config, logger, storageManager, oracle, sheetClient)
	if err != nil {
		storageManager.Close()
		return nil, err
	}

	logger.Info().
		Dur("startup", time.Since(startupStart)).
		Str("storage", config.Storage.Driver).
		Str("prices", config.Clients.Prices.Provider).
		Str("sheets", config.Clients.Sheets.Provider).
		Msg("Application initialized")
	return a, nil
}

// Wire builds the services on top of already constructed infrastructure.
func Wire(config *common.Config, logger *common.Logger, store interfaces.StorageManager,
	oracle interfaces.PriceOracle, sheetClient interfaces.SpreadsheetSync) (*App, error) {
	initial := decimal.Zero
	if s := strings.TrimSpace(config.Storage.InitialBalance); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: storage.initial_balance %q: %v", common.ErrInvalidInput, s, err)
		}
		initial = d
	}

	if config.Clients.Prices.APIKey == "" {
		logger.Warn().Msg("Price API key not configured - users need their own token for prices")
	}

	accounts := account.NewService(store, initial, logger)
	prices := pricing.NewService(oracle, accounts, config.Clients.Prices.APIKey, logger,
		pricing.WithUserTokens(AcceptsBrokerageToken(config.Clients.Prices.Provider)))
	ledgerSvc := ledger.NewService(store, accounts, prices, logger)

	return &App{
		Config:           config,
		Logger:           logger,
		Storage:          store,
		PriceOracle:      oracle,
		Spreadsheet:      sheetClient,
		AccountService:   accounts,
		LedgerService:    ledgerSvc,
		PricingService:   prices,
		ValuationService: valuation.NewService(store, accounts, prices, oracle, logger),
		SheetSyncService: sheetsync.NewService(sheetClient, accounts, ledgerSvc, logger),
		Tokens:           auth.NewSigner(config.Auth),
		StartupTime:      time.Now(),
	}, nil
}

// NewPriceChain creates the configured price provider, wrapped in a
// fallback chain when [clients.prices] fallback is set.
func NewPriceChain(cfg common.PricesConfig, logger *common.Logger) (interfaces.PriceOracle, error) {
	primary, err := NewPriceOracle(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Fallback == "" || strings.EqualFold(cfg.Fallback, cfg.Provider) {
		return primary, nil
	}

	fallbackCfg := cfg
	fallbackCfg.Provider = cfg.Fallback
	fallbackCfg.APIKey = cfg.FallbackAPIKey
	fallbackCfg.BaseURL = ""
	secondary, err := NewPriceOracle(fallbackCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("price fallback: %w", err)
	}
	return quote.NewService(logger,
		quote.Source{Name: cfg.Provider, Oracle: primary},
		quote.Source{Name: cfg.Fallback, Oracle: secondary, OwnCredential: true, Key: cfg.FallbackAPIKey},
	), nil
}

// AcceptsBrokerageToken reports whether the price provider authenticates
// with the per-user Tinkoff Invest token.
func AcceptsBrokerageToken(provider string) bool {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "tinkoff":
		return true
	}
	return false
}

// NewPriceOracle creates the price client named by [clients.prices] provider.
func NewPriceOracle(cfg common.PricesConfig, logger *common.Logger) (interfaces.PriceOracle, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "tinkoff":
		opts := []tinkoff.ClientOption{
			tinkoff.WithLogger(logger),
			tinkoff.WithRateLimit(cfg.RateLimit),
			tinkoff.WithTimeout(cfg.GetTimeout()),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, tinkoff.WithBaseURL(cfg.BaseURL))
		}
		return tinkoff.NewClient(opts...), nil

	case "eodhd":
		opts := []eodhd.ClientOption{
			eodhd.WithLogger(logger),
			eodhd.WithRateLimit(cfg.RateLimit),
			eodhd.WithTimeout(cfg.GetTimeout()),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, eodhd.WithBaseURL(cfg.BaseURL))
		}
		return eodhd.NewClient(cfg.APIKey, opts...), nil

	default:
		return nil, fmt.Errorf("unknown price provider: %s (supported: tinkoff, eodhd)", cfg.Provider)
	}
}

// NewSpreadsheet creates the spreadsheet client named by [clients.sheets] provider.
func NewSpreadsheet(ctx context.Context, config *common.Config, logger *common.Logger) (interfaces.SpreadsheetSync, error) {
	cfg := config.Clients.Sheets
	switch strings.ToLower(cfg.Provider) {
	case "", "google":
		opts := []sheets.ClientOption{
			sheets.WithLogger(logger),
			sheets.WithTimeout(cfg.GetTimeout()),
		}
		if cfg.SheetName != "" {
			opts = append(opts, sheets.WithSheetName(cfg.SheetName))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, sheets.WithEndpoint(cfg.BaseURL))
		}
		return sheets.NewClient(opts...), nil

	case "s3":
		c, err := s3sheet.NewClient(ctx, config.Clients.S3, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 spreadsheet client: %w", err)
		}
		return c, nil

	default:
		return nil, fmt.Errorf("unknown sheets provider: %s (supported: google, s3)", cfg.Provider)
	}
}

// Close releases storage resources.
func (a *App) Close() {
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
}
