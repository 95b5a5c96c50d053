package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/auth"
	"github.com/bareeqalyusr/bnpl-backend/internal/cache"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/events"
	"github.com/bareeqalyusr/bnpl-backend/internal/customer"
	customerpg "github.com/bareeqalyusr/bnpl-backend/internal/customer/postgres"
	"github.com/bareeqalyusr/bnpl-backend/internal/merchant"
	merchantpg "github.com/bareeqalyusr/bnpl-backend/internal/merchant/postgres"
	"github.com/bareeqalyusr/bnpl-backend/internal/metrics"
	"github.com/bareeqalyusr/bnpl-backend/internal/payment"
	paymentpg "github.com/bareeqalyusr/bnpl-backend/internal/payment/postgres"
	"github.com/bareeqalyusr/bnpl-backend/internal/purchase"
	purchasepg "github.com/bareeqalyusr/bnpl-backend/internal/purchase/postgres"
	repaymentpg "github.com/bareeqalyusr/bnpl-backend/internal/repayment/postgres"
	"github.com/bareeqalyusr/bnpl-backend/internal/settlement"
	settlementpg "github.com/bareeqalyusr/bnpl-backend/internal/settlement/postgres"
	transactionpg "github.com/bareeqalyusr/bnpl-backend/internal/transaction/postgres"
	"github.com/bareeqalyusr/bnpl-backend/internal/transport/rest"
	userpg "github.com/bareeqalyusr/bnpl-backend/internal/user/postgres"
	"github.com/bareeqalyusr/bnpl-backend/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	Gorm   *gorm.DB
	DB     *sqlx.DB
	Cache  *cache.Cache
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

// profileRegistrar bridges user registration to the role-specific profile
// services.
type profileRegistrar struct {
	customers *customer.Service
	merchants *merchant.Service
}

func (p profileRegistrar) RegisterCustomer(ctx context.Context, userID int64) error {
	_, err := p.customers.Register(ctx, userID)
	return err
}

func (p profileRegistrar) RegisterMerchant(ctx context.Context, userID int64, shopName string) error {
	_, err := p.merchants.Register(ctx, userID, shopName)
	return err
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	lg := logger.L()

	rules, err := config.Business.Rules()
	if err != nil {
		return nil, fmt.Errorf("invalid business rules: %w", err)
	}

	gdb, sqlDB, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	metrics.Init()
	bus := events.NewEventBus(lg)
	metrics.SubscribeToBus(bus)

	statsCache := cache.New(config.Redis, lg)
	attempts := rules.WriteRetryAttempts

	customerRepo := customerpg.NewCustomerRepository(gdb)
	merchantRepo := merchantpg.NewMerchantRepository(gdb)
	requestRepo := purchasepg.NewRequestRepository(gdb)
	transactionRepo := transactionpg.NewTransactionRepository(gdb)
	repaymentRepo := repaymentpg.NewRepaymentRepository(gdb)
	paymentRepo := paymentpg.NewPaymentRepository(gdb)
	settlementRepo := settlementpg.NewSettlementRepository(gdb)
	userRepo := userpg.NewUserRepository(gdb)

	customerService := customer.NewService(customerRepo, customerpg.NewTxManager(gdb, attempts), rules, bus, lg)
	merchantService := merchant.NewService(merchantRepo, statsCache, bus, lg)
	purchaseService := purchase.NewService(requestRepo, customerRepo, merchantRepo,
		purchasepg.NewTxManager(gdb, attempts), bus, rules, lg)
	paymentService := payment.NewService(paymentRepo, transactionRepo, repaymentRepo,
		paymentpg.NewTxManager(gdb, attempts), bus, lg)
	settlementService := settlement.NewService(settlementRepo,
		settlementpg.NewTxManager(gdb, attempts), bus, lg)

	authService, err := auth.NewService(userRepo, profileRegistrar{
		customers: customerService,
		merchants: merchantService,
	}, config.Security, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	handlers := rest.Handlers{
		Auth:       auth.NewHandler(authService),
		Customer:   customer.NewHandler(customerService),
		Merchant:   merchant.NewHandler(merchantService),
		Purchase:   purchase.NewHandler(purchaseService, customerService, merchantService),
		Payment:    payment.NewHandler(paymentService, customerService, merchantService),
		Settlement: settlement.NewHandler(settlementService, merchantService),
	}

	router := chi.NewRouter()
	var pinger rest.Pinger
	if statsCache != nil {
		pinger = statsCache
	}
	rest.RegisterAllRoutes(router, sqlDB.DB, pinger, handlers, lg)

	return &Dependencies{
		Config: config,
		Gorm:   gdb,
		DB:     sqlDB,
		Cache:  statsCache,
		Router: router,
		Logger: lg,
	}, nil
}

// initDB opens GORM for the repositories plus a pgx-backed sqlx handle for
// health checks and the seeder.
func initDB(cfg internal.DatabaseConfig) (*gorm.DB, *sqlx.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Source)
	default:
		dialector = postgres.Open(cfg.Source)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open gorm connection: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to unwrap sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver := cfg.Driver
	if driver == "" || driver == "postgres" {
		driver = "pgx"
	}
	return gdb, sqlx.NewDb(sqlDB, driver), nil
}
