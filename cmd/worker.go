package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bareeqalyusr/bnpl-backend/internal"
	"github.com/bareeqalyusr/bnpl-backend/internal/core/events"
	customerpg "github.com/bareeqalyusr/bnpl-backend/internal/customer/postgres"
	merchantpg "github.com/bareeqalyusr/bnpl-backend/internal/merchant/postgres"
	"github.com/bareeqalyusr/bnpl-backend/internal/metrics"
	"github.com/bareeqalyusr/bnpl-backend/internal/payment"
	paymentpg "github.com/bareeqalyusr/bnpl-backend/internal/payment/postgres"
	"github.com/bareeqalyusr/bnpl-backend/internal/purchase"
	purchasepg "github.com/bareeqalyusr/bnpl-backend/internal/purchase/postgres"
	repaymentpg "github.com/bareeqalyusr/bnpl-backend/internal/repayment/postgres"
	transactionpg "github.com/bareeqalyusr/bnpl-backend/internal/transaction/postgres"
	"github.com/bareeqalyusr/bnpl-backend/internal/worker"
	"github.com/bareeqalyusr/bnpl-backend/pkg/logger"
)

// sweepServices holds the two services the sweeper drives.
type sweepServices struct {
	Purchases *purchase.Service
	Payments  *payment.Service
}

func buildSweepServices(deps *Dependencies, rules internal.BusinessRules) (*sweepServices, error) {
	gdb := deps.Gorm
	lg := deps.Logger
	bus := events.NewEventBus(lg)
	metrics.SubscribeToBus(bus)
	attempts := rules.WriteRetryAttempts

	purchaseService := purchase.NewService(
		purchasepg.NewRequestRepository(gdb),
		customerpg.NewCustomerRepository(gdb),
		merchantpg.NewMerchantRepository(gdb),
		purchasepg.NewTxManager(gdb, attempts), bus, rules, lg)
	paymentService := payment.NewService(
		paymentpg.NewPaymentRepository(gdb),
		transactionpg.NewTransactionRepository(gdb),
		repaymentpg.NewRepaymentRepository(gdb),
		paymentpg.NewTxManager(gdb, attempts), bus, lg)

	return &sweepServices{Purchases: purchaseService, Payments: paymentService}, nil
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background sweep worker",
	Long:  `Start the sweeper that expires stale purchase requests and marks overdue transactions.`,
	Run: func(cmd *cobra.Command, args []string) {
		startSweepWorker()
	},
}

var (
	sweepInterval time.Duration
	sweepBatch    int
	workerCount   int
)

func init() {
	workerCmd.Flags().DurationVar(&sweepInterval, "interval", 5*time.Minute, "how often to run the sweeps")
	workerCmd.Flags().IntVar(&sweepBatch, "batch", 100, "max rows per sweep run")
	workerCmd.Flags().IntVar(&workerCount, "workers", 2, "worker pool size")
}

func startSweepWorker() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	lg := logger.L()

	rules, err := deps.Config.Business.Rules()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid business rules: %v\n", err)
		os.Exit(1)
	}

	services, err := buildSweepServices(deps, rules)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build services: %v\n", err)
		os.Exit(1)
	}

	pool := worker.NewPool(workerCount)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	lg.Info("sweep worker started", "interval", sweepInterval, "batch", sweepBatch)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	runSweeps := func() {
		pool.Submit(func() {
			ctx, cancel := context.WithTimeout(context.Background(), sweepInterval)
			defer cancel()
			metrics.SweepRunsTotal.WithLabelValues("expiry").Inc()
			n, err := services.Purchases.ExpireStale(ctx, sweepBatch)
			if err != nil {
				lg.Error("expiry sweep failed", "error", err)
				return
			}
			metrics.SweptRowsTotal.WithLabelValues("expiry").Add(float64(n))
		})
		pool.Submit(func() {
			ctx, cancel := context.WithTimeout(context.Background(), sweepInterval)
			defer cancel()
			metrics.SweepRunsTotal.WithLabelValues("overdue").Inc()
			n, err := services.Payments.SweepOverdue(ctx, sweepBatch)
			if err != nil {
				lg.Error("overdue sweep failed", "error", err)
				return
			}
			metrics.SweptRowsTotal.WithLabelValues("overdue").Add(float64(n))
		})
	}

	runSweeps()
	for {
		select {
		case <-ticker.C:
			runSweeps()
		case sig := <-sigChan:
			lg.Info("received signal, stopping sweep worker", "signal", sig)
			pool.Stop()
			if err := deps.DB.Close(); err != nil {
				lg.Error("database close error", "error", err)
			}
			return
		}
	}
}
