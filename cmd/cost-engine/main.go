package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opscart/cloud-cost-optimizer/pkg/approval"
	"github.com/opscart/cloud-cost-optimizer/pkg/auth"
	"github.com/opscart/cloud-cost-optimizer/pkg/config"
	"github.com/opscart/cloud-cost-optimizer/pkg/events"
	"github.com/opscart/cloud-cost-optimizer/pkg/executor"
	"github.com/opscart/cloud-cost-optimizer/pkg/metrics"
	"github.com/opscart/cloud-cost-optimizer/pkg/models"
	"github.com/opscart/cloud-cost-optimizer/pkg/output"
	"github.com/opscart/cloud-cost-optimizer/pkg/pricing"
	"github.com/opscart/cloud-cost-optimizer/pkg/recommender"
	"github.com/opscart/cloud-cost-optimizer/pkg/reporter"
	"github.com/opscart/cloud-cost-optimizer/pkg/risk"
	"github.com/opscart/cloud-cost-optimizer/pkg/scheduler"
	"github.com/opscart/cloud-cost-optimizer/pkg/server"
	"github.com/opscart/cloud-cost-optimizer/pkg/storage"
	"github.com/opscart/cloud-cost-optimizer/pkg/telemetry"
)

var (
	// Serve flags
	listenAddr   string
	authDisabled bool

	// Scan flags
	outputFormat string
	saveResults  bool
	resourceType string

	// History flags
	historyStatus string
	historyLimit  int

	// Report flags
	reportFormat string
	reportOutput string

	verbose bool

	// Global config
	cfg *config.Config
)

func main() {
	cfg = config.New()

	var rootCmd = &cobra.Command{
		Use:   "cost-engine",
		Short: "Cloud cost optimization engine",
		Long:  `Scan cloud resource inventories for waste, generate savings recommendations, and execute approved optimizations.`,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scan loop, execution engine and API server",
		Run:   runServe,
	}
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides LISTEN_ADDR)")
	serveCmd.Flags().BoolVar(&authDisabled, "auth-disabled", false, "Disable authentication, every caller is an admin (overrides AUTH_DISABLED)")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single scan cycle and print the findings",
		Run:   runScan,
	}
	scanCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json")
	scanCmd.Flags().BoolVar(&saveResults, "save", false, "Persist recommendations to the database")
	scanCmd.Flags().StringVar(&resourceType, "type", "", "Scan a single resource type")

	historyCmd := &cobra.Command{
		Use:   "history [resource-id]",
		Short: "List stored recommendations, optionally for one resource",
		Args:  cobra.MaximumNArgs(1),
		Run:   runHistory,
	}
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "Filter by status")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of recommendations to show")

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a savings report from stored recommendations",
		Run:   runReport,
	}
	reportCmd.Flags().StringVar(&reportFormat, "format", "csv", "Report format: csv, json")
	reportCmd.Flags().StringVar(&reportOutput, "out", "", "Output file (default stdout)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(reportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	if verbose || cfg.Verbose {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}

func initStore(logger *zap.Logger) (storage.Store, error) {
	if !cfg.StorageEnabled {
		logger.Info("Using in-memory store, recommendations do not survive restarts")
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func initPricing(ctx context.Context) (pricing.Provider, error) {
	return pricing.NewProvider(ctx, nil, &pricing.Config{
		Provider: cfg.PricingProvider,
		Region:   cfg.PricingRegion,
	})
}

func initTelemetry(logger *zap.Logger) (telemetry.Provider, error) {
	return telemetry.NewProvider(telemetry.Config{
		Source:            cfg.TelemetrySource,
		PrometheusURL:     cfg.PrometheusURL,
		ObservationWindow: cfg.ObservationWindow,
	}, logger)
}

func runServe(cmd *cobra.Command, args []string) {
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if authDisabled {
		cfg.AuthDisabled = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger()
	defer logger.Sync()

	overrides, err := risk.ParseOverrides(cfg.RiskOverrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid RISK_OVERRIDES: %v\n", err)
		os.Exit(1)
	}
	minRole, err := auth.ParseRole(cfg.MinApprovalRole)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := initStore(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	pricer, err := initPricing(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	inventory, err := initTelemetry(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var tokens *auth.TokenManager
	if !cfg.AuthDisabled {
		tokens, err = auth.NewTokenManager(cfg.JWTSecret, 24*time.Hour)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	collectors := metrics.NewCollectors()
	hub := events.NewHub(logger)
	collectors.TrackClientCount(hub.ClientCount)

	exec := executor.New(executor.Config{
		Policy: executor.Policy{
			MaxAttempts:    cfg.ExecMaxAttempts,
			BaseDelay:      cfg.ExecBaseDelay,
			MaxDelay:       cfg.ExecMaxDelay,
			JitterFraction: 0.3,
		},
		CallTimeout: cfg.ExecCallTimeout,
	}, store, executor.NewSimulatedAdapter(), hub, logger)
	exec.SetMetrics(collectors)

	sched := scheduler.New(scheduler.Config{
		ScanInterval: cfg.ScanInterval,
		Workers:      cfg.Workers,
		ClaimTimeout: cfg.ClaimTimeout,
	}, inventory, store, risk.NewPolicy(overrides),
		recommender.New(pricer), exec, hub, logger)
	sched.SetMetrics(collectors)

	approvals := approval.New(store, exec, minRole, logger)
	aggregator := metrics.NewAggregator(store, inventory, pricer, logger)

	srv := server.New(server.Config{
		ListenAddr:   cfg.ListenAddr,
		AuthDisabled: cfg.AuthDisabled,
	}, server.Deps{
		Store:      store,
		Telemetry:  inventory,
		Approvals:  approvals,
		Aggregator: aggregator,
		Collectors: collectors,
		Hub:        hub,
		Tokens:     tokens,
		Logger:     logger,
	})

	go sched.Run(ctx)

	if err := srv.Start(ctx); err != nil {
		logger.Error("HTTP server failed", zap.Error(err))
	}

	// The server returns once ctx is cancelled; drain in-flight
	// executions before closing the store.
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := exec.Close(drainCtx); err != nil {
		logger.Warn("Executions still in flight at shutdown", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}

func runScan(cmd *cobra.Command, args []string) {
	handler, err := output.NewHandler(outputFormat, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	if verbose {
		logger = newLogger()
	}
	ctx := context.Background()

	var store storage.Store = storage.NewMemoryStore()
	if saveResults {
		if !cfg.StorageEnabled {
			fmt.Fprintln(os.Stderr, "Error: --save requires STORAGE_ENABLED=true and DATABASE_URL")
			os.Exit(1)
		}
		store, err = storage.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	defer store.Close()

	pricer, err := initPricing(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	inventory, err := initTelemetry(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	overrides, err := risk.ParseOverrides(cfg.RiskOverrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid RISK_OVERRIDES: %v\n", err)
		os.Exit(1)
	}

	// No dispatcher: a one-shot scan reports, it does not execute.
	sched := scheduler.New(scheduler.Config{
		ScanInterval: cfg.ScanInterval,
		Workers:      cfg.Workers,
		ClaimTimeout: cfg.ClaimTimeout,
	}, inventory, store, risk.NewPolicy(overrides),
		recommender.New(pricer), nil, nil, logger)

	stats, err := sched.ScanOnce(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: scan failed: %v\n", err)
		os.Exit(1)
	}

	filter := storage.Filter{Statuses: models.ActiveStatuses()}
	if resourceType != "" {
		filter.Type = models.ResourceType(resourceType)
	}
	recommendations, err := store.ListRecommendations(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if handler.Format() == "text" {
		fmt.Printf("[INFO] Scanned %d resources: %d findings, %d new, %d deduplicated\n\n",
			stats.Resources, stats.Detections, stats.Created, stats.Deduped)
	}

	var total float64
	for _, rec := range recommendations {
		total += rec.MonthlySavings
	}
	if err := handler.DisplayRecommendations(ctx, recommendations); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := handler.DisplaySummary(ctx, total, len(recommendations)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func initStoredOnly() storage.Store {
	if !cfg.StorageEnabled {
		fmt.Fprintln(os.Stderr, "Error: this command requires STORAGE_ENABLED=true and DATABASE_URL")
		os.Exit(1)
	}
	store, err := storage.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return store
}

func runHistory(cmd *cobra.Command, args []string) {
	store := initStoredOnly()
	defer store.Close()

	ctx := context.Background()
	filter := storage.Filter{Limit: historyLimit}
	if len(args) > 0 {
		filter.ResourceID = args[0]
	}
	if historyStatus != "" {
		status, err := models.ParseStatus(historyStatus)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Statuses = []models.Status{status}
	}

	recommendations, err := store.ListRecommendations(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(recommendations) == 0 {
		fmt.Println("No recommendations found")
		return
	}

	fmt.Printf("Recent recommendations:\n\n")
	for i, rec := range recommendations {
		fmt.Printf("%d. %s (ID: %s)\n", i+1, rec.ResourceID, rec.ID)
		fmt.Printf("   Type: %s\n", rec.ResourceType)
		fmt.Printf("   Action: %s\n", rec.Action)
		fmt.Printf("   Savings: $%.2f/mo\n", rec.MonthlySavings)
		fmt.Printf("   Status: %s\n", rec.Status)
		if rec.ActedBy != "" {
			fmt.Printf("   Acted by: %s\n", rec.ActedBy)
		}
		if rec.LastError != "" {
			fmt.Printf("   Last error: %s\n", rec.LastError)
		}
		fmt.Printf("   Created: %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

func runReport(cmd *cobra.Command, args []string) {
	store := initStoredOnly()
	defer store.Close()

	rep, err := reporter.New(reporter.ReportFormat(reportFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	recommendations, err := store.ListRecommendations(context.Background(), storage.Filter{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out := os.Stdout
	if reportOutput != "" {
		out, err = os.Create(reportOutput)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	report := rep.Generate(recommendations)
	if err := rep.Write(report, out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to write report: %v\n", err)
		os.Exit(1)
	}
	if reportOutput != "" {
		fmt.Printf("Report written to %s (%d recommendations)\n", reportOutput, report.TotalCount)
	}
}
