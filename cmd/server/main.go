package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/engravehub/backoffice/internal/inventory"
	"github.com/engravehub/backoffice/internal/losses"
	"github.com/engravehub/backoffice/internal/messaging"
	"github.com/engravehub/backoffice/internal/orders"
	"github.com/engravehub/backoffice/internal/quotes"
	"github.com/engravehub/backoffice/internal/reports"
	"github.com/engravehub/backoffice/internal/telemetry"
)

const serviceVersion = "0.1.0"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "backoffice", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("backoffice", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var publisher orders.Publisher
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		producer := messaging.NewProducer(brokers, "order.completed")
		defer func() { _ = producer.Close() }()
		publisher = producer
	}

	orderRepo := orders.NewOrderRepository(db)
	productRepo := inventory.NewProductRepository(db)
	lossRepo := losses.NewLossRepository(db)
	quoteRepo := quotes.NewQuoteRepository(db, orderRepo)
	reportRepo := reports.NewReportRepository(db)

	reconciler, err := orders.NewReconciler(orderRepo, productRepo, orderRepo, logger)
	if err != nil {
		logger.Error("failed to create reconciler", "error", err)
		os.Exit(1)
	}

	shipping := quotes.FlatRateShipping{
		BaseCents:      1500,
		PerItemCents:   250,
		FreeAboveCents: 20000,
	}
	quoteService := quotes.NewService(productRepo, shipping)

	ordersHandler := orders.NewHandler(orderRepo, reconciler, publisher, logger)
	inventoryHandler := inventory.NewHandler(productRepo, logger)
	lossesHandler := losses.NewHandler(lossRepo, logger)
	quotesHandler := quotes.NewHandler(quoteService, quoteRepo, logger)
	reportsHandler := reports.NewHandler(reportRepo, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(ordersHandler.HandleList))
	mux.HandleFunc("POST /orders", telemetry.WithHTTPRoute(ordersHandler.HandleCreate))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(ordersHandler.HandleGet))
	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(ordersHandler.HandleUpdateStatus))

	mux.HandleFunc("GET /products", telemetry.WithHTTPRoute(inventoryHandler.HandleList))
	mux.HandleFunc("POST /products", telemetry.WithHTTPRoute(inventoryHandler.HandleCreate))
	mux.HandleFunc("GET /products/low-stock", telemetry.WithHTTPRoute(inventoryHandler.HandleLowStock))
	mux.HandleFunc("GET /products/{id}", telemetry.WithHTTPRoute(inventoryHandler.HandleGet))
	mux.HandleFunc("PATCH /products/{id}/stock", telemetry.WithHTTPRoute(inventoryHandler.HandleAdjustStock))

	mux.HandleFunc("GET /losses", telemetry.WithHTTPRoute(lossesHandler.HandleList))
	mux.HandleFunc("POST /losses", telemetry.WithHTTPRoute(lossesHandler.HandleRecord))

	mux.HandleFunc("POST /quotes", telemetry.WithHTTPRoute(quotesHandler.HandleCreate))
	mux.HandleFunc("GET /quotes/{id}", telemetry.WithHTTPRoute(quotesHandler.HandleGet))
	mux.HandleFunc("POST /quotes/{id}/convert", telemetry.WithHTTPRoute(quotesHandler.HandleConvert))

	mux.HandleFunc("GET /reports/dashboard", telemetry.WithHTTPRoute(reportsHandler.HandleDashboard))

	mux.Handle("GET /metrics", metricsHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "backoffice",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting backoffice service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
