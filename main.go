package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediTrackAPI/handlers"
	"mediTrackAPI/internal/config"
	"mediTrackAPI/internal/store"
	"mediTrackAPI/middleware"
	"mediTrackAPI/services"

	_ "net/http/pprof"
)

var (
	cfg               config.Config
	logStore          store.Store
	medicationService *services.MedicationService
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logStore, err = store.Open(ctx, store.Driver(cfg.StoreDriver), cfg.StoreDSN())
	if err != nil {
		log.Fatal("Failed to open medication log store: ", err)
	}
	log.Printf("Medication log store ready (driver=%s)", cfg.StoreDriver)

	medicationService = services.NewMedicationService(logStore, cfg.Location)

	middleware.InitPrometheus()
	store.InitPrometheus()
}

func newRouter(medicationHandler *handlers.MedicationHandler, limiter *middleware.RateLimiter) *mux.Router {
	r := mux.NewRouter()

	r.Use(limiter.Middleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(cfg.PprofSecret)(http.DefaultServeMux))

	r.HandleFunc("/health", medicationHandler.Health).Methods("GET")

	// The resource is mounted at its bare path and under both API prefixes the
	// web client has used.
	for _, prefix := range []string{"", "/api", "/api/v1"} {
		sub := r.PathPrefix(prefix + "/medication").Subrouter()
		sub.HandleFunc("", medicationHandler.GetLogs).Methods("GET")
		sub.HandleFunc("", medicationHandler.UpsertLog).Methods("POST")
		sub.HandleFunc("/calendar", medicationHandler.GetCalendar).Methods("GET")
	}

	return r
}

func main() {
	defer func() {
		log.Println("Closing medication log store...")
		if err := logStore.Close(); err != nil {
			log.Printf("Store close error: %v", err)
		}
	}()

	medicationHandler := handlers.NewMedicationHandler(medicationService)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go limiter.CleanupVisitors(cleanupCtx)

	r := newRouter(medicationHandler, limiter)

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins(cfg.AllowedOrigins),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	port := ":" + cfg.Port

	server := http.Server{
		Addr:         port,
		Handler:      gorilllaHandlers.CombinedLoggingHandler(os.Stdout, corsHandler(r)),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
