package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"naturepark-cloud/internal/audit"
	"naturepark-cloud/internal/auth"
	"naturepark-cloud/internal/feedback"
	"naturepark-cloud/internal/flora"
	"naturepark-cloud/internal/observability/metrics"
	"naturepark-cloud/internal/rewards"
	"naturepark-cloud/internal/routes"
	stationpostgres "naturepark-cloud/internal/stations/infrastructure/postgres"
	stationhttp "naturepark-cloud/internal/stations/interfaces/http"
	"naturepark-cloud/internal/users"
	"naturepark-cloud/internal/weather"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	stationRepo := stationpostgres.NewStationRepository(db)
	measurementRepo := stationpostgres.NewMeasurementRepository(db)

	ingestHandler, err := stationhttp.NewIngestHandler(stationRepo, measurementRepo, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	queryHandler, err := stationhttp.NewQueryHandler(measurementRepo, logger)
	if err != nil {
		logger.Fatalf("query handler error: %v", err)
	}
	stationsHandler, err := stationhttp.NewStationsHandler(stationRepo, measurementRepo, auditRepo, logger)
	if err != nil {
		logger.Fatalf("stations handler error: %v", err)
	}

	weatherClient, err := weather.NewClient(cfg.WeatherBaseURL)
	if err != nil {
		logger.Fatalf("weather client error: %v", err)
	}
	weatherHandler, err := weather.NewHandler(weatherClient, weather.NewCache(), logger)
	if err != nil {
		logger.Fatalf("weather handler error: %v", err)
	}

	userRepo := users.NewPostgresRepository(db)
	usersHandler, err := users.NewHandler(userRepo, []byte(cfg.JWTSecret), auditRepo, logger)
	if err != nil {
		logger.Fatalf("users handler error: %v", err)
	}

	feedbackHandler, err := feedback.NewHandler(feedback.NewPostgresRepository(db), auditRepo, logger)
	if err != nil {
		logger.Fatalf("feedback handler error: %v", err)
	}
	routesHandler, err := routes.NewHandler(routes.NewPostgresRepository(db), auditRepo, logger)
	if err != nil {
		logger.Fatalf("routes handler error: %v", err)
	}
	floraHandler, err := flora.NewHandler(flora.NewPostgresRepository(db), auditRepo, logger)
	if err != nil {
		logger.Fatalf("flora handler error: %v", err)
	}
	rewardsHandler, err := rewards.NewHandler(rewards.NewPostgresRepository(db), auditRepo, logger)
	if err != nil {
		logger.Fatalf("rewards handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy(
		[]string{"/healthz", "/metrics", "/api/v1/iot-data", "/api/v1/users/register", "/api/v1/users/login"},
		[]string{"/api/v1/weather/"},
	)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/iot-data", ingestHandler)
	mux.Handle("/api/v1/measurements", queryHandler)
	mux.Handle("/api/v1/stations", stationsHandler)
	mux.Handle("/api/v1/stations/", stationsHandler)
	mux.Handle("/api/v1/weather/", weatherHandler)
	mux.Handle("/api/v1/users/", usersHandler)
	mux.Handle("/api/v1/admin/users", usersHandler)
	mux.Handle("/api/v1/feedback", feedbackHandler)
	mux.Handle("/api/v1/admin/feedback", feedbackHandler)
	mux.Handle("/api/v1/admin/feedback/", feedbackHandler)
	mux.Handle("/api/v1/routes", routesHandler)
	mux.Handle("/api/v1/routes/", routesHandler)
	mux.Handle("/api/v1/flora", floraHandler)
	mux.Handle("/api/v1/flora/", floraHandler)
	mux.Handle("/api/v1/qr", rewardsHandler)
	mux.Handle("/api/v1/qr/", rewardsHandler)
	mux.Handle("/api/v1/rewards", rewardsHandler)
	mux.Handle("/api/v1/rewards/", rewardsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL    string
	HTTPAddr       string
	JWTSecret      string
	WeatherBaseURL string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:    getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:      getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		WeatherBaseURL: getenvDefault("WEATHER_BASE_URL", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
