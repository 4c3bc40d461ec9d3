package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/readmit-risk-server/internal/api"
	"github.com/readmit-risk-server/internal/config"
	"github.com/readmit-risk-server/internal/database"
	"github.com/readmit-risk-server/internal/domain"
	"github.com/readmit-risk-server/internal/followup"
	"github.com/readmit-risk-server/internal/repository"
	"github.com/readmit-risk-server/internal/service"
	"github.com/readmit-risk-server/pkg/external"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting readmission risk server")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	environment, cacheClient := buildEnvironmentProvider(cfg, logger)
	if cacheClient != nil {
		defer cacheClient.Close()
	}

	heuristic := service.NewHeuristicEstimator(logger)
	assessor := service.NewAssessor(buildEstimators(cfg, heuristic, logger), heuristic, environment, logger)
	simulator := service.NewStaffingSimulator(cfg.Staffing, logger)

	followups, err := buildFollowupStore(cfg.Followup)
	if err != nil {
		logger.Fatalf("Failed to open follow-up store: %v", err)
	}
	defer followups.Close()

	assessments := buildAssessmentRepository(ctx, configManager, logger)

	server := api.NewServer(configManager, assessor, simulator, followups, assessments, logger)
	if err := server.Start(ctx); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}

	logger.Info("Server stopped")
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(os.Stdout)
	}

	return logger
}

// buildEstimators prefers a trained model per condition and falls back to
// the rule-based heuristic when no usable artifact is configured.
func buildEstimators(cfg *domain.Config, heuristic domain.RiskEstimator, logger *logrus.Logger) map[domain.ConditionType]domain.RiskEstimator {
	estimators := map[domain.ConditionType]domain.RiskEstimator{
		domain.ConditionDiabetes:     heuristic,
		domain.ConditionHeartFailure: heuristic,
	}

	paths := map[domain.ConditionType]string{
		domain.ConditionDiabetes:     cfg.Model.DiabetesPath,
		domain.ConditionHeartFailure: cfg.Model.HeartFailurePath,
	}
	for condition, path := range paths {
		if path == "" {
			continue
		}
		model := service.NewModelEstimator(condition, path, logger)
		if !model.Available() {
			logger.WithFields(logrus.Fields{
				"condition": condition,
				"path":      path,
			}).Warn("Model artifact unusable, keeping heuristic estimator")
			continue
		}
		estimators[condition] = model
		logger.WithField("condition", condition).Info("Using model estimator")
	}

	return estimators
}

// buildEnvironmentProvider wires the upstream clients behind circuit
// breakers, optionally with a Redis tier, and memoizes results per unit.
func buildEnvironmentProvider(cfg *domain.Config, logger *logrus.Logger) (domain.EnvironmentProvider, *external.CacheClient) {
	var (
		airQuality external.AirQualitySource
		events     external.EventsSource
	)
	if cfg.ExternalAPI.AirQuality.BaseURL != "" {
		airQuality = external.NewAirQualityClient(cfg.ExternalAPI.AirQuality)
	}
	if cfg.ExternalAPI.Events.BaseURL != "" {
		events = external.NewEventsClient(cfg.ExternalAPI.Events)
	}

	var cacheClient *external.CacheClient
	var cacheTier external.EnvironmentCache
	if cfg.Cache.Enabled {
		client, err := external.NewCacheClient(cfg.Cache)
		if err != nil {
			logger.WithField("error", err).Warn("Redis unavailable, continuing without shared cache")
		} else {
			cacheClient = client
			cacheTier = client
		}
	}

	resilient := external.NewResilientEnvironmentProvider(airQuality, events, cacheTier, cfg.Cache.DefaultTTL, logger)

	cached, err := service.NewCachedEnvironmentProvider(resilient, cfg.Cache.MemoryItems, 10*time.Minute, logger)
	if err != nil {
		logger.WithField("error", err).Warn("In-process environment cache disabled")
		return resilient, cacheClient
	}
	return cached, cacheClient
}

func buildFollowupStore(cfg domain.FollowupConfig) (followup.Store, error) {
	if cfg.Backend == "postgres" {
		return followup.NewPostgresStoreFromURL(cfg.PostgresURL)
	}
	return followup.NewSQLiteStore(cfg.SQLitePath)
}

// buildAssessmentRepository connects to Postgres and runs migrations. A
// missing database is tolerated; history endpoints report it as disabled.
func buildAssessmentRepository(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) domain.AssessmentRepository {
	cfg := configManager.GetDatabaseConfig()
	if cfg.Host == "" {
		logger.Info("Database not configured, assessment history disabled")
		return nil
	}

	db, err := database.NewConnection(ctx, *cfg, logger)
	if err != nil {
		logger.WithField("error", err).Warn("Database unreachable, assessment history disabled")
		return nil
	}

	if cfg.MigrationsPath != "" {
		runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), cfg.MigrationsPath, logger)
		if err != nil {
			logger.WithField("error", err).Warn("Migration runner unavailable")
		} else {
			if err := runner.Up(); err != nil {
				logger.WithField("error", err).Warn("Migrations failed")
			}
			runner.Close()
		}
	}

	return repository.NewAssessmentRepository(db, logger)
}
