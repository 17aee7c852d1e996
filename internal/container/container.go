package container

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"defect-pipeline/config"
	app "defect-pipeline/internal/application"
	"defect-pipeline/internal/domain/port"
	"defect-pipeline/internal/infrastructure/anomaly"
	"defect-pipeline/internal/infrastructure/catalog"
	"defect-pipeline/internal/infrastructure/embedding"
	"defect-pipeline/internal/infrastructure/vision"
	"defect-pipeline/internal/telemetry"
)

// Container собирает конвейер из конфигурации.
type Container struct {
	Engine   *app.VisionEngine
	Matcher  *app.EmbeddingMatcher
	Pipeline *app.PipelineOrchestrator
	Metrics  *telemetry.Metrics
	Registry *prometheus.Registry
}

// New строит все компоненты конвейера по конфигурации.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Container, error) {
	registry := prometheus.NewRegistry()
	metrics, err := telemetry.New(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	var detectors []port.Detector
	if cfg.Vision.Crack.Enabled {
		crack, err := vision.NewCrackDetector(cfg.Vision.Crack, cfg.Vision.MinImageSide, log)
		if err != nil {
			return nil, err
		}
		detectors = append(detectors, crack)
	}
	if cfg.Vision.Hole.Enabled {
		hole, err := vision.NewHoleDetector(cfg.Vision.Hole, cfg.Vision.MinImageSide, log)
		if err != nil {
			return nil, err
		}
		detectors = append(detectors, hole)
	}

	var anomalyDetector port.AnomalyTrainer
	if cfg.Vision.Anomaly.Enabled {
		extractor := vision.NewFeatureExtractor(log)
		anomalyDetector, err = anomaly.NewDetector(cfg.Vision.Anomaly, extractor, log)
		if err != nil {
			return nil, err
		}
	}

	engine, err := app.NewVisionEngine(cfg.Vision, detectors, anomalyDetector, metrics, log)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(cfg.Embedding, log)
	if err != nil {
		return nil, err
	}

	profileCatalog, err := newCatalog(ctx, cfg.Catalog, provider, log)
	if err != nil {
		return nil, err
	}

	matcher, err := app.NewEmbeddingMatcher(cfg.Match, provider, profileCatalog, metrics, log)
	if err != nil {
		return nil, err
	}

	pipeline, err := app.NewPipelineOrchestrator(cfg.Vision, cfg.Pipeline, engine, matcher, metrics, log)
	if err != nil {
		return nil, err
	}

	return &Container{
		Engine:   engine,
		Matcher:  matcher,
		Pipeline: pipeline,
		Metrics:  metrics,
		Registry: registry,
	}, nil
}

func newProvider(cfg config.EmbeddingConfig, log *zap.Logger) (port.EmbeddingProvider, error) {
	switch cfg.Provider {
	case "onnx":
		return embedding.NewONNXProvider(cfg.ModelDir, cfg.Dimension, log)
	default:
		return embedding.NewFakeProvider(cfg.Dimension)
	}
}

func newCatalog(ctx context.Context, cfg config.CatalogConfig, provider port.EmbeddingProvider, log *zap.Logger) (port.ProfileCatalog, error) {
	if cfg.SeedFile == "" {
		return nil, fmt.Errorf("catalog.seed_file is required")
	}
	profiles, err := catalog.LoadSeedFile(cfg.SeedFile)
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case "chromem":
		return catalog.NewChromemCatalog(ctx, cfg, profiles, provider, log)
	default:
		return catalog.NewMemoryCatalog(profiles)
	}
}
