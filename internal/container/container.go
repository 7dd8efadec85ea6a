package container

import (
	"context"
	"fmt"
	"net/http"

	"go-wsi-cohort/internal/config"
	"go-wsi-cohort/internal/export"
	"go-wsi-cohort/internal/factory"
	"go-wsi-cohort/internal/logger"
	"go-wsi-cohort/internal/observer"
	"go-wsi-cohort/internal/service"
	"go-wsi-cohort/internal/storage"
	"go-wsi-cohort/internal/strategy"
	"go-wsi-cohort/internal/transport"
	"go-wsi-cohort/pkg/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Container holds all application dependencies
type Container struct {
	config        *config.Config
	factory       *factory.ComponentFactory
	statter       storage.FileStatter
	publisher     observer.Subject
	metrics       *observer.MetricsObserver
	registry      *prometheus.Registry
	cohortService service.CohortService
	exporter      *export.Exporter
	handler       http.Handler
}

// NewContainer creates a new dependency injection container. Extra extractors
// run after the built-in vendor and quality extractors.
func NewContainer(cfg *config.Config, extra ...strategy.Extractor) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.SetLevel(cfg.Log.Level)
	logger.SetFormat(cfg.Log.Format)

	f := factory.NewComponentFactory(cfg)

	// Build dependency graph
	statter, err := f.StorageFactory.CreateRouter()
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observer.NewMetricsObserver(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	cohortService := f.CreateService(statter, publisher, extra...)
	handler := transport.NewHandler(cohortService, cfg, metrics, registry)

	return &Container{
		config:        cfg,
		factory:       f,
		statter:       statter,
		publisher:     publisher,
		metrics:       metrics,
		registry:      registry,
		cohortService: cohortService,
		exporter:      f.CreateExporter(),
		handler:       handler,
	}, nil
}

// Extract runs the configured source through the pipeline and writes every
// enabled output. A run stopped early is still exported, marked partial.
func (c *Container) Extract(ctx context.Context) (*models.CohortResult, export.Files, error) {
	if err := c.config.EnsureOutputDir(); err != nil {
		return nil, export.Files{}, err
	}

	repo, err := c.factory.RepositoryFactory.CreateRepository(factory.SourceType(c.config.Source.Type))
	if err != nil {
		return nil, export.Files{}, err
	}

	result, err := c.cohortService.ProcessCollection(ctx, repo)
	if err != nil {
		return nil, export.Files{}, err
	}

	files, err := c.exporter.Export(result)
	return result, files, err
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the cohort aggregator
func (c *Container) Service() service.CohortService {
	return c.cohortService
}

// Exporter returns the configured exporter
func (c *Container) Exporter() *export.Exporter {
	return c.exporter
}

// Metrics returns the metrics observer
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}
