package factory

import (
	"fmt"

	"go-wsi-cohort/internal/analyzer"
	"go-wsi-cohort/internal/config"
	"go-wsi-cohort/internal/export"
	"go-wsi-cohort/internal/normalizer"
	"go-wsi-cohort/internal/observer"
	"go-wsi-cohort/internal/repository"
	"go-wsi-cohort/internal/service"
	"go-wsi-cohort/internal/storage"
	"go-wsi-cohort/internal/strategy"
	"go-wsi-cohort/pkg/models"
	"go-wsi-cohort/pkg/validation"
)

// SourceType selects where image descriptors come from
type SourceType string

const (
	// ManifestSource reads a YAML or JSON descriptor manifest
	ManifestSource SourceType = "manifest"
	// HTTPSource queries a slide server
	HTTPSource SourceType = "http"
)

// StorageType represents different file-stat backends
type StorageType string

const (
	// LocalStorage for the local file system
	LocalStorage StorageType = "local"
	// HTTPStorage for HEAD requests against http(s) URIs
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
)

// RepositoryFactory creates image repositories
type RepositoryFactory interface {
	CreateRepository(sourceType SourceType) (repository.ImageRepository, error)
	CreateMemoryRepository(projectName string, slides []models.SlideDescriptor) repository.ImageRepository
}

// StorageFactory creates file-stat implementations
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.FileStatter, error)
	CreateRouter() (storage.FileStatter, error)
}

// repositoryFactory implements RepositoryFactory
type repositoryFactory struct {
	cfg *config.Config
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config) RepositoryFactory {
	return &repositoryFactory{cfg: cfg}
}

// CreateRepository creates a repository based on the specified source type
func (f *repositoryFactory) CreateRepository(sourceType SourceType) (repository.ImageRepository, error) {
	switch sourceType {
	case ManifestSource:
		repo, err := repository.NewManifestRepository(f.cfg.Source.Manifest, f.cfg.ProjectName)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case HTTPSource:
		if err := validation.NewURLValidator().ValidateServerURL(f.cfg.Source.BaseURL); err != nil {
			return nil, fmt.Errorf("source.base_url: %w", err)
		}
		client := storage.NewHTTPClient(f.cfg.Storage.HTTPTimeout)
		return repository.NewHTTPRepository(f.cfg.Source.BaseURL, client), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceType)
	}
}

// CreateMemoryRepository wraps descriptors received by the HTTP API
func (f *repositoryFactory) CreateMemoryRepository(projectName string, slides []models.SlideDescriptor) repository.ImageRepository {
	if projectName == "" {
		projectName = f.cfg.ProjectName
	}
	return repository.NewMemoryRepository(projectName, slides)
}

// storageFactory implements StorageFactory
type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates a statter based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.FileStatter, error) {
	switch storageType {
	case LocalStorage:
		return storage.NewLocalStatter(), nil
	case HTTPStorage:
		return storage.NewHTTPStatter(storage.NewHTTPClient(f.cfg.Storage.HTTPTimeout)), nil
	case AzureStorage:
		if f.cfg.Storage.AzureAccount == "" {
			return nil, fmt.Errorf("azure storage requires storage.azure_account")
		}
		return storage.NewAzureStatter(f.cfg.Storage.AzureEndpoint, f.cfg.Storage.AzureAccount, f.cfg.Storage.AzureKey)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// CreateRouter builds the scheme router over every available backend, cached
// when a TTL is configured. Azure is left out unless an account is set.
func (f *storageFactory) CreateRouter() (storage.FileStatter, error) {
	local, err := f.CreateStorage(LocalStorage)
	if err != nil {
		return nil, err
	}
	remote, err := f.CreateStorage(HTTPStorage)
	if err != nil {
		return nil, err
	}

	var azure storage.FileStatter
	if f.cfg.Storage.AzureAccount != "" {
		if azure, err = f.CreateStorage(AzureStorage); err != nil {
			return nil, err
		}
	}

	var statter storage.FileStatter = storage.NewRouter(local, remote, azure)
	if f.cfg.Storage.StatCacheTTL > 0 {
		statter = storage.NewCachedStatter(statter, f.cfg.Storage.StatCacheTTL)
	}
	return statter, nil
}

// ComponentFactory combines all factories and builds the extraction pipeline
type ComponentFactory struct {
	RepositoryFactory RepositoryFactory
	StorageFactory    StorageFactory
	cfg               *config.Config
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		RepositoryFactory: NewRepositoryFactory(cfg),
		StorageFactory:    NewStorageFactory(cfg),
		cfg:               cfg,
	}
}

// AnalysisOptions maps the quality and processing settings onto the analyzer
func (f *ComponentFactory) AnalysisOptions() analyzer.AnalysisOptions {
	return analyzer.DefaultOptions().
		WithTargetPixelSize(f.cfg.Quality.TargetPixelSizeUM).
		WithLargeImageThreshold(f.cfg.Quality.LargeImagePixels).
		WithWorkers(f.cfg.Processing.Workers)
}

// QualityValidator builds the validator from the configured thresholds
func (f *ComponentFactory) QualityValidator() *validation.QualityValidator {
	return validation.NewQualityValidatorWithThresholds(validation.QualityThresholds{
		MinImageAreaPixels: f.cfg.Quality.MinImageAreaPixels,
		MinPyramidLevels:   f.cfg.Quality.MinPyramidLevels,
		MaxFileSizeMB:      f.cfg.Quality.MaxFileSizeMB,
		MinPixelSizeUM:     f.cfg.Quality.MinPixelSizeUM,
		MaxPixelSizeUM:     f.cfg.Quality.MaxPixelSizeUM,
	})
}

// Extractors returns the extra-field chain run after normalization
func (f *ComponentFactory) Extractors(extra ...strategy.Extractor) *strategy.Chain {
	chain := strategy.NewChain(
		strategy.NewVendorExtractor(f.cfg.ScannerVendors, f.cfg.Quality.VendorMaxDistance),
		strategy.NewQualityCheckExtractor(f.QualityValidator()),
	)
	for _, e := range extra {
		chain.Add(e)
	}
	return chain
}

// ProcessingOptions maps the error policy
func (f *ComponentFactory) ProcessingOptions() service.ProcessingOptions {
	return service.ProcessingOptions{
		ProjectName:         f.cfg.ProjectName,
		ToolVersion:         config.Version,
		ContinueOnError:     f.cfg.Processing.ContinueOnError,
		MaxErrorsBeforeStop: f.cfg.Processing.MaxErrorsBeforeStop,
		SkipCorruptedImages: f.cfg.Processing.SkipCorruptedImages,
		RetryFailed:         f.cfg.Processing.RetryFailed,
		ImageTimeout:        f.cfg.Processing.ImageTimeout,
	}
}

// CreateService wires the normalizer, analyzer and extractor chain into the
// cohort aggregator
func (f *ComponentFactory) CreateService(statter storage.FileStatter, publisher observer.Subject, extra ...strategy.Extractor) service.CohortService {
	analysis := f.AnalysisOptions()
	norm := normalizer.New(statter).WithProjectName(f.cfg.ProjectName)
	return service.NewCohortService(
		norm,
		analyzer.NewQualityAnalyzer(analysis),
		f.Extractors(extra...),
		publisher,
		analysis,
		f.ProcessingOptions(),
	)
}

// CreateExporter maps the output settings
func (f *ComponentFactory) CreateExporter() *export.Exporter {
	out := f.cfg.Output
	opts := export.Options{
		Directory:            out.Directory,
		CSVFile:              out.CSVFile,
		JSONFile:             out.JSONFile,
		LogFile:              out.LogFile,
		Precision:            out.FloatPrecision,
		ToolVersion:          config.Version,
		ProjectName:          f.cfg.ProjectName,
		IncludeSummary:       out.IncludeDetailedSummary,
		IncludeProcessingLog: out.IncludeProcessingLog,
	}
	if out.IncludeParquet {
		opts.ParquetFile = out.ParquetFile
	}
	return export.NewExporter(opts)
}
