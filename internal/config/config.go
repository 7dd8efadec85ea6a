package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "go-wsi-cohort/internal/errors"
	"go-wsi-cohort/internal/metadata"

	"github.com/spf13/viper"
)

// Version is the tool/version tag stamped on records and exports
const Version = "wsicohort/1.4.0"

type Config struct {
	ProjectName    string            `mapstructure:"project_name"`
	Output         OutputConfig      `mapstructure:"output"`
	Quality        QualityConfig     `mapstructure:"quality"`
	Processing     ProcessingConfig  `mapstructure:"processing"`
	Storage        StorageConfig     `mapstructure:"storage"`
	Source         SourceConfig      `mapstructure:"source"`
	Server         ServerConfig      `mapstructure:"server"`
	Log            LogConfig         `mapstructure:"log"`
	ScannerVendors map[string]string `mapstructure:"scanner_vendors"`
}

type OutputConfig struct {
	Directory              string `mapstructure:"directory"`
	CSVFile                string `mapstructure:"csv_file"`
	JSONFile               string `mapstructure:"json_file"`
	ParquetFile            string `mapstructure:"parquet_file"`
	LogFile                string `mapstructure:"log_file"`
	IncludeProcessingLog   bool   `mapstructure:"include_processing_log"`
	IncludeDetailedSummary bool   `mapstructure:"include_detailed_summary"`
	IncludeParquet         bool   `mapstructure:"include_parquet"`
	// IncludeThumbnails is accepted for compatibility; thumbnails are not produced
	IncludeThumbnails bool `mapstructure:"include_thumbnails"`
	FloatPrecision    int  `mapstructure:"float_precision"`
}

type QualityConfig struct {
	MinImageAreaPixels int64   `mapstructure:"min_image_area_pixels"`
	MaxFileSizeMB      float64 `mapstructure:"max_file_size_mb"`
	MinPyramidLevels   int     `mapstructure:"min_pyramid_levels"`
	MinPixelSizeUM     float64 `mapstructure:"min_pixel_size_um"`
	MaxPixelSizeUM     float64 `mapstructure:"max_pixel_size_um"`
	TargetPixelSizeUM  float64 `mapstructure:"target_pixel_size_um"`
	LargeImagePixels   int64   `mapstructure:"large_image_pixels"`
	VendorMaxDistance  int     `mapstructure:"vendor_max_distance"`
}

type ProcessingConfig struct {
	ContinueOnError     bool          `mapstructure:"continue_on_error"`
	MaxErrorsBeforeStop int           `mapstructure:"max_errors_before_abort"`
	SkipCorruptedImages bool          `mapstructure:"skip_corrupted_images"`
	RetryFailed         bool          `mapstructure:"retry_failed"`
	Workers             int           `mapstructure:"workers"`
	ImageTimeout        time.Duration `mapstructure:"image_timeout"`
}

type StorageConfig struct {
	AzureAccount  string        `mapstructure:"azure_account"`
	AzureKey      string        `mapstructure:"azure_key"`
	// AzureEndpoint overrides the blob service URL (Azurite, sovereign clouds)
	AzureEndpoint string        `mapstructure:"azure_endpoint"`
	StatCacheTTL  time.Duration `mapstructure:"stat_cache_ttl"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
}

type SourceConfig struct {
	Type     string `mapstructure:"type"`
	Manifest string `mapstructure:"manifest"`
	BaseURL  string `mapstructure:"base_url"`
}

type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               string        `mapstructure:"port"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	MaxRequestBodySize int64         `mapstructure:"max_request_body_size"`
	// AllowedSourceHosts restricts http(s) slide locations posted to the API;
	// empty allows every host.
	AllowedSourceHosts []string      `mapstructure:"allowed_source_hosts"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Server.Host)
	port := strings.TrimSpace(c.Server.Port)
	return net.JoinHostPort(host, port)
}

// OutputPath joins a configured file name onto the output directory
func (c *Config) OutputPath(name string) string {
	return filepath.Join(c.Output.Directory, name)
}

// setDefaults registers every key so environment overrides and Unmarshal see
// the full tree even without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("project_name", "")

	v.SetDefault("output.directory", "cohort_export")
	v.SetDefault("output.csv_file", "cohort_metadata.csv")
	v.SetDefault("output.json_file", "cohort_metadata.json")
	v.SetDefault("output.parquet_file", "cohort_metadata.parquet")
	v.SetDefault("output.log_file", "processing_log.txt")
	v.SetDefault("output.include_processing_log", true)
	v.SetDefault("output.include_detailed_summary", true)
	v.SetDefault("output.include_parquet", false)
	v.SetDefault("output.include_thumbnails", false)
	v.SetDefault("output.float_precision", 6)

	v.SetDefault("quality.min_image_area_pixels", 1_000_000)
	v.SetDefault("quality.max_file_size_mb", 10_000.0)
	v.SetDefault("quality.min_pyramid_levels", 3)
	v.SetDefault("quality.min_pixel_size_um", 0.1)
	v.SetDefault("quality.max_pixel_size_um", 10.0)
	v.SetDefault("quality.target_pixel_size_um", 1.0)
	v.SetDefault("quality.large_image_pixels", 100_000_000)
	v.SetDefault("quality.vendor_max_distance", 2)

	v.SetDefault("processing.continue_on_error", true)
	v.SetDefault("processing.max_errors_before_abort", 0)
	v.SetDefault("processing.skip_corrupted_images", true)
	v.SetDefault("processing.retry_failed", false)
	v.SetDefault("processing.workers", 1)
	v.SetDefault("processing.image_timeout", 2*time.Minute)

	v.SetDefault("storage.azure_account", "")
	v.SetDefault("storage.azure_key", "")
	v.SetDefault("storage.azure_endpoint", "")
	v.SetDefault("storage.stat_cache_ttl", 5*time.Minute)
	v.SetDefault("storage.http_timeout", 15*time.Second)

	v.SetDefault("source.type", "manifest")
	v.SetDefault("source.manifest", "cohort.yaml")
	v.SetDefault("source.base_url", "")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.max_request_body_size", 10*1024*1024) // 10MB
	v.SetDefault("server.allowed_source_hosts", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("scanner_vendors", metadata.DefaultScannerVendors())
}

// Default returns the configuration with every default applied
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// Defaults always decode; an error here is a programming mistake
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return cfg
}

// Load reads an optional YAML config file, then WSICOHORT_* environment
// variables (e.g. WSICOHORT_OUTPUT_DIRECTORY), and validates the result.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WSICOHORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || os.IsNotExist(err) {
				return nil, apperrors.NewConfigurationError(fmt.Sprintf("config file %q not found", path), err)
			}
			return nil, apperrors.NewConfigurationError(fmt.Sprintf("cannot read config file %q", path), err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.NewConfigurationError("cannot decode configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration before any image work begins
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Output.Directory) == "" {
		problems = append(problems, "output.directory must not be empty")
	}
	for key, name := range map[string]string{
		"output.csv_file":  c.Output.CSVFile,
		"output.json_file": c.Output.JSONFile,
		"output.log_file":  c.Output.LogFile,
	} {
		if strings.TrimSpace(name) == "" {
			problems = append(problems, key+" must not be empty")
		}
	}
	if c.Output.IncludeParquet && strings.TrimSpace(c.Output.ParquetFile) == "" {
		problems = append(problems, "output.parquet_file must not be empty when parquet output is enabled")
	}
	if c.Output.FloatPrecision < 0 || c.Output.FloatPrecision > 17 {
		problems = append(problems, fmt.Sprintf("output.float_precision must be within 0..17 (got %d)", c.Output.FloatPrecision))
	}
	if c.Quality.MinPixelSizeUM < 0 || c.Quality.MaxPixelSizeUM <= 0 || c.Quality.MinPixelSizeUM > c.Quality.MaxPixelSizeUM {
		problems = append(problems, fmt.Sprintf("quality pixel size range is invalid (min=%g, max=%g)",
			c.Quality.MinPixelSizeUM, c.Quality.MaxPixelSizeUM))
	}
	if c.Quality.TargetPixelSizeUM <= 0 {
		problems = append(problems, "quality.target_pixel_size_um must be > 0")
	}
	if c.Processing.MaxErrorsBeforeStop < 0 {
		problems = append(problems, "processing.max_errors_before_abort must be >= 0")
	}
	if c.Processing.Workers < 0 {
		problems = append(problems, "processing.workers must be >= 0")
	}
	if c.Processing.ImageTimeout <= 0 || c.Server.RequestTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("timeouts must be > 0 (got image=%s, request=%s)",
			c.Processing.ImageTimeout, c.Server.RequestTimeout))
	}
	switch c.Source.Type {
	case "manifest", "http":
	default:
		problems = append(problems, fmt.Sprintf("unknown source.type %q", c.Source.Type))
	}
	if c.Source.Type == "http" && strings.TrimSpace(c.Source.BaseURL) == "" {
		problems = append(problems, "source.base_url is required for the http source")
	}

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Server.Port))
	if err != nil || p < 1 || p > 65535 {
		problems = append(problems, fmt.Sprintf("invalid server.port: %q", c.Server.Port))
	}
	if c.Server.MaxRequestBodySize <= 0 {
		problems = append(problems, fmt.Sprintf("server.max_request_body_size must be > 0 (got %d)", c.Server.MaxRequestBodySize))
	}

	if len(problems) > 0 {
		return apperrors.NewConfigurationError(strings.Join(problems, "; "), nil)
	}
	return nil
}

// EnsureOutputDir creates the output directory and proves it is writable
func (c *Config) EnsureOutputDir() error {
	if err := os.MkdirAll(c.Output.Directory, 0o755); err != nil {
		return apperrors.NewConfigurationError(fmt.Sprintf("cannot create output directory %q", c.Output.Directory), err)
	}
	check, err := os.CreateTemp(c.Output.Directory, ".write-check-*")
	if err != nil {
		return apperrors.NewConfigurationError(fmt.Sprintf("output directory %q is not writable", c.Output.Directory), err)
	}
	name := check.Name()
	check.Close()
	os.Remove(name)
	return nil
}
