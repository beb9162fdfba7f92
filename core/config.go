package core

import (
	"fmt"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the surgery configuration, usually decoded from an HCL file:
//
//	log_level = "info"
//
//	upload {
//	  max_size_bytes     = 31457280
//	  size_error_message = "Files must be smaller than %s."
//	}
//
//	extract {
//	  max_depth      = 3
//	  ooxml_strategy = "surgery"
//	}
//
//	api {
//	  base_url = "https://api.example.com"
//	  timeout  = "20s"
//	}
//
// The API token is normally supplied through SURGERY_API_TOKEN.
type Config struct {
	LogLevel string         `hcl:"log_level,optional"`
	Upload   *UploadConfig  `hcl:"upload,block"`
	Extract  *ExtractConfig `hcl:"extract,block"`
	API      *APIConfig     `hcl:"api,block"`
	Storage  *StorageConfig `hcl:"storage,block"`
}

// UploadConfig configures the upload interception hook.
type UploadConfig struct {
	// MaxSizeBytes is the largest payload accepted, in bytes.
	MaxSizeBytes int64 `hcl:"max_size_bytes,optional"`
	// SizeErrorMessage is shown when an upload is too large. A single %s
	// verb, if present, receives the human-readable limit.
	SizeErrorMessage string `hcl:"size_error_message,optional"`
	// ChunkSize is the read size used when the hook consumes a stream.
	ChunkSize int `hcl:"chunk_size,optional"`
}

// ExtractConfig configures the extractor facade.
type ExtractConfig struct {
	MaxDepth          int    `hcl:"max_depth,optional"`
	MaxMemberBytes    int64  `hcl:"max_member_bytes,optional"`
	MaxArchiveMembers int    `hcl:"max_archive_members,optional"`
	OOXMLStrategy     string `hcl:"ooxml_strategy,optional"`
	ExtendedFormats   bool   `hcl:"extended_formats,optional"`
}

// APIConfig configures the REST API client.
type APIConfig struct {
	BaseURL        string `hcl:"base_url,optional"`
	Token          string `hcl:"token,optional"`
	Scheme         string `hcl:"scheme,optional"`
	EnvironmentKey string `hcl:"environment_key,optional"`
	Timeout        string `hcl:"timeout,optional"`
	// MaxRetries is nil when unset, so an explicit 0 disables retries.
	MaxRetries     *int   `hcl:"max_retries,optional"`
	Workers        int    `hcl:"workers,optional"`
}

// StorageConfig configures where sanitized uploads are written.
type StorageConfig struct {
	Dir string `hcl:"dir,optional"`
}

// Limits bounds the work done on a single payload.
type Limits struct {
	// MaxDepth is how many archives may be nested inside each other.
	MaxDepth int
	// MaxMemberBytes bounds the decompressed size of one archive member.
	MaxMemberBytes int64
	// MaxArchiveMembers bounds the number of members in one archive.
	MaxArchiveMembers int
}

const (
	DefaultMaxSizeBytes      int64 = 30 << 20
	DefaultSizeErrorMessage        = "The file is too large. Files must be smaller than %s."
	DefaultChunkSize               = 64 << 10
	DefaultMaxDepth                = 3
	DefaultMaxMemberBytes    int64 = 256 << 20
	DefaultMaxArchiveMembers       = 10000
	DefaultAPITimeout              = 20 * time.Second
	DefaultAPIScheme               = "Token"
	DefaultAPIMaxRetries           = 3
	DefaultAPIWorkers              = 4
)

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:          DefaultMaxDepth,
		MaxMemberBytes:    DefaultMaxMemberBytes,
		MaxArchiveMembers: DefaultMaxArchiveMembers,
	}
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig decodes the HCL file at path (if non-empty), applies defaults
// and environment overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
			return nil, fmt.Errorf("loading configuration from %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Upload == nil {
		c.Upload = &UploadConfig{}
	}
	if c.Upload.MaxSizeBytes == 0 {
		c.Upload.MaxSizeBytes = DefaultMaxSizeBytes
	}
	if c.Upload.SizeErrorMessage == "" {
		c.Upload.SizeErrorMessage = DefaultSizeErrorMessage
	}
	if c.Upload.ChunkSize == 0 {
		c.Upload.ChunkSize = DefaultChunkSize
	}

	if c.Extract == nil {
		c.Extract = &ExtractConfig{}
	}
	if c.Extract.MaxDepth == 0 {
		c.Extract.MaxDepth = DefaultMaxDepth
	}
	if c.Extract.MaxMemberBytes == 0 {
		c.Extract.MaxMemberBytes = DefaultMaxMemberBytes
	}
	if c.Extract.MaxArchiveMembers == 0 {
		c.Extract.MaxArchiveMembers = DefaultMaxArchiveMembers
	}
	if c.Extract.OOXMLStrategy == "" {
		c.Extract.OOXMLStrategy = string(StrategySurgery)
	}

	if c.API == nil {
		c.API = &APIConfig{}
	}
	if c.API.Scheme == "" {
		c.API.Scheme = DefaultAPIScheme
	}
	if c.API.Timeout == "" {
		c.API.Timeout = DefaultAPITimeout.String()
	}
	if c.API.MaxRetries == nil {
		n := DefaultAPIMaxRetries
		c.API.MaxRetries = &n
	}
	if c.API.Workers == 0 {
		c.API.Workers = DefaultAPIWorkers
	}

	if c.Storage == nil {
		c.Storage = &StorageConfig{}
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "uploads"
	}
}

// Environment variables that override file settings.
const (
	EnvAPIToken     = "SURGERY_API_TOKEN"
	EnvAPIBaseURL   = "SURGERY_API_BASE_URL"
	EnvMaxSizeBytes = "SURGERY_MAX_SIZE_BYTES"
)

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvMaxSizeBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvMaxSizeBytes, v, err)
		}
		c.Upload.MaxSizeBytes = n
	}
	return nil
}

// Validate checks every block and reports all problems together.
func (c *Config) Validate() error {
	var result *multierror.Error

	if err := validation.Validate(c.LogLevel,
		validation.In("trace", "debug", "info", "warn", "error", "off"),
	); err != nil {
		result = multierror.Append(result, fmt.Errorf("log_level: %w", err))
	}

	if err := validation.ValidateStruct(c.Upload,
		validation.Field(&c.Upload.MaxSizeBytes, validation.Min(int64(1))),
		validation.Field(&c.Upload.ChunkSize, validation.Min(1)),
	); err != nil {
		result = multierror.Append(result, fmt.Errorf("upload: %w", err))
	}

	if err := validation.ValidateStruct(c.Extract,
		validation.Field(&c.Extract.MaxDepth, validation.Min(1)),
		validation.Field(&c.Extract.MaxMemberBytes, validation.Min(int64(1))),
		validation.Field(&c.Extract.MaxArchiveMembers, validation.Min(1)),
		validation.Field(&c.Extract.OOXMLStrategy,
			validation.In(string(StrategySurgery), string(StrategyProperties))),
	); err != nil {
		result = multierror.Append(result, fmt.Errorf("extract: %w", err))
	}

	if err := validation.ValidateStruct(c.API,
		validation.Field(&c.API.Timeout, validation.By(isDuration)),
		validation.Field(&c.API.MaxRetries, validation.Min(0)),
		validation.Field(&c.API.Workers, validation.Min(1)),
	); err != nil {
		result = multierror.Append(result, fmt.Errorf("api: %w", err))
	}

	return result.ErrorOrNil()
}

// Limits returns the extraction limits.
func (c *ExtractConfig) Limits() Limits {
	return Limits{
		MaxDepth:          c.MaxDepth,
		MaxMemberBytes:    c.MaxMemberBytes,
		MaxArchiveMembers: c.MaxArchiveMembers,
	}
}

// Retries returns MaxRetries, or the default when it is unset.
func (c *APIConfig) Retries() int {
	if c.MaxRetries == nil {
		return DefaultAPIMaxRetries
	}
	return *c.MaxRetries
}

// TimeoutDuration parses Timeout, falling back to the default.
func (c *APIConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return DefaultAPITimeout
	}
	return d
}

func isDuration(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("must be a duration such as 20s: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
