// Package common provides configuration management, error envelopes and
// HTTP endpoint utilities shared by PrintForge Go components. It includes
// support for YAML configuration files, environment variable overrides,
// CORS setup, health endpoints and the swagger UI mount.
package common

import (
	"encoding/json"
	"errors"
	"log"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// PrintSplash displays the PrintForge Go ASCII art logo to the console.
// This function is typically called during application startup to provide
// visual branding and confirm the service is starting.
func PrintSplash() {
	log.Printf(`
	██████╗ ██████╗ ██╗███╗   ██╗████████╗███████╗ ██████╗ ██████╗  ██████╗ ███████╗
	██╔══██╗██╔══██╗██║████╗  ██║╚══██╔══╝██╔════╝██╔═══██╗██╔══██╗██╔════╝ ██╔════╝
	██████╔╝██████╔╝██║██╔██╗ ██║   ██║   █████╗  ██║   ██║██████╔╝██║  ███╗█████╗
	██╔═══╝ ██╔══██╗██║██║╚██╗██║   ██║   ██╔══╝  ██║   ██║██╔══██╗██║   ██║██╔══╝
	██║     ██║  ██║██║██║ ╚████║   ██║   ██║     ╚██████╔╝██║  ██║╚██████╔╝███████╗
	╚═╝     ╚═╝  ╚═╝╚═╝╚═╝  ╚═══╝   ╚═╝   ╚═╝      ╚═════╝ ╚═╝  ╚═╝ ╚═════╝ ╚══════╝
	`)
}

// ErrAdminAPIKeyUnset is returned by LoadConfig when no admin API key is
// configured. The slicing service refuses to start without one.
var ErrAdminAPIKeyUnset = errors.New("ADMIN_API_KEY is not set - refusing to start with unprotected pricing endpoints")

// Config represents the complete configuration structure for the slicing
// service. It combines server settings, filesystem paths, admission control,
// request limits, slicer invocation settings, pricing persistence and the
// optional S3 artifact mirror.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" json:"server"`
	CORS      CorsConfig      `mapstructure:"cors" json:"cors"`
	Paths     PathsConfig     `mapstructure:"paths" json:"paths"`
	Limits    LimitsConfig    `mapstructure:"limits" json:"limits"`
	Admission AdmissionConfig `mapstructure:"admission" json:"admission"`
	Slicer    SlicerConfig    `mapstructure:"slicer" json:"slicer"`
	Pricing   PricingConfig   `mapstructure:"pricing" json:"pricing"`
	Storage   StorageConfig   `mapstructure:"storage" json:"storage"`
	Retention RetentionConfig `mapstructure:"retention" json:"retention"`
}

// ServerConfig contains HTTP server configuration parameters.
type ServerConfig struct {
	Host        string `mapstructure:"host" json:"host"`
	Port        int    `mapstructure:"port" json:"port"`
	ContextPath string `mapstructure:"contextPath" json:"contextPath"`
	AdminAPIKey string `mapstructure:"adminAPIKey" json:"adminAPIKey"`
}

// CorsConfig contains Cross-Origin Resource Sharing (CORS) policy settings.
type CorsConfig struct {
	AllowedOrigins   []string `mapstructure:"allowedOrigins" json:"allowedOrigins"`
	AllowedMethods   []string `mapstructure:"allowedMethods" json:"allowedMethods"`
	AllowedHeaders   []string `mapstructure:"allowedHeaders" json:"allowedHeaders"`
	AllowCredentials bool     `mapstructure:"allowCredentials" json:"allowCredentials"`
}

// PathsConfig contains the filesystem layout of the service, relative to the
// application root unless absolute paths are given.
type PathsConfig struct {
	InputDir      string `mapstructure:"inputDir" json:"inputDir"`
	OutputDir     string `mapstructure:"outputDir" json:"outputDir"`
	LogsDir       string `mapstructure:"logsDir" json:"logsDir"`
	ConfigsDir    string `mapstructure:"configsDir" json:"configsDir"`
	ConvertersDir string `mapstructure:"convertersDir" json:"convertersDir"`
}

// LimitsConfig contains request body and archive extraction limits.
type LimitsConfig struct {
	MaxUploadBytes          int64 `mapstructure:"maxUploadBytes" json:"maxUploadBytes"`
	JSONBodyBytes           int64 `mapstructure:"jsonBodyBytes" json:"jsonBodyBytes"`
	FormBodyBytes           int64 `mapstructure:"formBodyBytes" json:"formBodyBytes"`
	MaxZipEntries           int   `mapstructure:"maxZipEntries" json:"maxZipEntries"`
	MaxZipUncompressedBytes int64 `mapstructure:"maxZipUncompressedBytes" json:"maxZipUncompressedBytes"`
}

// AdmissionConfig contains rate limiter and slice queue settings.
type AdmissionConfig struct {
	RateLimitWindowMillis int `mapstructure:"rateLimitWindowMillis" json:"rateLimitWindowMillis"`
	RateLimitMaxRequests  int `mapstructure:"rateLimitMaxRequests" json:"rateLimitMaxRequests"`
	MaxConcurrentSlices   int `mapstructure:"maxConcurrentSlices" json:"maxConcurrentSlices"`
	MaxQueueLength        int `mapstructure:"maxQueueLength" json:"maxQueueLength"`
	MaxQueueWaitMillis    int `mapstructure:"maxQueueWaitMillis" json:"maxQueueWaitMillis"`
}

// SlicerConfig contains external slicer and converter invocation settings.
type SlicerConfig struct {
	Binary           string `mapstructure:"binary" json:"binary"`
	Python           string `mapstructure:"python" json:"python"`
	DebugCommandLogs bool   `mapstructure:"debugCommandLogs" json:"debugCommandLogs"`
}

// PricingConfig selects and parameterizes the pricing persistence backend.
type PricingConfig struct {
	Backend string             `mapstructure:"backend" json:"backend"`
	File    PricingFileConfig  `mapstructure:"file" json:"file"`
	Mongo   PricingMongoConfig `mapstructure:"mongo" json:"mongo"`
}

// PricingFileConfig contains settings for the JSON file backend.
type PricingFileConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// PricingMongoConfig contains settings for the MongoDB backend.
type PricingMongoConfig struct {
	URI        string `mapstructure:"uri" json:"uri"`
	Database   string `mapstructure:"database" json:"database"`
	Collection string `mapstructure:"collection" json:"collection"`
}

// StorageConfig contains the optional S3 artifact mirror settings. The
// mirror is enabled when a bucket name is configured.
type StorageConfig struct {
	S3 S3Config `mapstructure:"s3" json:"s3"`
}

// S3Config contains S3 bucket parameters for the artifact mirror.
type S3Config struct {
	Bucket string `mapstructure:"bucket" json:"bucket"`
	Region string `mapstructure:"region" json:"region"`
	Prefix string `mapstructure:"prefix" json:"prefix"`
}

// RetentionConfig contains artifact and error log retention settings.
type RetentionConfig struct {
	OutputHours  int `mapstructure:"outputHours" json:"outputHours"`
	ErrorLogDays int `mapstructure:"errorLogDays" json:"errorLogDays"`
}

// LoadConfig loads the configuration from YAML files and environment variables.
//
// The function supports multiple configuration sources with the following precedence:
// 1. Environment variables (highest priority)
// 2. Configuration file (if provided)
// 3. Default values (lowest priority)
//
// Environment variables use underscore notation (e.g. SERVER_PORT for
// server.port). The well-known deployment variables of the original service
// (ADMIN_API_KEY, MAX_UPLOAD_BYTES, SLICE_RATE_LIMIT_WINDOW_MS, ...) are
// bound explicitly so existing deployments keep working unchanged.
//
// LoadConfig fails with ErrAdminAPIKeyUnset when no admin API key is
// configured anywhere.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		log.Printf("📁 Loading config from file: %s", configPath)
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		log.Println("📁 No config file provided — loading from environment variables only")
	}

	// Override config with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindLegacyEnv(v)

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if cfg.Server.AdminAPIKey == "" {
		return nil, ErrAdminAPIKeyUnset
	}

	log.Println("✅ Configuration loaded successfully")
	PrintConfiguration(cfg)
	return cfg, nil
}

// bindLegacyEnv maps the flat environment variable names documented for the
// original deployment onto their structured viper keys.
func bindLegacyEnv(v *viper.Viper) {
	bindings := map[string]string{
		"server.adminAPIKey":              "ADMIN_API_KEY",
		"limits.maxUploadBytes":           "MAX_UPLOAD_BYTES",
		"limits.jsonBodyBytes":            "JSON_BODY_LIMIT",
		"limits.formBodyBytes":            "FORM_BODY_LIMIT",
		"limits.maxZipEntries":            "MAX_ZIP_ENTRIES",
		"limits.maxZipUncompressedBytes":  "MAX_ZIP_UNCOMPRESSED_BYTES",
		"admission.rateLimitWindowMillis": "SLICE_RATE_LIMIT_WINDOW_MS",
		"admission.rateLimitMaxRequests":  "SLICE_RATE_LIMIT_MAX_REQUESTS",
		"admission.maxConcurrentSlices":   "MAX_CONCURRENT_SLICES",
		"admission.maxQueueLength":        "MAX_SLICE_QUEUE_LENGTH",
		"admission.maxQueueWaitMillis":    "MAX_SLICE_QUEUE_WAIT_MS",
		"slicer.debugCommandLogs":         "DEBUG_COMMAND_LOGS",
	}
	for key, env := range bindings {
		// BindEnv only errors on an empty key set.
		_ = v.BindEnv(key, env)
	}
}

// setDefaults configures default values that allow the service to run in
// development environments without a configuration file. Production
// deployments override these through configuration files or environment
// variables.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5100)
	v.SetDefault("server.contextPath", "")
	v.SetDefault("server.adminAPIKey", "")

	// CORS defaults
	v.SetDefault("cors.allowedOrigins", []string{"*"})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"*"})
	v.SetDefault("cors.allowCredentials", true)

	// Filesystem layout
	v.SetDefault("paths.inputDir", "input")
	v.SetDefault("paths.outputDir", "output")
	v.SetDefault("paths.logsDir", "logs")
	v.SetDefault("paths.configsDir", "configs")
	v.SetDefault("paths.convertersDir", "converters")

	// Request and extraction limits
	v.SetDefault("limits.maxUploadBytes", int64(100<<20))
	v.SetDefault("limits.jsonBodyBytes", int64(1<<20))
	v.SetDefault("limits.formBodyBytes", int64(1<<20))
	v.SetDefault("limits.maxZipEntries", 1000)
	v.SetDefault("limits.maxZipUncompressedBytes", int64(512<<20))

	// Admission control
	v.SetDefault("admission.rateLimitWindowMillis", 60000)
	v.SetDefault("admission.rateLimitMaxRequests", 5)
	v.SetDefault("admission.maxConcurrentSlices", runtime.NumCPU())
	v.SetDefault("admission.maxQueueLength", 20)
	v.SetDefault("admission.maxQueueWaitMillis", 30000)

	// Slicer invocation
	v.SetDefault("slicer.binary", "prusa-slicer")
	v.SetDefault("slicer.python", "python3")
	v.SetDefault("slicer.debugCommandLogs", false)

	// Pricing persistence
	v.SetDefault("pricing.backend", "file")
	v.SetDefault("pricing.file.path", "configs/pricing.json")
	v.SetDefault("pricing.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("pricing.mongo.database", "printforge")
	v.SetDefault("pricing.mongo.collection", "pricing")

	// Artifact mirror (disabled unless a bucket is configured)
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "eu-central-1")
	v.SetDefault("storage.s3.prefix", "artifacts")

	// Retention
	v.SetDefault("retention.outputHours", 24)
	v.SetDefault("retention.errorLogDays", 7)
}

// PrintConfiguration prints the current configuration to the console with
// sensitive data redacted. Useful for debugging and verifying configuration
// during startup.
func PrintConfiguration(cfg *Config) {
	// Create a copy of the config to avoid modifying the original
	cfgCopy := *cfg

	if cfg.Server.AdminAPIKey != "" {
		cfgCopy.Server.AdminAPIKey = "****"
	}
	if cfg.Pricing.Mongo.URI != "" {
		cfgCopy.Pricing.Mongo.URI = "****"
	}

	configJSON, err := json.MarshalIndent(cfgCopy, "", "  ")
	if err != nil {
		log.Printf("Unable to marshal configuration to JSON: %v", err)
		return
	}

	log.Printf("📜 Loaded configuration:\n%s", string(configJSON))
}
