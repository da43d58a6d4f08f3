package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Server   ServerConfig   `yaml:"server"`
	Backend  BackendConfig  `yaml:"backend"`
	Upload   UploadConfig   `yaml:"upload"`
	Drafts   DraftsConfig   `yaml:"drafts"`
	Theme    ThemeConfig    `yaml:"theme"`
	Features FeaturesConfig `yaml:"features"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type LoggingConfig struct {
	Level string `yaml:"level" default:"info"`
}

type SiteConfig struct {
	Name        string `yaml:"name" default:"Backoffice"`
	Description string `yaml:"description" default:"Administration console"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"12600"`
}

func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

type BackendConfig struct {
	BaseURL   string        `yaml:"base_url" default:"http://localhost:5000/api"`
	Token     string        `yaml:"token" default:""`
	Timeout   time.Duration `yaml:"timeout" default:"15s"`
	RateLimit float64       `yaml:"rate_limit" default:"10"`
	Burst     int           `yaml:"burst" default:"20"`
}

type UploadConfig struct {
	Gateway       string `yaml:"gateway" default:"api"`
	MaxBytes      int    `yaml:"max_bytes" default:"10485760"`
	PublicBaseURL string `yaml:"public_base_url" default:""`
	Bucket        string `yaml:"bucket" default:""`
	Endpoint      string `yaml:"endpoint" default:""`
	Prefix        string `yaml:"prefix" default:"uploads/"`
}

type DraftsConfig struct {
	Store string        `yaml:"store" default:"memory"`
	Path  string        `yaml:"path" default:"./drafts.db"`
	TTL   time.Duration `yaml:"ttl" default:"2h"`

	// Compression applies to sqlite snapshots: zstd, gzip or none.
	Compression string `yaml:"compression" default:"zstd"`
}

type ThemeConfig struct {
	Default            string       `yaml:"default" default:"light"`
	AllowSwitching     bool         `yaml:"allow_switching" default:"true"`
	SyntaxHighlighting SyntaxConfig `yaml:"syntax_highlighting"`
}

type SyntaxConfig struct {
	DefaultDark  string `yaml:"default_dark" default:"monokai"`
	DefaultLight string `yaml:"default_light" default:"github"`
}

type FeaturesConfig struct {
	Authentication  AuthConfig  `yaml:"authentication"`
	MarkdownPreview FeatureFlag `yaml:"markdown_preview"`
	Metrics         FeatureFlag `yaml:"metrics"`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Type    string `yaml:"type" default:"ed25519"`
}

type FeatureFlag struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

const (
	GatewayAPI = "api"
	GatewayS3  = "s3"
	GatewayGCS = "gcs"

	StoreMemory = "memory"
	StoreSQLite = "sqlite"

	AuthEd25519 = "ed25519"
	AuthClerk   = "clerk"
)

var AppConfig *Config

func init() {
	AppConfig = Default()
}

// Default returns a Config with every default tag applied.
func Default() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

func LoadConfig(path string) error {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	// Try to read and parse the config file
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, just use defaults
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
	} else if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return err
	}

	AppConfig = config
	return nil
}

// applyEnv lets secrets and deployment specific values come from the environment.
func applyEnv(config *Config) {
	if v := os.Getenv("BACKEND_BASE_URL"); v != "" {
		config.Backend.BaseURL = v
	}
	if v := os.Getenv("BACKEND_TOKEN"); v != "" {
		config.Backend.Token = v
	}
	if v := os.Getenv("UPLOAD_GATEWAY"); v != "" {
		config.Upload.Gateway = v
	}
	if v := os.Getenv("UPLOAD_BUCKET"); v != "" {
		config.Upload.Bucket = v
	}
	if v := os.Getenv("UPLOAD_ENDPOINT"); v != "" {
		config.Upload.Endpoint = v
	}
	if v := os.Getenv("UPLOAD_PUBLIC_BASE_URL"); v != "" {
		config.Upload.PublicBaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	}
	switch c.Upload.Gateway {
	case GatewayAPI:
	case GatewayS3, GatewayGCS:
		if c.Upload.Bucket == "" {
			errs = append(errs, fmt.Errorf("upload.bucket is required for the %s gateway", c.Upload.Gateway))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown upload gateway %q", c.Upload.Gateway))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload.max_bytes must be positive"))
	}
	switch c.Drafts.Store {
	case StoreMemory, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown drafts store %q", c.Drafts.Store))
	}
	switch c.Features.Authentication.Type {
	case AuthEd25519, AuthClerk:
	default:
		errs = append(errs, fmt.Errorf("unknown authentication type %q", c.Features.Authentication.Type))
	}
	if c.Theme.Default != LightTheme && c.Theme.Default != DarkTheme {
		errs = append(errs, fmt.Errorf("theme.default must be %q or %q", LightTheme, DarkTheme))
	}
	return errors.Join(errs...)
}

var durationType = reflect.TypeOf(time.Duration(0))

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		if field.Type() == durationType {
			if val, err := time.ParseDuration(defaultValue); err == nil {
				field.SetInt(int64(val))
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int, reflect.Int64:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
