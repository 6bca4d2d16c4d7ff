// Package config provides configuration management for kms-fsnav.
// Settings live in an INI file; command-line flags and environment variables
// override file values at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/odoobiznes/kms-fsnav/internal/ratelimit"
)

// Transport names accepted in [import] transport.
const (
	TransportHTTP  = "http"
	TransportS3    = "s3"
	TransportAzure = "azure"
)

// DefaultStartPath is where the folder picker opens when nothing else is given.
const DefaultStartPath = "/opt/kms"

// Config holds all runtime settings.
type Config struct {
	// Server settings
	BaseURL   string
	Token     string
	TokenFile string

	// RequestsPerSecond paces calls to the backend; 0 disables pacing.
	RequestsPerSecond float64

	// Browse settings
	StartPath  string
	AllowAny   bool // forwarded to the backend as allow_any
	UseSudo    bool // forwarded to the backend as use_sudo
	ShowHidden bool

	// Import settings
	Transport   string // "http", "s3" or "azure"
	Concurrency int    // concurrent directory expansions during a walk

	// Proxy settings
	ProxyMode     string // "no-proxy", "system", "ntlm", "basic"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string
	NoProxy       string // comma-separated hosts/CIDRs that bypass the proxy
	ProxyWarmup   bool

	S3    S3Config
	Azure AzureConfig
}

// S3Config configures the S3 archive transport.
type S3Config struct {
	Bucket          string
	Region          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// AzureConfig configures the Azure blob archive transport.
type AzureConfig struct {
	SASURL      string // account URL, with or without the SAS query
	AccountName string // used to build the URL when SASURL is empty
	SASToken    string // appended to the URL when it carries no query
	Container   string
}

// Validation errors
var (
	ErrMissingBaseURL      = errors.New("base_url is required")
	ErrInvalidTransport    = errors.New("transport must be one of http, s3, azure")
	ErrMissingS3Bucket     = errors.New("s3 bucket is required when transport is s3")
	ErrMissingAzureSAS     = errors.New("azure container and either sas_url or account_name with sas_token are required when transport is azure")
	ErrInvalidConcurrency  = errors.New("concurrency must be between 1 and 64")
	ErrInvalidRequestRate  = errors.New("requests_per_second must not be negative")
	ErrUnsupportedProxyMod = errors.New("proxy mode must be one of no-proxy, system, ntlm, basic")
)

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		BaseURL:           "http://localhost:8000/api",
		RequestsPerSecond: ratelimit.DefaultRequestsPerSecond,
		StartPath:         DefaultStartPath,
		AllowAny:          true,
		UseSudo:           true,
		ShowHidden:        true,
		Transport:         TransportHTTP,
		Concurrency:       8,
		ProxyMode:         "no-proxy",
	}
}

// DefaultConfigPath returns the default path of the INI file.
// - Windows: %USERPROFILE%\.config\kms-fsnav\config
// - Unix: ~/.config/kms-fsnav/config
func DefaultConfigPath() (string, error) {
	var home string
	if runtime.GOOS == "windows" {
		home = os.Getenv("USERPROFILE")
		if home == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
	} else {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
	}
	return filepath.Join(home, ".config", "kms-fsnav", "config"), nil
}

// Load reads configuration from an INI file.
// A missing file yields defaults and no error; an unparsable file is an error.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	server := iniFile.Section("server")
	cfg.BaseURL = server.Key("base_url").MustString(cfg.BaseURL)
	cfg.Token = server.Key("token").String()
	cfg.TokenFile = server.Key("token_file").String()
	cfg.RequestsPerSecond = server.Key("requests_per_second").MustFloat64(cfg.RequestsPerSecond)

	browse := iniFile.Section("browse")
	cfg.StartPath = browse.Key("start_path").MustString(cfg.StartPath)
	cfg.AllowAny = browse.Key("allow_any").MustBool(cfg.AllowAny)
	cfg.UseSudo = browse.Key("use_sudo").MustBool(cfg.UseSudo)
	cfg.ShowHidden = browse.Key("show_hidden").MustBool(cfg.ShowHidden)

	imp := iniFile.Section("import")
	cfg.Transport = strings.ToLower(imp.Key("transport").MustString(cfg.Transport))
	cfg.Concurrency = imp.Key("concurrency").MustInt(cfg.Concurrency)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.ProxyPassword = proxy.Key("password").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	s3 := iniFile.Section("s3")
	cfg.S3 = S3Config{
		Bucket:          s3.Key("bucket").String(),
		Region:          s3.Key("region").MustString("us-east-1"),
		Prefix:          s3.Key("prefix").String(),
		AccessKeyID:     s3.Key("access_key_id").String(),
		SecretAccessKey: s3.Key("secret_access_key").String(),
		SessionToken:    s3.Key("session_token").String(),
	}

	az := iniFile.Section("azure")
	cfg.Azure = AzureConfig{
		SASURL:      az.Key("sas_url").String(),
		AccountName: az.Key("account_name").String(),
		SASToken:    az.Key("sas_token").String(),
		Container:   az.Key("container").String(),
	}

	return cfg, nil
}

// Save writes the configuration to an INI file with 0600 permissions.
// Parent directories are created as needed. The proxy password is never saved.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	sections := []struct {
		name   string
		values [][2]string
	}{
		{"server", [][2]string{
			{"base_url", cfg.BaseURL},
			{"token", cfg.Token},
			{"token_file", cfg.TokenFile},
			{"requests_per_second", strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)},
		}},
		{"browse", [][2]string{
			{"start_path", cfg.StartPath},
			{"allow_any", fmt.Sprintf("%t", cfg.AllowAny)},
			{"use_sudo", fmt.Sprintf("%t", cfg.UseSudo)},
			{"show_hidden", fmt.Sprintf("%t", cfg.ShowHidden)},
		}},
		{"import", [][2]string{
			{"transport", cfg.Transport},
			{"concurrency", fmt.Sprintf("%d", cfg.Concurrency)},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.ProxyMode},
			{"host", cfg.ProxyHost},
			{"port", fmt.Sprintf("%d", cfg.ProxyPort)},
			{"user", cfg.ProxyUser},
			{"no_proxy", cfg.NoProxy},
			{"warmup", fmt.Sprintf("%t", cfg.ProxyWarmup)},
		}},
		{"s3", [][2]string{
			{"bucket", cfg.S3.Bucket},
			{"region", cfg.S3.Region},
			{"prefix", cfg.S3.Prefix},
			{"access_key_id", cfg.S3.AccessKeyID},
			{"secret_access_key", cfg.S3.SecretAccessKey},
			{"session_token", cfg.S3.SessionToken},
		}},
		{"azure", [][2]string{
			{"sas_url", cfg.Azure.SASURL},
			{"account_name", cfg.Azure.AccountName},
			{"sas_token", cfg.Azure.SASToken},
			{"container", cfg.Azure.Container},
		}},
	}

	for _, s := range sections {
		section, err := iniFile.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.values {
			section.Key(kv[0]).SetValue(kv[1])
		}
	}

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// MergeWithFlags applies overrides in priority order:
// flags > KMS_TOKEN environment variable > token file > config file.
func (c *Config) MergeWithFlags(baseURL, token, tokenFile string) {
	if tokenFile != "" {
		c.TokenFile = tokenFile
	}
	if c.TokenFile != "" {
		if t, err := ReadTokenFile(c.TokenFile); err == nil {
			c.Token = t
		}
	}
	if env := os.Getenv("KMS_TOKEN"); env != "" {
		c.Token = env
	}
	if token != "" {
		c.Token = token
	}
	if baseURL != "" {
		c.BaseURL = baseURL
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	if c.Concurrency < 1 || c.Concurrency > 64 {
		return ErrInvalidConcurrency
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRequestRate
	}

	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system", "ntlm", "basic":
	default:
		return ErrUnsupportedProxyMod
	}

	switch c.Transport {
	case TransportHTTP:
	case TransportS3:
		if c.S3.Bucket == "" {
			return ErrMissingS3Bucket
		}
	case TransportAzure:
		hasURL := c.Azure.SASURL != "" || (c.Azure.AccountName != "" && c.Azure.SASToken != "")
		if !hasURL || c.Azure.Container == "" {
			return ErrMissingAzureSAS
		}
	default:
		return ErrInvalidTransport
	}

	return nil
}

// ReadTokenFile reads a bearer token from a file, trimming whitespace.
// Warns on stderr when the file is readable by group or others.
func ReadTokenFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat token file: %w", err)
	}

	if runtime.GOOS != "windows" && info.Mode().Perm()&0077 != 0 {
		fmt.Fprintf(os.Stderr, "Warning: token file %s has insecure permissions %04o. Consider 'chmod 600 %s'\n",
			path, info.Mode().Perm(), path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file is empty")
	}
	return token, nil
}
