package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".archivist"

// DomainConfig holds settings that may differ per archived domain.
// Zero values leave the current setting untouched.
type DomainConfig struct {
	// OutputDir overrides the archive root.
	OutputDir string `yaml:"output,omitempty"`

	// From and To bound CDX snapshot discovery.
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`

	// MinDelay and MaxDelay bound the random pause between pages.
	MinDelay time.Duration `yaml:"minDelay,omitempty"`
	MaxDelay time.Duration `yaml:"maxDelay,omitempty"`

	// AssetDelay is the pause between asset downloads.
	AssetDelay time.Duration `yaml:"assetDelay,omitempty"`

	// OffPeakStart and OffPeakEnd bound the crawl window ("HH:MM").
	OffPeakStart string `yaml:"offPeakStart,omitempty"`
	OffPeakEnd   string `yaml:"offPeakEnd,omitempty"`

	// NoOffPeak disables the crawl window.
	NoOffPeak bool `yaml:"noOffPeak,omitempty"`

	// MaxRetries is the number of attempts per URL.
	MaxRetries int `yaml:"retries,omitempty"`

	// RetryFailedAfter requeues failed entries older than this before a crawl.
	RetryFailedAfter time.Duration `yaml:"retryFailedAfter,omitempty"`

	// HashAlgorithm names the asset content hash.
	HashAlgorithm string `yaml:"hashAlgorithm,omitempty"`

	// UserAgent is sent with every request.
	UserAgent string `yaml:"userAgent,omitempty"`

	// IgnorePatterns are URL path globs never enqueued.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, are the only URL path globs enqueued.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File is the structure of the .archivist configuration file.
type File struct {
	// Database overrides the database file path.
	Database string `yaml:"database,omitempty"`

	// Defaults apply to every domain.
	Defaults DomainConfig `yaml:"defaults,omitempty"`

	// Domains maps a bare domain to its overrides.
	Domains map[string]DomainConfig `yaml:"domains,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// It returns ErrConfigNotFound if the file does not exist.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	if cf.Domains == nil {
		cf.Domains = make(map[string]DomainConfig)
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .archivist in the current directory
// 3. Look for .archivist in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// ForDomain returns the defaults merged with the domain's own overrides.
func (cf *File) ForDomain(domain string) DomainConfig {
	result := cf.Defaults
	dc, ok := cf.Domains[domain]
	if !ok {
		return result
	}

	setString(&result.OutputDir, dc.OutputDir)
	setString(&result.From, dc.From)
	setString(&result.To, dc.To)
	setString(&result.OffPeakStart, dc.OffPeakStart)
	setString(&result.OffPeakEnd, dc.OffPeakEnd)
	setString(&result.HashAlgorithm, dc.HashAlgorithm)
	setString(&result.UserAgent, dc.UserAgent)
	setDuration(&result.MinDelay, dc.MinDelay)
	setDuration(&result.MaxDelay, dc.MaxDelay)
	setDuration(&result.AssetDelay, dc.AssetDelay)
	setDuration(&result.RetryFailedAfter, dc.RetryFailedAfter)
	if dc.NoOffPeak {
		result.NoOffPeak = true
	}
	if dc.MaxRetries != 0 {
		result.MaxRetries = dc.MaxRetries
	}
	if len(dc.IgnorePatterns) > 0 {
		result.IgnorePatterns = dc.IgnorePatterns
	}
	if len(dc.FollowPatterns) > 0 {
		result.FollowPatterns = dc.FollowPatterns
	}
	return result
}

// Apply copies the non-zero settings of dc onto c.
func (c *Config) Apply(dc DomainConfig) {
	setString(&c.OutputDir, dc.OutputDir)
	setString(&c.From, dc.From)
	setString(&c.To, dc.To)
	setString(&c.OffPeakStart, dc.OffPeakStart)
	setString(&c.OffPeakEnd, dc.OffPeakEnd)
	setString(&c.HashAlgorithm, dc.HashAlgorithm)
	setString(&c.UserAgent, dc.UserAgent)
	setDuration(&c.MinDelay, dc.MinDelay)
	setDuration(&c.MaxDelay, dc.MaxDelay)
	setDuration(&c.AssetDelay, dc.AssetDelay)
	setDuration(&c.RetryFailedAfter, dc.RetryFailedAfter)
	if dc.NoOffPeak {
		c.NoOffPeak = true
	}
	if dc.MaxRetries != 0 {
		c.MaxRetries = dc.MaxRetries
	}
	if len(dc.IgnorePatterns) > 0 {
		c.IgnorePatterns = dc.IgnorePatterns
	}
	if len(dc.FollowPatterns) > 0 {
		c.FollowPatterns = dc.FollowPatterns
	}
}

// ApplyFile applies the file's database path and the overrides for c.Domain.
func (c *Config) ApplyFile(cf *File) {
	if cf == nil {
		return
	}
	setString(&c.DBPath, cf.Database)
	c.Apply(cf.ForDomain(c.Domain))
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
