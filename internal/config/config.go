package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/archivist/internal/assetstore"
	"github.com/nao1215/archivist/internal/database"
	"github.com/nao1215/archivist/internal/scheduler"
	"github.com/nao1215/archivist/internal/wayback"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "archivist"

	// DefaultOutputDir is the archive root, relative to the working directory.
	DefaultOutputDir = "archived_pages"

	// DefaultMinDelay and DefaultMaxDelay bound the random pause between pages.
	// The archive throttles clients that request pages faster than this.
	DefaultMinDelay = scheduler.DefaultMinDelay
	DefaultMaxDelay = scheduler.DefaultMaxDelay

	// DefaultAssetDelay is the pause between asset downloads of one page.
	DefaultAssetDelay = 500 * time.Millisecond

	// DefaultOffPeakStart and DefaultOffPeakEnd bound the daily crawl window
	// in local time. The window wraps midnight.
	DefaultOffPeakStart = "22:00"
	DefaultOffPeakEnd   = "06:00"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = wayback.DefaultTimeout

	// DefaultMaxRetries is the number of attempts per URL.
	DefaultMaxRetries = wayback.DefaultMaxRetries

	// DefaultRetryDelay is the base of the linear backoff between attempts.
	DefaultRetryDelay = wayback.DefaultRetryDelay

	// DefaultMaxBodySize caps a single response body.
	DefaultMaxBodySize = wayback.DefaultMaxBodySize

	// DefaultUserAgent identifies the crawler to the archive.
	DefaultUserAgent = wayback.DefaultUserAgent

	// DefaultJobs is the number of snapshots reconstructed in parallel.
	DefaultJobs = 4

	// DefaultEnvFile holds the archive login cookies.
	DefaultEnvFile = ".env"
)

// Config holds all options of one archivist run.
// It is built from defaults, the configuration file and CLI flags, validated
// once and then passed down; components never read global state.
//
// Design decision: We use a single flat struct instead of nested structs
// for simplicity. The number of options is manageable.
type Config struct {
	// Domain is the bare domain to archive, without scheme or www. prefix.
	Domain string

	// From and To bound CDX snapshot discovery (YYYY or YYYYMMDD prefixes).
	// Empty means unbounded.
	From string
	To   string

	// SnapshotsFile is a "timestamp|url" list used to seed the ledger
	// instead of querying the CDX API.
	SnapshotsFile string

	// OutputDir is the archive root.
	OutputDir string

	// DBPath is the SQLite database file.
	// Defaults to archivist.db in the XDG data directory.
	DBPath string

	// MinDelay and MaxDelay bound the random pause between pages.
	MinDelay time.Duration
	MaxDelay time.Duration

	// AssetDelay is the pause between asset downloads.
	AssetDelay time.Duration

	// OffPeakStart and OffPeakEnd are "HH:MM" local times bounding the
	// crawl window.
	OffPeakStart string
	OffPeakEnd   string

	// NoOffPeak disables the crawl window.
	NoOffPeak bool

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxRetries is the number of attempts per URL.
	MaxRetries int

	// RetryDelay is the base of the linear backoff.
	RetryDelay time.Duration

	// MaxBodySize caps a single response body in bytes.
	MaxBodySize int64

	// UserAgent is sent with every request.
	UserAgent string

	// ArchiveURL is the replay endpoint and CDXURL the capture index.
	// They only change for mirrors and tests.
	ArchiveURL string
	CDXURL     string

	// MaxItems stops the crawl after this many pages. 0 means no limit.
	MaxItems int

	// RetryFailedAfter requeues failed entries older than this before a crawl.
	// 0 leaves failed entries alone.
	RetryFailedAfter time.Duration

	// HashAlgorithm names the asset content hash. It is fixed per database.
	HashAlgorithm string

	// IgnorePatterns are URL path globs never enqueued.
	IgnorePatterns []string

	// FollowPatterns, when set, are the only URL path globs enqueued.
	FollowPatterns []string

	// MetricsAddr serves Prometheus metrics when set (e.g. ":9090").
	MetricsAddr string

	// Jobs is the reconstruction parallelism.
	Jobs int

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the configuration file. Empty searches for
	// .archivist in the current and home directories.
	ConfigFilePath string

	// EnvFile holds IA_LOGGED_IN_USER and IA_LOGGED_IN_SIG.
	EnvFile string

	// Credentials are the archive login cookies. Optional.
	Credentials wayback.Credentials
}

// NewConfig creates a Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because most defaults are non-zero.
func NewConfig() *Config {
	return &Config{
		OutputDir:     DefaultOutputDir,
		DBPath:        DefaultDBPath(),
		MinDelay:      DefaultMinDelay,
		MaxDelay:      DefaultMaxDelay,
		AssetDelay:    DefaultAssetDelay,
		OffPeakStart:  DefaultOffPeakStart,
		OffPeakEnd:    DefaultOffPeakEnd,
		Timeout:       DefaultTimeout,
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxBodySize:   DefaultMaxBodySize,
		UserAgent:     DefaultUserAgent,
		ArchiveURL:    wayback.DefaultBaseURL,
		CDXURL:        wayback.DefaultCDXURL,
		HashAlgorithm: assetstore.DefaultHashAlgorithm,
		Jobs:          DefaultJobs,
		EnvFile:       DefaultEnvFile,
	}
}

// XDGDataDir returns the XDG data directory for archivist.
// On Linux: ~/.local/share/archivist
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for archivist.
// On Linux: ~/.config/archivist
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultDBPath returns the database file in the XDG data directory.
func DefaultDBPath() string {
	return filepath.Join(XDGDataDir(), database.DefaultFileName)
}

// NormalizeDomain strips scheme, path and a leading "www." from d.
func NormalizeDomain(d string) string {
	d = strings.TrimSpace(strings.ToLower(d))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimPrefix(d, "www.")
}

// Window returns the crawl window. ok is false when it is disabled.
func (c *Config) Window() (scheduler.Window, bool, error) {
	if c.NoOffPeak {
		return scheduler.Window{}, false, nil
	}
	w, err := scheduler.ParseWindow(c.OffPeakStart, c.OffPeakEnd)
	if err != nil {
		return scheduler.Window{}, false, err
	}
	return w, true, nil
}

// ValidateCrawl checks the options a crawl needs.
// It returns the first problem found.
//
// Design decision: We validate once after flag parsing rather than at each
// point of use so errors surface before any request is made.
func (c *Config) ValidateCrawl() error {
	if c.Domain == "" {
		return ErrNoDomain
	}
	if c.MinDelay < 0 || c.MaxDelay < c.MinDelay {
		return ErrInvalidDelay
	}
	if c.AssetDelay < 0 {
		return ErrInvalidAssetDelay
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetries < 1 {
		return ErrInvalidRetries
	}
	if c.RetryDelay < 0 {
		return ErrInvalidRetryDelay
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if c.MaxItems < 0 {
		return ErrInvalidMaxItems
	}
	if c.RetryFailedAfter < 0 {
		return ErrInvalidRetryFailedAfter
	}
	if !validHashAlgorithm(c.HashAlgorithm) {
		return ErrInvalidHashAlgorithm
	}
	if _, _, err := c.Window(); err != nil {
		return ErrInvalidWindow
	}
	return nil
}

// ValidateReconstruct checks the options a reconstruction needs.
func (c *Config) ValidateReconstruct() error {
	if c.Domain == "" {
		return ErrNoDomain
	}
	if c.OutputDir == "" {
		return ErrNoOutputDir
	}
	if c.Jobs < 1 {
		return ErrInvalidJobs
	}
	return nil
}

func validHashAlgorithm(name string) bool {
	for _, a := range assetstore.SupportedHashAlgorithms() {
		if a == name {
			return true
		}
	}
	return false
}
