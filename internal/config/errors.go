package config

import "errors"

// Configuration validation errors.
//
// Design decision: We use package-level sentinel errors so callers can use
// errors.Is() while users still get readable messages.
var (
	// ErrNoDomain is returned when no domain is given.
	ErrNoDomain = errors.New("no domain specified: use --domain")

	// ErrNoOutputDir is returned when the archive root is empty.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrInvalidDelay is returned when the page delay range is negative or inverted.
	ErrInvalidDelay = errors.New("invalid page delay: need 0 <= min-delay <= max-delay")

	// ErrInvalidAssetDelay is returned when the asset delay is negative.
	ErrInvalidAssetDelay = errors.New("invalid asset delay: must be non-negative")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetries is returned when fewer than one attempt is allowed.
	ErrInvalidRetries = errors.New("invalid retries: must be at least 1")

	// ErrInvalidRetryDelay is returned when the backoff base is negative.
	ErrInvalidRetryDelay = errors.New("invalid retry delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the body cap is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidMaxItems is returned when the page cap is negative.
	ErrInvalidMaxItems = errors.New("invalid max items: must be non-negative")

	// ErrInvalidRetryFailedAfter is returned when the requeue age is negative.
	ErrInvalidRetryFailedAfter = errors.New("invalid retry-failed-after: must be non-negative")

	// ErrInvalidHashAlgorithm is returned for an unsupported content hash.
	ErrInvalidHashAlgorithm = errors.New("invalid hash algorithm: use sha256 or blake2b")

	// ErrInvalidWindow is returned when the off-peak bounds are not HH:MM.
	ErrInvalidWindow = errors.New("invalid off-peak window: use HH:MM for start and end")

	// ErrInvalidJobs is returned when the reconstruction parallelism is not positive.
	ErrInvalidJobs = errors.New("invalid jobs: must be at least 1")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
