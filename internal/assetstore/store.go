package assetstore

import (
	"context"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nao1215/archivist/internal/model"
)

// Index is the persistent asset index the Store is built on.
// *database.CrawlDB satisfies it.
type Index interface {
	GetAsset(ctx context.Context, waybackURL string) (*model.Asset, error)
	LocalPathsByHash(ctx context.Context, contentHash string) ([]string, error)
	UpsertAsset(ctx context.Context, asset *model.Asset) error
	IncrementDownloadCount(ctx context.Context, waybackURL string) error
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
}

// Store resolves fetched asset bytes to deduplicated files on disk.
type Store struct {
	index     Index
	root      string
	algorithm string
	newHash   func() hash.Hash
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithHashAlgorithm selects the content hash algorithm.
// An empty name keeps the default.
func WithHashAlgorithm(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.algorithm = name
		}
	}
}

// New creates a Store writing under root.
// The configured hash algorithm is recorded in the index on first use and
// checked against the recorded one afterwards.
func New(ctx context.Context, index Index, root string, opts ...Option) (*Store, error) {
	s := &Store{
		index:     index,
		root:      root,
		algorithm: DefaultHashAlgorithm,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	newHash, err := newHasher(s.algorithm)
	if err != nil {
		return nil, err
	}
	s.newHash = newHash

	recorded, err := index.GetState(ctx, StateHashAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("failed to read hash algorithm: %w", err)
	}
	switch recorded {
	case "":
		if err := index.SetState(ctx, StateHashAlgorithm, s.algorithm); err != nil {
			return nil, fmt.Errorf("failed to record hash algorithm: %w", err)
		}
	case s.algorithm:
	default:
		return nil, fmt.Errorf("%w: database uses %s, configured %s", ErrHashAlgorithmMismatch, recorded, s.algorithm)
	}

	return s, nil
}

// Root returns the output root directory.
func (s *Store) Root() string {
	return s.root
}

// Algorithm returns the content hash algorithm in use.
func (s *Store) Algorithm() string {
	return s.algorithm
}

// Lookup reports whether waybackURL is already stored with its file present.
// A hit increments the asset's download count and returns its local path.
// A row whose file has gone missing is a miss; the next Resolve replaces it.
func (s *Store) Lookup(ctx context.Context, waybackURL string) (string, bool, error) {
	asset, err := s.index.GetAsset(ctx, waybackURL)
	if err != nil {
		return "", false, err
	}
	if asset == nil {
		return "", false, nil
	}
	if !fileExists(asset.LocalPath) {
		s.logger.Debug("indexed asset missing on disk", "wayback_url", waybackURL, "path", asset.LocalPath)
		return "", false, nil
	}

	if err := s.index.IncrementDownloadCount(ctx, waybackURL); err != nil {
		return "", false, err
	}
	return asset.LocalPath, true, nil
}

// ResolveRequest describes one fetched asset.
type ResolveRequest struct {
	// WaybackURL is the URL the bytes were fetched from.
	WaybackURL string

	// OriginalURL is the URL the page referenced.
	OriginalURL string

	// Timestamp is the snapshot timestamp.
	Timestamp string

	// Domain is the crawled domain.
	Domain string

	// External marks assets hosted outside the crawled domain.
	External bool

	// MimeType is the Content-Type reported by the archive.
	MimeType string

	// Body is the fetched content.
	Body []byte
}

func (r ResolveRequest) validate() error {
	switch {
	case r.WaybackURL == "":
		return fmt.Errorf("%w: empty wayback URL", ErrInvalidRequest)
	case r.OriginalURL == "":
		return fmt.Errorf("%w: empty original URL", ErrInvalidRequest)
	case r.Domain == "":
		return fmt.Errorf("%w: empty domain", ErrInvalidRequest)
	case !model.ValidTimestamp(r.Timestamp):
		return fmt.Errorf("%w: bad timestamp %q", ErrInvalidRequest, r.Timestamp)
	}
	return nil
}

// Resolved is the outcome of Resolve.
type Resolved struct {
	// Path is the local file holding the content.
	Path string

	// Hash is the content digest.
	Hash string

	// Deduped is true when an existing file was reused and nothing was written.
	Deduped bool
}

// Resolve stores the bytes of a fetched asset and records its index row.
//
// When a file with the same content hash already exists, its path is reused
// and no bytes are written. Otherwise the bytes are written to the path
// derived by LocalPath before the row is committed.
func (s *Store) Resolve(ctx context.Context, req ResolveRequest) (Resolved, error) {
	if err := req.validate(); err != nil {
		return Resolved{}, err
	}

	sum := digest(s.newHash, req.Body)
	res := Resolved{Hash: sum}

	existing, err := s.index.LocalPathsByHash(ctx, sum)
	if err != nil {
		return Resolved{}, err
	}
	for _, p := range existing {
		if fileExists(p) {
			res.Path = p
			res.Deduped = true
			break
		}
	}

	if !res.Deduped {
		target, err := LocalPath(s.root, req.Domain, req.Timestamp, req.OriginalURL, req.External)
		if err != nil {
			return Resolved{}, err
		}
		target, same, err := s.placement(target, sum)
		if err != nil {
			return Resolved{}, err
		}
		if same {
			res.Deduped = true
		} else if err := writeFileAtomic(target, req.Body); err != nil {
			return Resolved{}, fmt.Errorf("failed to write asset %s: %w", target, err)
		}
		res.Path = target
	}

	asset, err := model.NewAsset(req.WaybackURL, req.OriginalURL, sum, res.Path, int64(len(req.Body)))
	if err != nil {
		return Resolved{}, err
	}
	asset.Domain = req.Domain
	asset.Timestamp = req.Timestamp
	asset.MimeType = req.MimeType

	if err := s.index.UpsertAsset(ctx, asset); err != nil {
		return Resolved{}, err
	}

	s.logger.Debug("asset stored",
		"wayback_url", req.WaybackURL,
		"path", res.Path,
		"deduped", res.Deduped,
		"size", len(req.Body),
	)
	return res, nil
}

// placement decides where content with the given hash goes.
// If target already holds the same content it is reused as is. If it holds
// different content, a hash-suffixed sibling is used instead.
func (s *Store) placement(target, sum string) (string, bool, error) {
	if !fileExists(target) {
		return target, false, nil
	}

	onDisk, err := digestFile(s.newHash, target)
	if err != nil {
		return "", false, fmt.Errorf("failed to hash %s: %w", target, err)
	}
	if onDisk == sum {
		return target, true, nil
	}

	alt := withHashSuffix(target, sum)
	return alt, fileExists(alt), nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".asset-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
