package assetstore

import "errors"

var (
	// ErrUnknownHashAlgorithm is returned for an unsupported hash algorithm name.
	ErrUnknownHashAlgorithm = errors.New("unknown hash algorithm")

	// ErrHashAlgorithmMismatch is returned when the database was populated
	// with a different hash algorithm than the one configured.
	ErrHashAlgorithmMismatch = errors.New("hash algorithm does not match database")

	// ErrInvalidRequest is returned when a resolve request is missing fields.
	ErrInvalidRequest = errors.New("invalid resolve request")

	// ErrInvalidAssetURL is returned when an asset URL cannot be mapped to a path.
	ErrInvalidAssetURL = errors.New("invalid asset URL")
)
