package adserver

import "errors"

var (
	// ErrDuplicateIdentifier is returned when AddAd collides with an existing id.
	ErrDuplicateIdentifier = errors.New("adserver: ad with this id already exists")
	// ErrNotFound marks commands and queries referencing an unknown ad.
	ErrNotFound = errors.New("adserver: ad not found")
	// ErrStateCorruptOrMissing is returned when the registry has not been
	// instantiated or the persisted bytes do not decode.
	ErrStateCorruptOrMissing = errors.New("adserver: state corrupt or missing")
	// ErrStorageWrite wraps failures reported by the backing store on save.
	ErrStorageWrite = errors.New("adserver: storage write failed")
	// ErrInvalidMessage marks execute or query payloads that cannot be decoded.
	ErrInvalidMessage = errors.New("adserver: invalid message")

	errNilState = errors.New("adserver engine: state not configured")
)
