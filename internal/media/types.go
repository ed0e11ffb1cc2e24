package media

import (
	"errors"
	"io"
)

// Kind partitions the media store by purpose.
type Kind string

const (
	// KindAvatar holds profile pictures.
	KindAvatar Kind = "avatars"
	// KindMessage holds images attached to chat messages.
	KindMessage Kind = "messages"
)

// MaxAssetBytes is the default upload size limit.
const MaxAssetBytes int64 = 16 << 20

var (
	ErrProviderUnavailable = errors.New("storage provider unavailable")
	ErrAssetNotFound       = errors.New("media asset not found")
	ErrAssetTooLarge       = errors.New("media asset too large")
	ErrUnsupportedType     = errors.New("unsupported media type")
)

// Asset is the domain representation of a persisted media object.
// ContentHash is the content-addressed identifier (SHA-256 hex).
type Asset struct {
	ContentHash string `json:"content_hash"`
	Kind        Kind   `json:"kind"`
	Mime        string `json:"mime"`
	SizeBytes   int64  `json:"size_bytes"`
	StorageKey  string `json:"storage_key"`
}

// IngestInput carries the data needed to persist a new media asset.
type IngestInput struct {
	Kind Kind
	Mime string
	// Reader provides the raw bytes; caller is responsible for closing.
	Reader io.Reader
	// MaxBytes optionally overrides the default size limit.
	MaxBytes int64
}
