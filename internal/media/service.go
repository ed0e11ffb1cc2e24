package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/canchat/canchat/internal/storage"
)

// Service provides content-addressed image persistence for avatars and
// message attachments. All metadata is derived from the filesystem layout;
// there is no database record per asset.
type Service struct {
	provider storage.Provider
	logger   *slog.Logger
}

// NewService creates a media service with the given storage provider.
func NewService(log *slog.Logger, provider storage.Provider) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		provider: provider,
		logger:   log.With(slog.String("service", "media")),
	}
}

// Ingest persists a new image asset. It hashes the content, deduplicates by
// checking the filesystem, and stores the bytes. Only image content types
// are accepted.
func (s *Service) Ingest(ctx context.Context, input IngestInput) (Asset, error) {
	if s.provider == nil {
		return Asset{}, ErrProviderUnavailable
	}
	if input.Kind != KindAvatar && input.Kind != KindMessage {
		return Asset{}, fmt.Errorf("unknown media kind %q", input.Kind)
	}
	if input.Reader == nil {
		return Asset{}, fmt.Errorf("reader is required")
	}
	ext, ok := imageExtension(input.Mime)
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s", ErrUnsupportedType, input.Mime)
	}

	maxBytes := input.MaxBytes
	if maxBytes <= 0 {
		maxBytes = MaxAssetBytes
	}
	contentHash, sizeBytes, tempPath, err := spoolAndHashWithLimit(input.Reader, maxBytes)
	if err != nil {
		return Asset{}, fmt.Errorf("read input: %w", err)
	}
	defer func() {
		_ = os.Remove(tempPath)
	}()

	storageKey := path.Join(contentHash[:2], contentHash+ext)
	routingKey := path.Join(string(input.Kind), storageKey)
	asset := Asset{
		ContentHash: contentHash,
		Kind:        input.Kind,
		Mime:        strings.ToLower(strings.TrimSpace(input.Mime)),
		SizeBytes:   sizeBytes,
		StorageKey:  storageKey,
	}

	// Filesystem dedup: identical content is already stored.
	if rc, openErr := s.provider.Open(ctx, routingKey); openErr == nil {
		_ = rc.Close()
		return asset, nil
	}

	tempFile, err := os.Open(tempPath)
	if err != nil {
		return Asset{}, fmt.Errorf("open temp file: %w", err)
	}
	defer func() {
		_ = tempFile.Close()
	}()
	if err := s.provider.Put(ctx, routingKey, tempFile); err != nil {
		return Asset{}, fmt.Errorf("store media: %w", err)
	}
	s.logger.Debug("asset stored",
		slog.String("kind", string(input.Kind)),
		slog.String("content_hash", contentHash),
		slog.Int64("size_bytes", sizeBytes))
	return asset, nil
}

// Open returns a reader for a stored asset by kind and storage key.
func (s *Service) Open(ctx context.Context, kind Kind, storageKey string) (io.ReadCloser, Asset, error) {
	if s.provider == nil {
		return nil, Asset{}, ErrProviderUnavailable
	}
	routingKey := path.Join(string(kind), storageKey)
	rc, err := s.provider.Open(ctx, routingKey)
	if err != nil {
		return nil, Asset{}, ErrAssetNotFound
	}
	return rc, deriveAssetFromKey(kind, storageKey), nil
}

// AccessPath returns the URL path where a persisted asset is served.
func (s *Service) AccessPath(asset Asset) string {
	if s.provider == nil {
		return ""
	}
	return s.provider.AccessPath(path.Join(string(asset.Kind), asset.StorageKey))
}

// deriveAssetFromKey rebuilds an Asset from the hash-prefixed storage key.
func deriveAssetFromKey(kind Kind, storageKey string) Asset {
	base := path.Base(storageKey)
	ext := path.Ext(base)
	return Asset{
		ContentHash: strings.TrimSuffix(base, ext),
		Kind:        kind,
		Mime:        mimeFromExtension(ext),
		StorageKey:  storageKey,
	}
}

// imageExtension maps an accepted image content type to its extension.
func imageExtension(mime string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png", true
	case "image/jpeg", "image/jpg":
		return ".jpg", true
	case "image/gif":
		return ".gif", true
	default:
		return "", false
	}
}

func mimeFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// spoolAndHashWithLimit streams the payload to a temp file while hashing,
// enforcing the byte limit without buffering the upload in memory.
func spoolAndHashWithLimit(reader io.Reader, maxBytes int64) (string, int64, string, error) {
	tempFile, err := os.CreateTemp("", "canchat-media-*")
	if err != nil {
		return "", 0, "", fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	keepFile := false
	defer func() {
		_ = tempFile.Close()
		if !keepFile {
			_ = os.Remove(tempPath)
		}
	}()

	hasher := sha256.New()
	limited := &io.LimitedReader{R: reader, N: maxBytes + 1}
	written, err := io.Copy(io.MultiWriter(tempFile, hasher), limited)
	if err != nil {
		return "", 0, "", fmt.Errorf("copy to temp file: %w", err)
	}
	if written > maxBytes {
		return "", 0, "", fmt.Errorf("%w: max %d bytes", ErrAssetTooLarge, maxBytes)
	}
	if written == 0 {
		return "", 0, "", fmt.Errorf("asset payload is empty")
	}
	keepFile = true
	return hex.EncodeToString(hasher.Sum(nil)), written, tempPath, nil
}
