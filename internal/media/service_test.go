package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/canchat/canchat/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	provider, err := storage.NewLocalProvider(t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return NewService(nil, provider)
}

func TestIngestAndOpen(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	asset, err := svc.Ingest(ctx, IngestInput{
		Kind:   KindMessage,
		Mime:   "image/png",
		Reader: strings.NewReader("fake png bytes"),
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(asset.ContentHash) != 64 {
		t.Fatalf("content hash = %q", asset.ContentHash)
	}
	if asset.StorageKey != asset.ContentHash[:2]+"/"+asset.ContentHash+".png" {
		t.Fatalf("storage key = %q", asset.StorageKey)
	}
	if asset.SizeBytes != int64(len("fake png bytes")) {
		t.Fatalf("size = %d", asset.SizeBytes)
	}
	if got := svc.AccessPath(asset); got != "/media/messages/"+asset.StorageKey {
		t.Fatalf("access path = %q", got)
	}

	rc, opened, err := svc.Open(ctx, KindMessage, asset.StorageKey)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "fake png bytes" {
		t.Fatalf("read %q", data)
	}
	if opened.Mime != "image/png" || opened.ContentHash != asset.ContentHash {
		t.Fatalf("derived asset = %+v", opened)
	}
}

func TestIngestDeduplicates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, IngestInput{Kind: KindAvatar, Mime: "image/jpeg", Reader: strings.NewReader("same")})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := svc.Ingest(ctx, IngestInput{Kind: KindAvatar, Mime: "image/jpeg", Reader: strings.NewReader("same")})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if first.StorageKey != second.StorageKey {
		t.Fatalf("dedup keys differ: %q vs %q", first.StorageKey, second.StorageKey)
	}
}

func TestIngestRejections(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, IngestInput{Kind: KindMessage, Mime: "application/pdf", Reader: strings.NewReader("x")}); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("pdf ingest = %v, want ErrUnsupportedType", err)
	}

	if _, err := svc.Ingest(ctx, IngestInput{
		Kind:     KindMessage,
		Mime:     "image/gif",
		Reader:   strings.NewReader("0123456789"),
		MaxBytes: 4,
	}); !errors.Is(err, ErrAssetTooLarge) {
		t.Fatalf("oversize ingest = %v, want ErrAssetTooLarge", err)
	}

	if _, err := svc.Ingest(ctx, IngestInput{Kind: "other", Mime: "image/png", Reader: strings.NewReader("x")}); err == nil {
		t.Fatal("unknown kind accepted")
	}

	if _, _, err := svc.Open(ctx, KindMessage, "aa/nope.png"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("open missing = %v, want ErrAssetNotFound", err)
	}
}
