package blob

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestInlineStoreRoundTrip(t *testing.T) {
	store := NewInlineStore()
	ctx := context.Background()

	payload := []byte("manuscript page bytes")
	ref, err := store.Put(ctx, "att_1", "text/plain", payload)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasPrefix(ref, "data:text/plain;base64,") {
		t.Fatalf("unexpected reference %q", ref)
	}

	got, err := store.Open(ctx, ref)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("Open() = %q, want %q", got, payload)
	}

	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestInlineStoreDefaultsContentType(t *testing.T) {
	store := NewInlineStore()
	ref, err := store.Put(context.Background(), "att_1", "", []byte{0x01})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasPrefix(ref, "data:application/octet-stream;base64,") {
		t.Fatalf("unexpected reference %q", ref)
	}
}

func TestInlineStoreRejectsForeignReference(t *testing.T) {
	store := NewInlineStore()
	if _, err := store.Open(context.Background(), "attachments/att_1"); err == nil {
		t.Fatal("expected error for non data-uri reference")
	}
	if _, err := store.Open(context.Background(), "data:text/plain,plain"); err == nil {
		t.Fatal("expected error for non base64 data uri")
	}
}
