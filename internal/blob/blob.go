// Package blob stores attachment payloads behind an opaque reference. The
// engine never interprets the reference; it only round-trips it through
// Put/Open/Delete.
package blob

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// Store persists attachment payloads.
type Store interface {
	// Put stores data and returns the reference to keep on the attachment.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Open(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

// InlineStore embeds payloads directly in the reference as a base64 data
// URI. It needs no external service and suits small uploads and tests.
type InlineStore struct{}

func NewInlineStore() InlineStore {
	return InlineStore{}
}

func (InlineStore) Put(_ context.Context, _, contentType string, data []byte) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (InlineStore) Open(_ context.Context, ref string) ([]byte, error) {
	if !strings.HasPrefix(ref, "data:") {
		return nil, fmt.Errorf("not a data uri reference")
	}
	_, encoded, found := strings.Cut(ref, ";base64,")
	if !found {
		return nil, fmt.Errorf("malformed data uri reference")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode data uri: %w", err)
	}
	return data, nil
}

func (InlineStore) Delete(context.Context, string) error {
	// The payload lives in the reference itself; nothing to remove.
	return nil
}
