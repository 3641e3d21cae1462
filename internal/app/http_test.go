package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inkwell/api/internal/blob"
	"inkwell/api/internal/broadcast"
	"inkwell/api/internal/config"
	"inkwell/api/internal/store"
)

func newTestRouter(t *testing.T) (http.Handler, *Service, *broadcast.ChannelBroker) {
	t.Helper()
	broker := broadcast.NewChannelBroker()
	t.Cleanup(broker.Close)
	service := &Service{
		cfg:      config.Config{PreviewLength: 280},
		store:    newFakeStore(),
		blobs:    blob.NewInlineStore(),
		events:   broker,
		notifier: &captureNotifier{},
		search:   &fakeSearch{},
		locks:    newDraftLocks(),
	}
	server := NewHTTPServer(service, broker, "*")
	return server.Handler(), service, broker
}

func doJSON(t *testing.T, router http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/api/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if ok, exists := response["ok"]; !exists || ok != true {
		t.Fatalf("expected ok=true, got %v", ok)
	}
}

func TestDraftLifecycleOverHTTP(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/api/drafts", "u1", CreateDraftInput{
		Title:   "Chapter One",
		Content: "Hello world",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", rr.Code, rr.Body.String())
	}
	var created struct {
		Draft store.Draft `json:"draft"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	draftID := created.Draft.ID

	rr = doJSON(t, router, http.MethodGet, "/api/drafts/"+draftID, "u1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get workspace = %d, body = %s", rr.Code, rr.Body.String())
	}
	var workspace Workspace
	if err := json.Unmarshal(rr.Body.Bytes(), &workspace); err != nil {
		t.Fatal(err)
	}
	if len(workspace.Revisions) != 1 {
		t.Fatalf("revisions = %d, want 1", len(workspace.Revisions))
	}

	// A stranger gets a typed FORBIDDEN, not a 404.
	rr = doJSON(t, router, http.MethodGet, "/api/drafts/"+draftID, "u2", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("stranger get = %d, want 403", rr.Code)
	}
	var errBody map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &errBody); err != nil {
		t.Fatal(err)
	}
	if errBody["code"] != "FORBIDDEN" {
		t.Fatalf("code = %v, want FORBIDDEN", errBody["code"])
	}

	rr = doJSON(t, router, http.MethodPut, "/api/drafts/"+draftID, "u1", map[string]any{
		"content":            "Hello there, world",
		"expectedRevisionId": "rev_stale",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("stale update = %d, want 409, body = %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, router, http.MethodDelete, "/api/drafts/"+draftID, "u1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete = %d, body = %s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, router, http.MethodGet, "/api/drafts/"+draftID, "u1", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", rr.Code)
	}
}

func TestCompareEndpointValidation(t *testing.T) {
	router, service, _ := newTestRouter(t)

	draft, err := service.CreateDraft(context.Background(), "u1", CreateDraftInput{Title: "A", Content: "a"})
	if err != nil {
		t.Fatal(err)
	}

	rr := doJSON(t, router, http.MethodGet, "/api/drafts/"+draft.ID+"/compare?base="+draft.LatestRevisionID, "u1", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing target = %d, want 422", rr.Code)
	}

	rr = doJSON(t, router, http.MethodGet, "/api/drafts/"+draft.ID+"/compare?base="+draft.LatestRevisionID+"&target="+draft.LatestRevisionID, "u1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("self compare = %d, body = %s", rr.Code, rr.Body.String())
	}
	var comparison Comparison
	if err := json.Unmarshal(rr.Body.Bytes(), &comparison); err != nil {
		t.Fatal(err)
	}
	for _, segment := range comparison.Segments {
		if segment.Type != "unchanged" {
			t.Fatalf("self compare produced segment %+v", segment)
		}
	}
}

func TestEventStreamDeliversDraftEvents(t *testing.T) {
	router, service, broker := newTestRouter(t)

	draft, err := service.CreateDraft(context.Background(), "u1", CreateDraftInput{Title: "Live", Content: "v1"})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/drafts/"+draft.ID+"/events", nil).WithContext(ctx)
	req.Header.Set("X-User-ID", "u1")
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		router.ServeHTTP(rr, req)
	}()

	// Wait for the stream to attach before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for broker.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("subscriber never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}

	content := "v2"
	if _, err := service.UpdateDraft(context.Background(), draft.ID, "u1", UpdateDraftInput{Content: &content}); err != nil {
		cancel()
		t.Fatal(err)
	}

	// Give the event loop a moment to deliver, then close the stream.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rr.Body.String()
	if !strings.Contains(body, "event: draft-updated") {
		t.Fatalf("stream missing draft-updated frame: %q", body)
	}
	if !strings.Contains(body, draft.ID) {
		t.Fatalf("stream missing draft id: %q", body)
	}
}

func TestEventStreamRequiresViewAccess(t *testing.T) {
	router, service, _ := newTestRouter(t)

	draft, err := service.CreateDraft(context.Background(), "u1", CreateDraftInput{Title: "Private", Content: "v1"})
	if err != nil {
		t.Fatal(err)
	}

	rr := doJSON(t, router, http.MethodGet, "/api/drafts/"+draft.ID+"/events", "u2", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("stranger stream = %d, want 403", rr.Code)
	}
}
