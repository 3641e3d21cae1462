package access

import (
	"testing"

	"inkwell/api/internal/store"
)

func TestCanView(t *testing.T) {
	cases := []struct {
		name       string
		visibility string
		sharedWith []string
		actorID    string
		allow      bool
	}{
		{name: "owner private", visibility: store.VisibilityPrivate, actorID: "u1", allow: true},
		{name: "stranger private", visibility: store.VisibilityPrivate, actorID: "u2", allow: false},
		{name: "anonymous private", visibility: store.VisibilityPrivate, actorID: "", allow: false},
		{name: "anonymous public", visibility: store.VisibilityPublic, actorID: "", allow: true},
		{name: "stranger public", visibility: store.VisibilityPublic, actorID: "u9", allow: true},
		{name: "collaborator shared", visibility: store.VisibilityShared, sharedWith: []string{"u2"}, actorID: "u2", allow: true},
		{name: "stranger shared", visibility: store.VisibilityShared, sharedWith: []string{"u2"}, actorID: "u3", allow: false},
		{name: "collaborator listed but private", visibility: store.VisibilityPrivate, sharedWith: []string{"u2"}, actorID: "u2", allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			draft := store.Draft{OwnerID: "u1", Visibility: tc.visibility, SharedWith: tc.sharedWith}
			if got := CanView(draft, tc.actorID); got != tc.allow {
				t.Fatalf("CanView(%q) = %v, want %v", tc.actorID, got, tc.allow)
			}
		})
	}
}

func TestCanEdit(t *testing.T) {
	cases := []struct {
		name       string
		visibility string
		sharedWith []string
		actorID    string
		allow      bool
	}{
		{name: "owner always", visibility: store.VisibilityPrivate, actorID: "u1", allow: true},
		{name: "anonymous never", visibility: store.VisibilityPublic, actorID: "", allow: false},
		{name: "public grants no edit", visibility: store.VisibilityPublic, actorID: "u2", allow: false},
		{name: "collaborator shared", visibility: store.VisibilityShared, sharedWith: []string{"u2"}, actorID: "u2", allow: true},
		{name: "stranger shared", visibility: store.VisibilityShared, sharedWith: []string{"u2"}, actorID: "u3", allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			draft := store.Draft{OwnerID: "u1", Visibility: tc.visibility, SharedWith: tc.sharedWith}
			if got := CanEdit(draft, tc.actorID); got != tc.allow {
				t.Fatalf("CanEdit(%q) = %v, want %v", tc.actorID, got, tc.allow)
			}
		})
	}
}

func TestDecide(t *testing.T) {
	draft := store.Draft{OwnerID: "u1", Visibility: store.VisibilityPublic}
	if got := Decide(draft, "u1"); got != DecisionEdit {
		t.Fatalf("owner decision = %q, want %q", got, DecisionEdit)
	}
	if got := Decide(draft, "u2"); got != DecisionView {
		t.Fatalf("public viewer decision = %q, want %q", got, DecisionView)
	}
	draft.Visibility = store.VisibilityPrivate
	if got := Decide(draft, "u2"); got != DecisionNone {
		t.Fatalf("stranger decision = %q, want %q", got, DecisionNone)
	}
}
