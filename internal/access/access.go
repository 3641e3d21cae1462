// Package access holds the pure visibility predicates for drafts. The
// service consults these before every read and mutation; they never touch
// storage.
package access

import "inkwell/api/internal/store"

// Decision is the evaluated access level for a (draft, actor) pair.
type Decision string

const (
	DecisionNone Decision = "no-access"
	DecisionView Decision = "view-only"
	DecisionEdit Decision = "view-and-edit"
)

// CanView reports whether actorID may read the draft. Public drafts are
// readable by anyone, including anonymous callers (empty actorID).
func CanView(draft store.Draft, actorID string) bool {
	if draft.Visibility == store.VisibilityPublic {
		return true
	}
	if actorID == "" {
		return false
	}
	if actorID == draft.OwnerID {
		return true
	}
	return draft.Visibility == store.VisibilityShared && draft.IsSharedWith(actorID)
}

// CanEdit reports whether actorID may mutate the draft. Public visibility
// grants view to everyone but edit only to the owner and, when shared, the
// collaborator set.
func CanEdit(draft store.Draft, actorID string) bool {
	if actorID == "" {
		return false
	}
	if actorID == draft.OwnerID {
		return true
	}
	return draft.Visibility == store.VisibilityShared && draft.IsSharedWith(actorID)
}

func Decide(draft store.Draft, actorID string) Decision {
	switch {
	case CanEdit(draft, actorID):
		return DecisionEdit
	case CanView(draft, actorID):
		return DecisionView
	default:
		return DecisionNone
	}
}
