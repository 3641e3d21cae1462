package store

import "time"

// Draft visibility values. Anything else is sanitized to private.
const (
	VisibilityPrivate = "private"
	VisibilityShared  = "shared"
	VisibilityPublic  = "public"
)

// Comment placement values.
const (
	PlacementInline  = "inline"
	PlacementSidebar = "sidebar"
)

type Draft struct {
	ID               string
	OwnerID          string
	Title            string
	Content          string
	Preview          string
	Visibility       string
	SharedWith       []string
	LatestRevisionID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsSharedWith reports whether userID is in the collaborator set.
func (d Draft) IsSharedWith(userID string) bool {
	for _, id := range d.SharedWith {
		if id == userID {
			return true
		}
	}
	return false
}

// Revision is an immutable snapshot of a draft's content and title,
// appended on explicit save, autosave, and once at draft creation.
type Revision struct {
	ID        string
	DraftID   string
	AuthorID  string
	Title     string
	Content   string
	Autosave  bool
	Note      string
	CreatedAt time.Time
}

// Comment is an append-only feedback entry on a draft. Quote is a verbatim
// excerpt captured at comment time for inline placement; it is never
// re-validated against later content.
type Comment struct {
	ID        string
	DraftID   string
	AuthorID  string
	Body      string
	Placement string
	Quote     string
	CreatedAt time.Time
}

type Attachment struct {
	ID          string
	DraftID     string
	Filename    string
	ContentType string
	ByteSize    int64
	Checksum    string
	BlobKey     string
	UploadedAt  time.Time
}
