package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"inkwell/api/internal/access"
	"inkwell/api/internal/blob"
	"inkwell/api/internal/broadcast"
	"inkwell/api/internal/config"
	"inkwell/api/internal/diff"
	"inkwell/api/internal/export"
	"inkwell/api/internal/notify"
	"inkwell/api/internal/search"
	"inkwell/api/internal/store"
	"inkwell/api/internal/util"
)

type AttachmentUpload struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

type CreateDraftInput struct {
	Title       string             `json:"title"`
	Content     string             `json:"content"`
	Visibility  string             `json:"visibility"`
	SharedWith  []string           `json:"sharedWith"`
	Attachments []AttachmentUpload `json:"attachments"`
}

// UpdateDraftInput is a partial patch; nil pointer fields are left alone.
type UpdateDraftInput struct {
	Title               *string            `json:"title"`
	Content             *string            `json:"content"`
	Visibility          *string            `json:"visibility"`
	SharedWith          *[]string          `json:"sharedWith"`
	AddAttachments      []AttachmentUpload `json:"addAttachments"`
	RemoveAttachmentIDs []string           `json:"removeAttachmentIds"`
	Autosave            bool               `json:"autosave"`
	Note                string             `json:"note"`
	// ExpectedRevisionID, when set, makes the update conditional on the
	// draft's latest revision still being the one the client last saw.
	ExpectedRevisionID string `json:"expectedRevisionId"`
}

type AddCommentInput struct {
	Body      string `json:"body"`
	Placement string `json:"placement"`
	Quote     string `json:"quote"`
}

// Workspace is the full view of one draft: the record plus its ledgers.
// Access is filled per viewer by GetWorkspace and left empty on broadcast
// payloads, which are not addressed to a particular viewer.
type Workspace struct {
	Draft       store.Draft        `json:"draft"`
	Revisions   []store.Revision   `json:"revisions"`
	Comments    []store.Comment    `json:"comments"`
	Attachments []store.Attachment `json:"attachments"`
	Access      access.Decision    `json:"access,omitempty"`
}

// DraftBuckets groups a viewer's visible drafts the way the overview
// screen presents them. Each bucket keeps most-recently-updated order.
type DraftBuckets struct {
	Owned         []store.Draft `json:"owned"`
	Collaborating []store.Draft `json:"collaborating"`
	Public        []store.Draft `json:"public"`
}

// Comparison is the result of diffing two revisions of the same draft.
type Comparison struct {
	Base     store.Revision `json:"base"`
	Target   store.Revision `json:"target"`
	Segments []diff.Segment `json:"segments"`
}

type dataStore interface {
	InsertDraft(ctx context.Context, draft store.Draft, initial store.Revision, attachments []store.Attachment) error
	GetDraft(ctx context.Context, draftID string) (store.Draft, error)
	UpdateDraft(ctx context.Context, draft store.Draft, rev *store.Revision, addAttachments []store.Attachment, removeAttachmentIDs []string) error
	DeleteDraft(ctx context.Context, draftID string) error
	ListDrafts(ctx context.Context) ([]store.Draft, error)
	ListRevisions(ctx context.Context, draftID string) ([]store.Revision, error)
	GetRevision(ctx context.Context, revisionID string) (store.Revision, error)
	InsertComment(ctx context.Context, comment store.Comment) error
	ListComments(ctx context.Context, draftID string) ([]store.Comment, error)
	ListAttachments(ctx context.Context, draftID string) ([]store.Attachment, error)
	GetAttachment(ctx context.Context, draftID, attachmentID string) (store.Attachment, error)
	Ping(ctx context.Context) error
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexDraft(record search.DraftRecord)
	IndexComment(record search.CommentRecord)
	DeleteDraft(draftID string)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	blobs    blob.Store
	events   broadcast.Publisher
	notifier notify.Sink
	search   searchIndex
	locks    *draftLocks
}

func New(cfg config.Config, dataStore *store.PostgresStore, blobs blob.Store, events broadcast.Publisher, notifier notify.Sink, searchService *search.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		blobs:    blobs,
		events:   events,
		notifier: notifier,
		search:   searchService,
		locks:    newDraftLocks(),
	}
}

func (s *Service) CreateDraft(ctx context.Context, ownerID string, input CreateDraftInput) (store.Draft, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return store.Draft{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "ownerId is required", nil)
	}

	now := time.Now().UTC()
	draftID := util.NewID("draft")
	revisionID := util.NewID("rev")

	attachments, err := s.storeUploads(ctx, draftID, input.Attachments, now)
	if err != nil {
		return store.Draft{}, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "Untitled draft"
	}
	draft := store.Draft{
		ID:               draftID,
		OwnerID:          ownerID,
		Title:            title,
		Content:          input.Content,
		Preview:          s.derivePreview(input.Content),
		Visibility:       sanitizeVisibility(input.Visibility),
		SharedWith:       sanitizeSharedWith(ownerID, input.SharedWith),
		LatestRevisionID: revisionID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	initial := store.Revision{
		ID:        revisionID,
		DraftID:   draftID,
		AuthorID:  ownerID,
		Title:     draft.Title,
		Content:   draft.Content,
		Autosave:  false,
		Note:      "Initial draft",
		CreatedAt: now,
	}

	if err := s.store.InsertDraft(ctx, draft, initial, attachments); err != nil {
		s.discardBlobs(attachments)
		return store.Draft{}, err
	}

	s.search.IndexDraft(search.DraftRecord{ID: draft.ID, Title: draft.Title, Preview: draft.Preview})
	s.events.Publish(broadcast.Event{
		Type:    broadcast.EventDraftUpdated,
		DraftID: draft.ID,
		Payload: Workspace{
			Draft:       draft,
			Revisions:   []store.Revision{initial},
			Comments:    []store.Comment{},
			Attachments: attachments,
		},
	})
	return draft, nil
}

func (s *Service) GetWorkspace(ctx context.Context, draftID, viewerID string) (Workspace, error) {
	draft, err := s.getDraft(ctx, draftID)
	if err != nil {
		return Workspace{}, err
	}
	if !access.CanView(draft, viewerID) {
		return Workspace{}, domainError(http.StatusForbidden, "FORBIDDEN", "you do not have access to this draft", nil)
	}
	workspace, err := s.loadWorkspace(ctx, draft)
	if err != nil {
		return Workspace{}, err
	}
	workspace.Access = access.Decide(draft, viewerID)
	return workspace, nil
}

func (s *Service) UpdateDraft(ctx context.Context, draftID, actorID string, input UpdateDraftInput) (Workspace, error) {
	unlock := s.locks.lock(draftID)
	defer unlock()

	draft, err := s.getDraft(ctx, draftID)
	if err != nil {
		return Workspace{}, err
	}
	if !access.CanEdit(draft, actorID) {
		return Workspace{}, domainError(http.StatusForbidden, "FORBIDDEN", "you cannot edit this draft", nil)
	}
	if input.ExpectedRevisionID != "" && input.ExpectedRevisionID != draft.LatestRevisionID {
		return Workspace{}, domainError(http.StatusConflict, "CONFLICT", "draft has newer revisions than the one you last saw", map[string]any{
			"expectedRevisionId": input.ExpectedRevisionID,
			"latestRevisionId":   draft.LatestRevisionID,
		})
	}

	now := time.Now().UTC()
	contentChanged := false
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title != "" {
			draft.Title = title
		}
	}
	if input.Content != nil && *input.Content != draft.Content {
		draft.Content = *input.Content
		draft.Preview = s.derivePreview(draft.Content)
		contentChanged = true
	}
	if input.Visibility != nil {
		draft.Visibility = sanitizeVisibility(*input.Visibility)
	}
	if input.SharedWith != nil {
		draft.SharedWith = sanitizeSharedWith(draft.OwnerID, *input.SharedWith)
	}

	var rev *store.Revision
	if contentChanged || input.Autosave {
		rev = &store.Revision{
			ID:        util.NewID("rev"),
			DraftID:   draft.ID,
			AuthorID:  actorID,
			Title:     draft.Title,
			Content:   draft.Content,
			Autosave:  input.Autosave,
			Note:      strings.TrimSpace(input.Note),
			CreatedAt: now,
		}
		draft.LatestRevisionID = rev.ID
	}

	added, err := s.storeUploads(ctx, draft.ID, input.AddAttachments, now)
	if err != nil {
		return Workspace{}, err
	}

	removeIDs, removedRefs, err := s.resolveRemovals(ctx, draft.ID, input.RemoveAttachmentIDs)
	if err != nil {
		s.discardBlobs(added)
		return Workspace{}, err
	}

	draft.UpdatedAt = now
	if err := s.store.UpdateDraft(ctx, draft, rev, added, removeIDs); err != nil {
		s.discardBlobs(added)
		return Workspace{}, err
	}
	for _, ref := range removedRefs {
		if err := s.blobs.Delete(ctx, ref); err != nil {
			log.Printf("app: delete attachment blob %s: %v", ref, err)
		}
	}

	s.search.IndexDraft(search.DraftRecord{ID: draft.ID, Title: draft.Title, Preview: draft.Preview})

	workspace, err := s.loadWorkspace(ctx, draft)
	if err != nil {
		return Workspace{}, err
	}
	s.events.Publish(broadcast.Event{
		Type:    broadcast.EventDraftUpdated,
		DraftID: draft.ID,
		Payload: workspace,
	})
	workspace.Access = access.Decide(draft, actorID)
	return workspace, nil
}

func (s *Service) DeleteDraft(ctx context.Context, draftID, actorID string) error {
	unlock := s.locks.lock(draftID)
	defer unlock()

	draft, err := s.getDraft(ctx, draftID)
	if err != nil {
		return err
	}
	if draft.OwnerID != actorID {
		return domainError(http.StatusForbidden, "FORBIDDEN", "only the owner can delete a draft", nil)
	}

	attachments, err := s.store.ListAttachments(ctx, draftID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDraft(ctx, draftID); err != nil {
		return err
	}
	for _, att := range attachments {
		if err := s.blobs.Delete(ctx, att.BlobKey); err != nil {
			log.Printf("app: delete attachment blob %s: %v", att.BlobKey, err)
		}
	}
	s.search.DeleteDraft(draftID)
	return nil
}

func (s *Service) ListForViewer(ctx context.Context, viewerID string) (DraftBuckets, error) {
	drafts, err := s.store.ListDrafts(ctx)
	if err != nil {
		return DraftBuckets{}, err
	}
	buckets := DraftBuckets{
		Owned:         make([]store.Draft, 0),
		Collaborating: make([]store.Draft, 0),
		Public:        make([]store.Draft, 0),
	}
	for _, draft := range drafts {
		switch {
		case draft.OwnerID == viewerID && viewerID != "":
			buckets.Owned = append(buckets.Owned, draft)
		case access.CanEdit(draft, viewerID):
			buckets.Collaborating = append(buckets.Collaborating, draft)
		case draft.Visibility == store.VisibilityPublic:
			buckets.Public = append(buckets.Public, draft)
		}
	}
	return buckets, nil
}

func (s *Service) ListRevisions(ctx context.Context, draftID, viewerID string) ([]store.Revision, error) {
	draft, err := s.getDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if !access.CanView(draft, viewerID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "you do not have access to this draft", nil)
	}
	return s.store.ListRevisions(ctx, draftID)
}

func (s *Service) CompareRevisions(ctx context.Context, draftID, baseID, targetID, viewerID string) (Comparison, error) {
	draft, err := s.getDraft(ctx, draftID)
	if err != nil {
		return Comparison{}, err
	}
	if !access.CanView(draft, viewerID) {
		return Comparison{}, domainError(http.StatusForbidden, "FORBIDDEN", "you do not have access to this draft", nil)
	}
	base, err := s.getDraftRevision(ctx, draftID, baseID)
	if err != nil {
		return Comparison{}, err
	}
	target, err := s.getDraftRevision(ctx, draftID, targetID)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{
		Base:     base,
		Target:   target,
		Segments: diff.Compare(base.Content, target.Content),
	}, nil
}

func (s *Service) AddComment(ctx context.Context, draftID, authorID string, input AddCommentInput) (store.Comment, error) {
	authorID = strings.TrimSpace(authorID)
	if authorID == "" {
		return store.Comment{}, domainError(http.StatusForbidden, "FORBIDDEN", "comments must be attributed to a user", nil)
	}

	unlock := s.locks.lock(draftID)
	defer unlock()

	draft, err := s.getDraft(ctx, draftID)
	if err != nil {
		return store.Comment{}, err
	}
	if !access.CanView(draft, authorID) {
		return store.Comment{}, domainError(http.StatusForbidden, "FORBIDDEN", "you do not have access to this draft", nil)
	}

	body := strings.TrimSpace(input.Body)
	if body == "" {
		return store.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is required", nil)
	}
	placement := input.Placement
	if placement != store.PlacementInline {
		placement = store.PlacementSidebar
	}
	quote := strings.TrimSpace(input.Quote)
	if placement != store.PlacementInline {
		quote = ""
	}

	comment := store.Comment{
		ID:        util.NewID("cmt"),
		DraftID:   draft.ID,
		AuthorID:  authorID,
		Body:      body,
		Placement: placement,
		Quote:     quote,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return store.Comment{}, err
	}

	if authorID != draft.OwnerID {
		notification := notify.Notification{
			Type:      string(broadcast.EventDraftCommented),
			ActorID:   authorID,
			SubjectID: draft.ID,
			Summary:   fmt.Sprintf("%s commented on %q", authorID, draft.Title),
			CreatedAt: comment.CreatedAt,
		}
		if err := s.notifier.Notify(ctx, draft.OwnerID, notification); err != nil {
			log.Printf("app: notify %s about comment on %s: %v", draft.OwnerID, draft.ID, err)
		}
	}

	s.search.IndexComment(search.CommentRecord{
		ID:        comment.ID,
		DraftID:   comment.DraftID,
		Body:      comment.Body,
		Placement: comment.Placement,
		AuthorID:  comment.AuthorID,
	})
	s.events.Publish(broadcast.Event{
		Type:    broadcast.EventDraftCommented,
		DraftID: draft.ID,
		Payload: comment,
	})
	return comment, nil
}

func (s *Service) OpenAttachment(ctx context.Context, draftID, attachmentID, viewerID string) (store.Attachment, []byte, error) {
	draft, err := s.getDraft(ctx, draftID)
	if err != nil {
		return store.Attachment{}, nil, err
	}
	if !access.CanView(draft, viewerID) {
		return store.Attachment{}, nil, domainError(http.StatusForbidden, "FORBIDDEN", "you do not have access to this draft", nil)
	}

	att, err := s.store.GetAttachment(ctx, draftID, attachmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Attachment{}, nil, domainError(http.StatusNotFound, "NOT_FOUND", "attachment not found", nil)
	}
	if err != nil {
		return store.Attachment{}, nil, err
	}

	data, err := s.blobs.Open(ctx, att.BlobKey)
	if err != nil {
		return store.Attachment{}, nil, fmt.Errorf("open attachment %s: %w", att.ID, err)
	}
	if att.Checksum != "" && util.Checksum(data) != att.Checksum {
		return store.Attachment{}, nil, fmt.Errorf("attachment %s failed checksum verification", att.ID)
	}
	return att, data, nil
}

func (s *Service) ExportRevision(ctx context.Context, draftID, revisionID, viewerID string, format export.Format, includeComments bool) (*export.Result, error) {
	draft, err := s.getDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if !access.CanView(draft, viewerID) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "you do not have access to this draft", nil)
	}
	rev, err := s.getDraftRevision(ctx, draftID, revisionID)
	if err != nil {
		return nil, err
	}

	doc := export.Document{
		Title:       rev.Title,
		ContentHTML: rev.Content,
		AuthorID:    rev.AuthorID,
		Note:        rev.Note,
		SavedAt:     rev.CreatedAt,
	}
	var comments []export.Comment
	if includeComments {
		stored, err := s.store.ListComments(ctx, draftID)
		if err != nil {
			return nil, err
		}
		comments = make([]export.Comment, 0, len(stored))
		for _, c := range stored {
			comments = append(comments, export.Comment{
				AuthorID:  c.AuthorID,
				Body:      c.Body,
				Placement: c.Placement,
				Quote:     c.Quote,
				CreatedAt: c.CreatedAt,
			})
		}
	}
	return export.Render(format, doc, comments)
}

// Search runs the query and filters hits through the access policy so a
// viewer never sees results from drafts they cannot open.
func (s *Service) Search(ctx context.Context, viewerID string, q search.Query) (search.Response, error) {
	response := s.search.Search(q)
	if len(response.Results) == 0 {
		return response, nil
	}

	drafts, err := s.store.ListDrafts(ctx)
	if err != nil {
		return search.Response{}, err
	}
	visible := make(map[string]bool, len(drafts))
	for _, draft := range drafts {
		visible[draft.ID] = access.CanView(draft, viewerID)
	}

	filtered := make([]search.Result, 0, len(response.Results))
	for _, hit := range response.Results {
		if visible[hit.DraftID] {
			filtered = append(filtered, hit)
		}
	}
	response.Results = filtered
	response.Total = len(filtered)
	return response, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// AuthorizeView reports whether viewerID may read draftID, using the same
// typed failures as the read operations. The event stream handler uses it
// before attaching a subscriber.
func (s *Service) AuthorizeView(ctx context.Context, draftID, viewerID string) error {
	draft, err := s.getDraft(ctx, draftID)
	if err != nil {
		return err
	}
	if !access.CanView(draft, viewerID) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "you do not have access to this draft", nil)
	}
	return nil
}

func (s *Service) getDraft(ctx context.Context, draftID string) (store.Draft, error) {
	draft, err := s.store.GetDraft(ctx, draftID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Draft{}, domainError(http.StatusNotFound, "NOT_FOUND", "draft not found", nil)
	}
	if err != nil {
		return store.Draft{}, err
	}
	return draft, nil
}

func (s *Service) getDraftRevision(ctx context.Context, draftID, revisionID string) (store.Revision, error) {
	rev, err := s.store.GetRevision(ctx, revisionID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Revision{}, domainError(http.StatusNotFound, "INVALID_REFERENCE", "revision not found", nil)
	}
	if err != nil {
		return store.Revision{}, err
	}
	if rev.DraftID != draftID {
		return store.Revision{}, domainError(http.StatusNotFound, "INVALID_REFERENCE", "revision does not belong to this draft", nil)
	}
	return rev, nil
}

func (s *Service) loadWorkspace(ctx context.Context, draft store.Draft) (Workspace, error) {
	revisions, err := s.store.ListRevisions(ctx, draft.ID)
	if err != nil {
		return Workspace{}, err
	}
	comments, err := s.store.ListComments(ctx, draft.ID)
	if err != nil {
		return Workspace{}, err
	}
	attachments, err := s.store.ListAttachments(ctx, draft.ID)
	if err != nil {
		return Workspace{}, err
	}
	return Workspace{
		Draft:       draft,
		Revisions:   revisions,
		Comments:    comments,
		Attachments: attachments,
	}, nil
}

// storeUploads writes payloads to blob storage and returns the attachment
// records to persist. On later persistence failure the caller discards the
// blobs again via discardBlobs.
func (s *Service) storeUploads(ctx context.Context, draftID string, uploads []AttachmentUpload, now time.Time) ([]store.Attachment, error) {
	attachments := make([]store.Attachment, 0, len(uploads))
	for _, upload := range uploads {
		filename := strings.TrimSpace(upload.Filename)
		if filename == "" {
			s.discardBlobs(attachments)
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "attachment filename is required", nil)
		}
		contentType := upload.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		attachmentID := util.NewID("att")
		ref, err := s.blobs.Put(ctx, "attachments/"+draftID+"/"+attachmentID, contentType, upload.Data)
		if err != nil {
			s.discardBlobs(attachments)
			return nil, fmt.Errorf("store attachment %s: %w", filename, err)
		}
		attachments = append(attachments, store.Attachment{
			ID:          attachmentID,
			DraftID:     draftID,
			Filename:    filename,
			ContentType: contentType,
			ByteSize:    int64(len(upload.Data)),
			Checksum:    util.Checksum(upload.Data),
			BlobKey:     ref,
			UploadedAt:  now,
		})
	}
	return attachments, nil
}

func (s *Service) discardBlobs(attachments []store.Attachment) {
	for _, att := range attachments {
		if err := s.blobs.Delete(context.Background(), att.BlobKey); err != nil {
			log.Printf("app: discard attachment blob %s: %v", att.BlobKey, err)
		}
	}
}

// resolveRemovals maps requested attachment ids to their blob references.
// Unknown ids are ignored; removal is idempotent.
func (s *Service) resolveRemovals(ctx context.Context, draftID string, ids []string) ([]string, []string, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}
	existing, err := s.store.ListAttachments(ctx, draftID)
	if err != nil {
		return nil, nil, err
	}
	refByID := make(map[string]string, len(existing))
	for _, att := range existing {
		refByID[att.ID] = att.BlobKey
	}
	removeIDs := make([]string, 0, len(ids))
	refs := make([]string, 0, len(ids))
	for _, id := range ids {
		ref, ok := refByID[id]
		if !ok {
			continue
		}
		removeIDs = append(removeIDs, id)
		refs = append(refs, ref)
	}
	return removeIDs, refs, nil
}

func sanitizeVisibility(visibility string) string {
	switch strings.ToLower(strings.TrimSpace(visibility)) {
	case store.VisibilityShared:
		return store.VisibilityShared
	case store.VisibilityPublic:
		return store.VisibilityPublic
	default:
		return store.VisibilityPrivate
	}
}

// sanitizeSharedWith drops the owner, blanks and duplicates while keeping
// the caller's ordering.
func sanitizeSharedWith(ownerID string, sharedWith []string) []string {
	seen := make(map[string]struct{}, len(sharedWith))
	cleaned := make([]string, 0, len(sharedWith))
	for _, id := range sharedWith {
		id = strings.TrimSpace(id)
		if id == "" || id == ownerID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		cleaned = append(cleaned, id)
	}
	return cleaned
}

func (s *Service) derivePreview(content string) string {
	limit := s.cfg.PreviewLength
	if limit <= 0 {
		limit = 280
	}
	text := diff.PlainText(content)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
