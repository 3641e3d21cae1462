package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// InsertDraft persists a new draft together with its initial revision and
// any attachments supplied at creation in a single transaction, so a draft
// is never visible without at least one ledger entry.
func (s *PostgresStore) InsertDraft(ctx context.Context, draft Draft, initial Revision, attachments []Attachment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert draft: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO drafts (id, owner_id, title, content, preview, visibility, latest_revision_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, draft.ID, draft.OwnerID, draft.Title, draft.Content, draft.Preview, draft.Visibility, draft.LatestRevisionID, draft.CreatedAt, draft.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}

	for _, userID := range draft.SharedWith {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO draft_collaborators (draft_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (draft_id, user_id) DO NOTHING
		`, draft.ID, userID); err != nil {
			return fmt.Errorf("insert collaborator: %w", err)
		}
	}

	if err := insertRevisionTx(ctx, tx, initial); err != nil {
		return err
	}
	if err := insertAttachmentsTx(ctx, tx, attachments); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert draft: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDraft(ctx context.Context, draftID string) (Draft, error) {
	var item Draft
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, content, preview, visibility, coalesce(latest_revision_id, ''), created_at, updated_at
		FROM drafts
		WHERE id=$1
	`, draftID).Scan(&item.ID, &item.OwnerID, &item.Title, &item.Content, &item.Preview, &item.Visibility, &item.LatestRevisionID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Draft{}, err
	}

	item.SharedWith, err = s.listCollaborators(ctx, draftID)
	if err != nil {
		return Draft{}, err
	}
	return item, nil
}

func (s *PostgresStore) listCollaborators(ctx context.Context, draftID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM draft_collaborators WHERE draft_id=$1 ORDER BY added_at
	`, draftID)
	if err != nil {
		return nil, fmt.Errorf("list collaborators: %w", err)
	}
	defer rows.Close()

	users := make([]string, 0)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan collaborator: %w", err)
		}
		users = append(users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collaborators: %w", err)
	}
	return users, nil
}

// UpdateDraft writes the mutable draft record, replaces its collaborator
// set, and optionally appends a revision and adds/removes attachments, all
// in one transaction. rev may be nil for sharing/attachment-only updates.
func (s *PostgresStore) UpdateDraft(ctx context.Context, draft Draft, rev *Revision, addAttachments []Attachment, removeAttachmentIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update draft: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		UPDATE drafts
		SET title=$2, content=$3, preview=$4, visibility=$5, latest_revision_id=NULLIF($6, ''), updated_at=$7
		WHERE id=$1
	`, draft.ID, draft.Title, draft.Content, draft.Preview, draft.Visibility, draft.LatestRevisionID, draft.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update draft: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM draft_collaborators WHERE draft_id=$1`, draft.ID); err != nil {
		return fmt.Errorf("clear collaborators: %w", err)
	}
	for _, userID := range draft.SharedWith {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO draft_collaborators (draft_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (draft_id, user_id) DO NOTHING
		`, draft.ID, userID); err != nil {
			return fmt.Errorf("insert collaborator: %w", err)
		}
	}

	if rev != nil {
		if err := insertRevisionTx(ctx, tx, *rev); err != nil {
			return err
		}
	}

	if err := insertAttachmentsTx(ctx, tx, addAttachments); err != nil {
		return err
	}
	for _, attID := range removeAttachmentIDs {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM attachments WHERE id=$1 AND draft_id=$2
		`, attID, draft.ID); err != nil {
			return fmt.Errorf("delete attachment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update draft: %w", err)
	}
	return nil
}

// DeleteDraft removes the draft row; revisions, comments, collaborators and
// attachment records go with it via ON DELETE CASCADE.
func (s *PostgresStore) DeleteDraft(ctx context.Context, draftID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE id=$1`, draftID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDrafts(ctx context.Context) ([]Draft, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, title, content, preview, visibility, coalesce(latest_revision_id, ''), created_at, updated_at
		FROM drafts
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	items := make([]Draft, 0)
	index := make(map[string]int)
	for rows.Next() {
		var item Draft
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Title, &item.Content, &item.Preview, &item.Visibility, &item.LatestRevisionID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		index[item.ID] = len(items)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drafts: %w", err)
	}

	collabRows, err := s.db.QueryContext(ctx, `
		SELECT draft_id, user_id FROM draft_collaborators ORDER BY added_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list collaborators: %w", err)
	}
	defer collabRows.Close()

	for collabRows.Next() {
		var draftID, userID string
		if err := collabRows.Scan(&draftID, &userID); err != nil {
			return nil, fmt.Errorf("scan collaborator: %w", err)
		}
		if i, ok := index[draftID]; ok {
			items[i].SharedWith = append(items[i].SharedWith, userID)
		}
	}
	if err := collabRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collaborators: %w", err)
	}
	return items, nil
}

func insertRevisionTx(ctx context.Context, tx *sql.Tx, rev Revision) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO revisions (id, draft_id, author_id, title, content, autosave, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rev.ID, rev.DraftID, rev.AuthorID, rev.Title, rev.Content, rev.Autosave, rev.Note, rev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	return nil
}

func insertAttachmentsTx(ctx context.Context, tx *sql.Tx, attachments []Attachment) error {
	for _, att := range attachments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attachments (id, draft_id, filename, content_type, byte_size, checksum, blob_key, uploaded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, att.ID, att.DraftID, att.Filename, att.ContentType, att.ByteSize, att.Checksum, att.BlobKey, att.UploadedAt); err != nil {
			return fmt.Errorf("insert attachment: %w", err)
		}
	}
	return nil
}

// ListRevisions returns the revision ledger for a draft in creation order.
// Ties on created_at fall back to id so the order is stable.
func (s *PostgresStore) ListRevisions(ctx context.Context, draftID string) ([]Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, draft_id, author_id, title, content, autosave, note, created_at
		FROM revisions
		WHERE draft_id=$1
		ORDER BY created_at, id
	`, draftID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	items := make([]Revision, 0)
	for rows.Next() {
		var item Revision
		if err := rows.Scan(&item.ID, &item.DraftID, &item.AuthorID, &item.Title, &item.Content, &item.Autosave, &item.Note, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetRevision(ctx context.Context, revisionID string) (Revision, error) {
	var item Revision
	err := s.db.QueryRowContext(ctx, `
		SELECT id, draft_id, author_id, title, content, autosave, note, created_at
		FROM revisions
		WHERE id=$1
	`, revisionID).Scan(&item.ID, &item.DraftID, &item.AuthorID, &item.Title, &item.Content, &item.Autosave, &item.Note, &item.CreatedAt)
	if err != nil {
		return Revision{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, draft_id, author_id, body, placement, quote, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`, comment.ID, comment.DraftID, comment.AuthorID, comment.Body, comment.Placement, comment.Quote, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListComments(ctx context.Context, draftID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, draft_id, author_id, body, placement, coalesce(quote, ''), created_at
		FROM comments
		WHERE draft_id=$1
		ORDER BY created_at, id
	`, draftID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.ID, &item.DraftID, &item.AuthorID, &item.Body, &item.Placement, &item.Quote, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListAttachments(ctx context.Context, draftID string) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, draft_id, filename, content_type, byte_size, checksum, blob_key, uploaded_at
		FROM attachments
		WHERE draft_id=$1
		ORDER BY uploaded_at, id
	`, draftID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	items := make([]Attachment, 0)
	for rows.Next() {
		var item Attachment
		if err := rows.Scan(&item.ID, &item.DraftID, &item.Filename, &item.ContentType, &item.ByteSize, &item.Checksum, &item.BlobKey, &item.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetAttachment(ctx context.Context, draftID, attachmentID string) (Attachment, error) {
	var item Attachment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, draft_id, filename, content_type, byte_size, checksum, blob_key, uploaded_at
		FROM attachments
		WHERE id=$1 AND draft_id=$2
	`, attachmentID, draftID).Scan(&item.ID, &item.DraftID, &item.Filename, &item.ContentType, &item.ByteSize, &item.Checksum, &item.BlobKey, &item.UploadedAt)
	if err != nil {
		return Attachment{}, err
	}
	return item, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
