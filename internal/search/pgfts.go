package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search. It reads the
// generated tsvector columns on drafts and comments, so it needs no extra
// indexing step.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down the engine is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs a UNION ALL query across drafts and comments using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const tsQuery = "plainto_tsquery('english', $1)"
	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultDraft {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'draft'::text AS type, d.id, d.title,
				ts_headline('english', coalesce(d.preview, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				d.id AS draft_id,
				ts_rank(d.fts, %s) AS rank
			FROM drafts d
			WHERE d.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultComment {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'comment'::text AS type, c.id, c.placement AS title,
				ts_headline('english', coalesce(c.body, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.draft_id,
				ts_rank(c.fts, %s) AS rank
			FROM comments c
			WHERE c.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	combined := strings.Join(subQueries, "\nUNION ALL\n")
	query := fmt.Sprintf(`
		WITH hits AS (%s)
		SELECT type, id, title, snippet, draft_id, COUNT(*) OVER () AS total
		FROM hits
		ORDER BY rank DESC
		LIMIT $2 OFFSET $3
	`, combined)

	rows, err := p.db.QueryContext(context.Background(), query, q.Text, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts search: %w", err)
	}
	defer rows.Close()

	var results []Result
	total := 0
	for rows.Next() {
		var r Result
		var rtyp string
		if err := rows.Scan(&rtyp, &r.ID, &r.Title, &r.Snippet, &r.DraftID, &total); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(rtyp)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgfts iterate: %w", err)
	}
	return results, total, nil
}
