package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Meirbek-dev/ai-reception/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	original_name TEXT NOT NULL,
	stored_filename TEXT,
	applicant_name TEXT NOT NULL,
	applicant_lastname TEXT NOT NULL,
	category_predicted TEXT NOT NULL,
	category_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	category_final TEXT,
	status TEXT NOT NULL,
	assigned_reviewer_id TEXT,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS document_texts (
	document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
	text_excerpt TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS review_actions (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	reviewer_id TEXT,
	action TEXT NOT NULL,
	from_category TEXT,
	to_category TEXT,
	comment TEXT,
	duration_seconds BIGINT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);
CREATE INDEX IF NOT EXISTS idx_review_actions_document ON review_actions(document_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Create persists the document row and its text excerpt in one
// transaction: both land or neither does.
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO documents (
	id, original_name, stored_filename, applicant_name, applicant_lastname,
	category_predicted, category_confidence, category_final, status,
	assigned_reviewer_id, size_bytes, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		doc.ID, doc.OriginalName, doc.StoredFilename, doc.ApplicantName, doc.ApplicantLastname,
		string(doc.CategoryPredicted), doc.CategoryConfidence, categoryPtr(doc.CategoryFinal),
		string(doc.Status), doc.AssignedReviewerID, doc.SizeBytes, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	if doc.TextExcerpt != "" {
		_, err = tx.ExecContext(ctx, `
INSERT INTO document_texts (document_id, text_excerpt, created_at) VALUES ($1,$2,$3)
`, doc.ID, doc.TextExcerpt, doc.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert document text: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create tx: %w", err)
	}
	return nil
}

const documentColumns = `
d.id, d.original_name, d.stored_filename, d.applicant_name, d.applicant_lastname,
d.category_predicted, d.category_confidence, d.category_final, d.status,
d.assigned_reviewer_id, d.size_bytes, COALESCE(t.text_excerpt, ''), d.created_at, d.updated_at`

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents d
LEFT JOIN document_texts t ON t.document_id = d.id
WHERE d.id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "fetch document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

// ListByStatus returns documents oldest-created-first so the longest
// waiting document is offered to reviewers first.
func (r *DocumentRepository) ListByStatus(ctx context.Context, status domain.DocumentStatus, limit, offset int) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents d
LEFT JOIN document_texts t ON t.document_id = d.id
WHERE d.status = $1
ORDER BY d.created_at ASC
LIMIT $2 OFFSET $3
`, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query documents by status: %w", err)
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document rows: %w", err)
	}
	return out, nil
}

// Claim performs the status+assignee compare-and-set and writes the CLAIM
// action in the same transaction. Two racing reviewers can never both
// succeed: the conditional UPDATE matches at most once.
func (r *DocumentRepository) Claim(ctx context.Context, documentID, reviewerID string) (*domain.Document, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	row := tx.QueryRowContext(ctx, `
UPDATE documents d SET status = $3, assigned_reviewer_id = $2, updated_at = $4
WHERE d.id = $1 AND d.status = $5 AND d.assigned_reviewer_id IS NULL
RETURNING `+updatedColumns+`
`, documentID, reviewerID, string(domain.StatusInReview), now, string(domain.StatusQueued))

	doc, err := scanUpdatedDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.conflictState(ctx, documentID)
		}
		return nil, fmt.Errorf("claim document: %w", err)
	}

	if err := insertAction(ctx, tx, domain.ReviewAction{
		DocumentID:   documentID,
		ReviewerID:   &reviewerID,
		Action:       domain.ActionClaim,
		FromCategory: &doc.CategoryPredicted,
		CreatedAt:    now,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return doc, nil
}

// Release returns an in-review document to the queue. Only the assigned
// reviewer may release; the guard is part of the UPDATE predicate.
func (r *DocumentRepository) Release(ctx context.Context, documentID, reviewerID string) (*domain.Document, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin release tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	row := tx.QueryRowContext(ctx, `
UPDATE documents d SET status = $3, assigned_reviewer_id = NULL, updated_at = $4
WHERE d.id = $1 AND d.status = $5 AND d.assigned_reviewer_id = $2
RETURNING `+updatedColumns+`
`, documentID, reviewerID, string(domain.StatusQueued), now, string(domain.StatusInReview))

	doc, err := scanUpdatedDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.conflictState(ctx, documentID)
		}
		return nil, fmt.Errorf("release document: %w", err)
	}

	if err := insertAction(ctx, tx, domain.ReviewAction{
		DocumentID:   documentID,
		ReviewerID:   &reviewerID,
		Action:       domain.ActionRelease,
		FromCategory: &doc.CategoryPredicted,
		CreatedAt:    now,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit release tx: %w", err)
	}
	return doc, nil
}

// Resolve finalizes the review: guard, category_final, optional applicant
// corrections, and the ACCEPT/OVERRIDE action, all in one transaction.
// Duration is measured from the reviewer's latest CLAIM on this document.
func (r *DocumentRepository) Resolve(ctx context.Context, req domain.ResolveRequest, reviewerID string) (*domain.Document, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin resolve tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()

	var claimedAt sql.NullTime
	err = tx.QueryRowContext(ctx, `
SELECT created_at FROM review_actions
WHERE document_id = $1 AND reviewer_id = $2 AND action = $3
ORDER BY created_at DESC
LIMIT 1
`, req.DocumentID, reviewerID, string(domain.ActionClaim)).Scan(&claimedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find claim action: %w", err)
	}

	// assigned_reviewer_id is cleared: the assignee column is only
	// meaningful while the document is in review.
	row := tx.QueryRowContext(ctx, `
UPDATE documents d SET
	status = $3,
	category_final = $4,
	assigned_reviewer_id = NULL,
	applicant_name = COALESCE($5, d.applicant_name),
	applicant_lastname = COALESCE($6, d.applicant_lastname),
	updated_at = $7
WHERE d.id = $1 AND d.status = $8 AND d.assigned_reviewer_id = $2
RETURNING `+updatedColumns+`
`, req.DocumentID, reviewerID, string(domain.StatusResolved), string(req.FinalCategory),
		req.ApplicantName, req.ApplicantLastname, now, string(domain.StatusInReview))

	doc, err := scanUpdatedDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.conflictState(ctx, req.DocumentID)
		}
		return nil, fmt.Errorf("resolve document: %w", err)
	}

	action := domain.ReviewAction{
		DocumentID:   req.DocumentID,
		ReviewerID:   &reviewerID,
		Action:       domain.ResolveActionType(doc.CategoryPredicted, req.FinalCategory),
		FromCategory: &doc.CategoryPredicted,
		ToCategory:   &req.FinalCategory,
		Comment:      req.Comment,
		CreatedAt:    now,
	}
	if claimedAt.Valid {
		duration := int64(now.Sub(claimedAt.Time).Seconds())
		action.DurationSeconds = &duration
	}
	if err := insertAction(ctx, tx, action); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit resolve tx: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) AuditTrail(ctx context.Context, documentID string) ([]domain.ReviewAction, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, reviewer_id, action, from_category, to_category, comment, duration_seconds, created_at
FROM review_actions
WHERE document_id = $1
ORDER BY created_at ASC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	var out []domain.ReviewAction
	for rows.Next() {
		var a domain.ReviewAction
		var action string
		var from, to sql.NullString
		if err := rows.Scan(&a.ID, &a.DocumentID, &a.ReviewerID, &action, &from, &to,
			&a.Comment, &a.DurationSeconds, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review action: %w", err)
		}
		a.Action = domain.ReviewActionType(action)
		if from.Valid {
			c := domain.Category(from.String)
			a.FromCategory = &c
		}
		if to.Valid {
			c := domain.Category(to.String)
			a.ToCategory = &c
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review actions: %w", err)
	}
	return out, nil
}

// conflictState distinguishes a missing document from a lost race and
// reports the state the caller actually raced against.
func (r *DocumentRepository) conflictState(ctx context.Context, documentID string) error {
	var status string
	var assignee sql.NullString
	err := r.db.QueryRowContext(ctx, `
SELECT status, assigned_reviewer_id FROM documents WHERE id = $1
`, documentID).Scan(&status, &assignee)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.WrapError(domain.ErrNotFound, "fetch document", fmt.Errorf("id %s", documentID))
		}
		return fmt.Errorf("fetch conflict state: %w", err)
	}

	conflict := &domain.ConflictError{DocumentID: documentID, Status: domain.DocumentStatus(status)}
	if assignee.Valid {
		conflict.AssignedReviewerID = &assignee.String
	}
	return conflict
}

func insertAction(ctx context.Context, tx *sql.Tx, action domain.ReviewAction) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	_, err := tx.ExecContext(ctx, `
INSERT INTO review_actions (
	id, document_id, reviewer_id, action, from_category, to_category, comment, duration_seconds, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, action.ID, action.DocumentID, action.ReviewerID, string(action.Action),
		categoryPtr(action.FromCategory), categoryPtr(action.ToCategory),
		action.Comment, action.DurationSeconds, action.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert review action: %w", err)
	}
	return nil
}

// updatedColumns mirrors documentColumns for RETURNING clauses, where the
// text excerpt is not joined in.
const updatedColumns = `
d.id, d.original_name, d.stored_filename, d.applicant_name, d.applicant_lastname,
d.category_predicted, d.category_confidence, d.category_final, d.status,
d.assigned_reviewer_id, d.size_bytes, '', d.created_at, d.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var predicted, status string
	var final sql.NullString

	err := row.Scan(
		&doc.ID, &doc.OriginalName, &doc.StoredFilename, &doc.ApplicantName, &doc.ApplicantLastname,
		&predicted, &doc.CategoryConfidence, &final, &status,
		&doc.AssignedReviewerID, &doc.SizeBytes, &doc.TextExcerpt, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.CategoryPredicted = domain.Category(predicted)
	doc.Status = domain.DocumentStatus(status)
	if final.Valid {
		c := domain.Category(final.String)
		doc.CategoryFinal = &c
	}
	return &doc, nil
}

func scanUpdatedDocument(row rowScanner) (*domain.Document, error) {
	return scanDocument(row)
}

func categoryPtr(c *domain.Category) *string {
	if c == nil {
		return nil
	}
	s := string(*c)
	return &s
}
