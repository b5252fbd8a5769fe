package ports

import (
	"context"
	"io"
	"time"

	"github.com/Meirbek-dev/ai-reception/internal/core/domain"
)

// DocumentRepository persists documents, review transitions and the audit
// trail. Claim, Release and Resolve apply the status/assignee guard and the
// ReviewAction insert as one transaction; a failed guard yields a
// *domain.ConflictError carrying the current state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByStatus(ctx context.Context, status domain.DocumentStatus, limit, offset int) ([]domain.Document, error)
	Claim(ctx context.Context, documentID, reviewerID string) (*domain.Document, error)
	Release(ctx context.Context, documentID, reviewerID string) (*domain.Document, error)
	Resolve(ctx context.Context, req domain.ResolveRequest, reviewerID string) (*domain.Document, error)
	AuditTrail(ctx context.Context, documentID string) ([]domain.ReviewAction, error)
}

// ContentCache stores extraction results keyed by content hash. Lookup
// reports a miss for absent or expired entries; I/O failures surface as
// errors that callers treat as misses.
type ContentCache interface {
	Lookup(ctx context.Context, hash string) (*CacheEntry, bool, error)
	Store(ctx context.Context, hash string, entry CacheEntry) error
	Sweep(ctx context.Context) (int, error)
}

// ObjectStorage owns the upload folder and the temp spool area.
type ObjectStorage interface {
	SpoolTemp(ctx context.Context, ext string, data io.Reader, maxBytes int64) (TempFile, error)
	ReadTemp(ctx context.Context, path string) ([]byte, error)
	RemoveTemp(ctx context.Context, path string)
	SaveAtomic(ctx context.Context, name string, data []byte) error
	Exists(ctx context.Context, name string) (bool, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context) ([]StoredFile, error)
	SweepOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// TextExtractor turns raw file bytes into text. Timeouts and worker
// failures come back as empty text, not errors.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, kind FileKind) (string, error)
}

// TextClassifier maps extracted text onto the category taxonomy.
// Deterministic for identical input.
type TextClassifier interface {
	Classify(text string) domain.Classification
}

// AdmissionLimiter gates new work per client identifier.
type AdmissionLimiter interface {
	Admit(identifier string) bool
	Sweep() int
}

// EventPublisher emits ingest events for downstream observers. Publishing
// is best effort; the pipeline never fails a file on a publish error.
type EventPublisher interface {
	PublishDocumentIngested(ctx context.Context, event IngestEvent) error
}
