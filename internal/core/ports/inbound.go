package ports

import (
	"context"

	"github.com/Meirbek-dev/ai-reception/internal/core/domain"
)

// DocumentIngestor runs the upload pipeline for a batch of files.
type DocumentIngestor interface {
	IngestBatch(ctx context.Context, clientID, name, lastname string, files []UploadFile) ([]domain.ProcessedFile, domain.BatchSummary, error)
}

// ReviewService drives the claim/release/resolve workflow.
type ReviewService interface {
	Queue(ctx context.Context, status domain.DocumentStatus, limit, offset int) ([]domain.Document, error)
	Claim(ctx context.Context, documentID string, reviewer domain.Reviewer) (*domain.Document, error)
	Release(ctx context.Context, documentID string, reviewer domain.Reviewer) (*domain.Document, error)
	Resolve(ctx context.Context, req domain.ResolveRequest, reviewer domain.Reviewer) (*domain.Document, error)
	AuditTrail(ctx context.Context, documentID string) ([]domain.ReviewAction, error)
	GetDocument(ctx context.Context, documentID string) (*domain.Document, error)
}
