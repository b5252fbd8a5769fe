package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Meirbek-dev/ai-reception/internal/core/domain"
	"github.com/Meirbek-dev/ai-reception/internal/core/ports"
)

const (
	defaultQueueLimit = 20
	maxQueueLimit     = 100
)

// ReviewUseCase drives the human review workflow on top of the repository,
// which owns the atomic transitions. This layer adds identity checks,
// input validation and transition logging.
type ReviewUseCase struct {
	repo   ports.DocumentRepository
	logger *slog.Logger
}

func NewReviewUseCase(repo ports.DocumentRepository, logger *slog.Logger) *ReviewUseCase {
	return &ReviewUseCase{repo: repo, logger: logger}
}

func (uc *ReviewUseCase) Queue(ctx context.Context, status domain.DocumentStatus, limit, offset int) ([]domain.Document, error) {
	if status == "" {
		status = domain.StatusQueued
	}
	if _, ok := domain.ParseDocumentStatus(string(status)); !ok {
		return nil, domain.WrapError(domain.ErrValidation, "list queue",
			fmt.Errorf("unknown status %q", status))
	}
	if limit <= 0 {
		limit = defaultQueueLimit
	}
	if limit > maxQueueLimit {
		limit = maxQueueLimit
	}
	if offset < 0 {
		offset = 0
	}
	return uc.repo.ListByStatus(ctx, status, limit, offset)
}

func (uc *ReviewUseCase) Claim(ctx context.Context, documentID string, reviewer domain.Reviewer) (*domain.Document, error) {
	if err := checkReviewer(reviewer); err != nil {
		return nil, err
	}
	if documentID == "" {
		return nil, domain.WrapError(domain.ErrValidation, "claim document",
			errors.New("document id is required"))
	}

	doc, err := uc.repo.Claim(ctx, documentID, reviewer.ID)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("document claimed",
		"document_id", doc.ID, "reviewer_id", reviewer.ID)
	return doc, nil
}

func (uc *ReviewUseCase) Release(ctx context.Context, documentID string, reviewer domain.Reviewer) (*domain.Document, error) {
	if err := checkReviewer(reviewer); err != nil {
		return nil, err
	}
	if documentID == "" {
		return nil, domain.WrapError(domain.ErrValidation, "release document",
			errors.New("document id is required"))
	}

	doc, err := uc.repo.Release(ctx, documentID, reviewer.ID)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("document released",
		"document_id", doc.ID, "reviewer_id", reviewer.ID)
	return doc, nil
}

func (uc *ReviewUseCase) Resolve(ctx context.Context, req domain.ResolveRequest, reviewer domain.Reviewer) (*domain.Document, error) {
	if err := checkReviewer(reviewer); err != nil {
		return nil, err
	}
	if req.DocumentID == "" {
		return nil, domain.WrapError(domain.ErrValidation, "resolve document",
			errors.New("document id is required"))
	}
	if _, ok := domain.ParseCategory(string(req.FinalCategory)); !ok || req.FinalCategory == domain.CategoryUnclassified {
		return nil, domain.WrapError(domain.ErrValidation, "resolve document",
			fmt.Errorf("final category %q is not resolvable", req.FinalCategory))
	}

	doc, err := uc.repo.Resolve(ctx, req, reviewer.ID)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("document resolved",
		"document_id", doc.ID,
		"reviewer_id", reviewer.ID,
		"action", domain.ResolveActionType(doc.CategoryPredicted, req.FinalCategory),
		"final_category", req.FinalCategory)
	return doc, nil
}

func (uc *ReviewUseCase) AuditTrail(ctx context.Context, documentID string) ([]domain.ReviewAction, error) {
	if documentID == "" {
		return nil, domain.WrapError(domain.ErrValidation, "audit trail",
			errors.New("document id is required"))
	}
	return uc.repo.AuditTrail(ctx, documentID)
}

func (uc *ReviewUseCase) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	if documentID == "" {
		return nil, domain.WrapError(domain.ErrValidation, "get document",
			errors.New("document id is required"))
	}
	return uc.repo.GetByID(ctx, documentID)
}

func checkReviewer(reviewer domain.Reviewer) error {
	if reviewer.ID == "" {
		return domain.WrapError(domain.ErrUnauthorized, "check reviewer",
			errors.New("reviewer id is required"))
	}
	if !reviewer.Role.CanReview() {
		return domain.WrapError(domain.ErrUnauthorized, "check reviewer",
			fmt.Errorf("role %q cannot review", reviewer.Role))
	}
	return nil
}
