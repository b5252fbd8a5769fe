package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Meirbek-dev/ai-reception/internal/core/domain"
	"github.com/Meirbek-dev/ai-reception/internal/core/ports"
)

type IngestConfig struct {
	MaxFileBytes        int64
	StoredNameMaxProbes int
	ExcerptLimit        int
	Scorer              ScorerConfig
}

// IngestUseCase runs the upload pipeline: admit, validate, spool, look up
// the content cache, extract and classify on a miss, score, route, store
// the artifact and persist the document. Files in a batch are independent.
type IngestUseCase struct {
	repo       ports.DocumentRepository
	storage    ports.ObjectStorage
	cache      ports.ContentCache
	extractor  ports.TextExtractor
	classifier ports.TextClassifier
	limiter    ports.AdmissionLimiter
	publisher  ports.EventPublisher
	cfg        IngestConfig
	logger     *slog.Logger
	now        func() time.Time
}

func NewIngestUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	cache ports.ContentCache,
	extractor ports.TextExtractor,
	classifier ports.TextClassifier,
	limiter ports.AdmissionLimiter,
	publisher ports.EventPublisher,
	cfg IngestConfig,
	logger *slog.Logger,
) *IngestUseCase {
	if cfg.StoredNameMaxProbes <= 0 {
		cfg.StoredNameMaxProbes = 1000
	}
	if cfg.ExcerptLimit <= 0 {
		cfg.ExcerptLimit = 1000
	}
	return &IngestUseCase{
		repo:       repo,
		storage:    storage,
		cache:      cache,
		extractor:  extractor,
		classifier: classifier,
		limiter:    limiter,
		publisher:  publisher,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

func (uc *IngestUseCase) IngestBatch(
	ctx context.Context,
	clientID, name, lastname string,
	files []ports.UploadFile,
) ([]domain.ProcessedFile, domain.BatchSummary, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(lastname) == "" {
		return nil, domain.BatchSummary{}, domain.WrapError(domain.ErrValidation, "ingest batch",
			errors.New("applicant name and lastname are required"))
	}
	if len(files) == 0 {
		return nil, domain.BatchSummary{}, domain.WrapError(domain.ErrValidation, "ingest batch",
			errors.New("no files in upload"))
	}
	if !uc.limiter.Admit(clientID) {
		return nil, domain.BatchSummary{}, domain.WrapError(domain.ErrThrottled, "ingest batch",
			fmt.Errorf("client %s over upload rate", clientID))
	}

	results := make([]domain.ProcessedFile, 0, len(files))
	for i, file := range files {
		results = append(results, uc.processFile(ctx, name, lastname, i+1, file))
	}
	return results, domain.Summarize(results), nil
}

// processFile never returns an error; every failure mode is encoded in the
// ProcessedFile so the rest of the batch keeps going.
func (uc *IngestUseCase) processFile(
	ctx context.Context,
	name, lastname string,
	index int,
	file ports.UploadFile,
) domain.ProcessedFile {
	result := domain.ProcessedFile{OriginalName: file.Name, Outcome: domain.OutcomeFailed}
	fail := func(err error) domain.ProcessedFile {
		uc.logger.Warn("file failed ingestion", "file", file.Name, "error", err)
		result.Outcome = domain.OutcomeFailed
		result.Error = err.Error()
		return result
	}

	kind, ext, err := fileKind(file.Name, file.ContentType)
	if err != nil {
		return fail(err)
	}

	tmp, err := uc.storage.SpoolTemp(ctx, ext, file.Data, uc.cfg.MaxFileBytes)
	if err != nil {
		return fail(err)
	}
	defer uc.storage.RemoveTemp(ctx, tmp.Path)
	result.SizeBytes = tmp.Size

	data, err := uc.storage.ReadTemp(ctx, tmp.Path)
	if err != nil {
		return fail(err)
	}

	text, cls, cacheHit, err := uc.analyze(ctx, contentHash(data), data, kind)
	result.CacheHit = &cacheHit
	if err != nil {
		return fail(err)
	}

	// Length bands count meaningful text; OCR output often arrives padded
	// with whitespace.
	confidence := uc.cfg.Scorer.Score(cls, len([]rune(strings.TrimSpace(text))))
	status := uc.cfg.Scorer.RouteStatus(confidence)
	docID := uuid.NewString()

	now := uc.now().UTC()
	doc := &domain.Document{
		ID:                 docID,
		OriginalName:       file.Name,
		ApplicantName:      name,
		ApplicantLastname:  lastname,
		CategoryPredicted:  cls.Category,
		CategoryConfidence: confidence,
		Status:             status,
		SizeBytes:          tmp.Size,
		TextExcerpt:        truncateRunes(text, uc.cfg.ExcerptLimit),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if cls.Category != domain.CategoryUnclassified {
		storedName, err := uc.storeArtifact(ctx, name, lastname, cls.Category, index, docID, ext, data)
		if err != nil {
			return fail(err)
		}
		doc.StoredFilename = &storedName
		result.StoredFilename = storedName
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return fail(fmt.Errorf("persist document: %w", err))
	}

	result.ID = docID
	result.Category = cls.Category
	result.Confidence = confidence
	result.Status = status
	if cls.Category == domain.CategoryUnclassified {
		result.Outcome = domain.OutcomeUnclassified
	} else {
		result.Outcome = domain.OutcomeSaved
	}
	result.Error = ""

	uc.publishEvent(ctx, doc, result.Outcome)
	return result
}

// analyze resolves text and classification for the content, consulting the
// cache first. Cache failures degrade to recompute, never fail the file.
// The returned bool reports whether the cache served the result.
func (uc *IngestUseCase) analyze(
	ctx context.Context,
	hash string,
	data []byte,
	kind ports.FileKind,
) (string, domain.Classification, bool, error) {
	entry, hit, err := uc.cache.Lookup(ctx, hash)
	if err != nil {
		uc.logger.Warn("cache lookup failed, recomputing", "hash", hash, "error", err)
	} else if hit {
		return entry.Text, domain.Classification{
			Category:   entry.Category,
			FuzzyScore: entry.FuzzyScore,
		}, true, nil
	}

	text, err := uc.extractor.Extract(ctx, data, kind)
	if err != nil {
		return "", domain.Classification{}, false, fmt.Errorf("extract text: %w", err)
	}
	cls := uc.classifier.Classify(text)

	storeErr := uc.cache.Store(ctx, hash, ports.CacheEntry{
		Text:       text,
		Category:   cls.Category,
		FuzzyScore: cls.FuzzyScore,
		StoredAt:   uc.now().UTC(),
	})
	if storeErr != nil {
		uc.logger.Warn("cache store failed", "hash", hash, "error", storeErr)
	}
	return text, cls, false, nil
}

// storeArtifact publishes the file bytes under the stored-filename
// convention, probing the index until a free name is found.
func (uc *IngestUseCase) storeArtifact(
	ctx context.Context,
	name, lastname string,
	category domain.Category,
	index int,
	docID, ext string,
	data []byte,
) (string, error) {
	for probe := index; probe < index+uc.cfg.StoredNameMaxProbes; probe++ {
		candidate := domain.BuildStoredName(name, lastname, category, probe, docID, ext)
		exists, err := uc.storage.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("probe stored name: %w", err)
		}
		if exists {
			continue
		}
		if err := uc.storage.SaveAtomic(ctx, candidate, data); err != nil {
			return "", fmt.Errorf("store artifact: %w", err)
		}
		return candidate, nil
	}
	return "", domain.WrapError(domain.ErrTemporary, "store artifact",
		fmt.Errorf("no free stored name after %d probes", uc.cfg.StoredNameMaxProbes))
}

func (uc *IngestUseCase) publishEvent(ctx context.Context, doc *domain.Document, outcome domain.FileOutcome) {
	if uc.publisher == nil {
		return
	}
	err := uc.publisher.PublishDocumentIngested(ctx, ports.IngestEvent{
		DocumentID: doc.ID,
		Category:   doc.CategoryPredicted,
		Status:     doc.Status,
		Confidence: doc.CategoryConfidence,
		Outcome:    outcome,
		CreatedAt:  doc.CreatedAt,
	})
	if err != nil {
		uc.logger.Warn("ingest event publish failed", "document_id", doc.ID, "error", err)
	}
}

var allowedTypes = map[string]struct {
	kind ports.FileKind
	mime string
}{
	".pdf":  {ports.KindPDF, "application/pdf"},
	".jpg":  {ports.KindImage, "image/jpeg"},
	".jpeg": {ports.KindImage, "image/jpeg"},
	".png":  {ports.KindImage, "image/png"},
}

// fileKind applies the extension allow-list and checks the declared MIME
// type against it. A missing content type is accepted; a contradicting one
// is not.
func fileKind(filename, contentType string) (ports.FileKind, string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed, ok := allowedTypes[ext]
	if !ok {
		return "", "", domain.WrapError(domain.ErrValidation, "check file type",
			fmt.Errorf("extension %q is not allowed", ext))
	}
	if contentType != "" {
		declared := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
		if declared != allowed.mime && declared != "application/octet-stream" {
			return "", "", domain.WrapError(domain.ErrValidation, "check file type",
				fmt.Errorf("content type %q does not match extension %q", contentType, ext))
		}
	}
	return allowed.kind, ext, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
