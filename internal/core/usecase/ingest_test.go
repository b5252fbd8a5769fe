package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Meirbek-dev/ai-reception/internal/core/domain"
	"github.com/Meirbek-dev/ai-reception/internal/core/ports"
)

type ingestRepoFake struct {
	created []domain.Document
	err     error
}

func (f *ingestRepoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, *doc)
	return nil
}

func (f *ingestRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	return nil, errors.New("not implemented")
}
func (f *ingestRepoFake) ListByStatus(context.Context, domain.DocumentStatus, int, int) ([]domain.Document, error) {
	return nil, errors.New("not implemented")
}
func (f *ingestRepoFake) Claim(context.Context, string, string) (*domain.Document, error) {
	return nil, errors.New("not implemented")
}
func (f *ingestRepoFake) Release(context.Context, string, string) (*domain.Document, error) {
	return nil, errors.New("not implemented")
}
func (f *ingestRepoFake) Resolve(context.Context, domain.ResolveRequest, string) (*domain.Document, error) {
	return nil, errors.New("not implemented")
}
func (f *ingestRepoFake) AuditTrail(context.Context, string) ([]domain.ReviewAction, error) {
	return nil, errors.New("not implemented")
}

type ingestStorageFake struct {
	saved   map[string][]byte
	spool   map[string][]byte
	removed []string
	seq     int
}

func newIngestStorageFake() *ingestStorageFake {
	return &ingestStorageFake{saved: map[string][]byte{}, spool: map[string][]byte{}}
}

func (f *ingestStorageFake) SpoolTemp(_ context.Context, ext string, data io.Reader, maxBytes int64) (ports.TempFile, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return ports.TempFile{}, err
	}
	if int64(len(raw)) > maxBytes {
		return ports.TempFile{}, domain.WrapError(domain.ErrValidation, "spool upload",
			fmt.Errorf("file exceeds %d bytes", maxBytes))
	}
	f.seq++
	path := fmt.Sprintf("/spool/upload_%d%s", f.seq, ext)
	f.spool[path] = raw
	return ports.TempFile{Path: path, Size: int64(len(raw))}, nil
}

func (f *ingestStorageFake) ReadTemp(_ context.Context, path string) ([]byte, error) {
	data, ok := f.spool[path]
	if !ok {
		return nil, errors.New("no such spool file")
	}
	return data, nil
}

func (f *ingestStorageFake) RemoveTemp(_ context.Context, path string) {
	f.removed = append(f.removed, path)
	delete(f.spool, path)
}

func (f *ingestStorageFake) SaveAtomic(_ context.Context, name string, data []byte) error {
	f.saved[name] = data
	return nil
}

func (f *ingestStorageFake) Exists(_ context.Context, name string) (bool, error) {
	_, ok := f.saved[name]
	return ok, nil
}

func (f *ingestStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}
func (f *ingestStorageFake) List(context.Context) ([]ports.StoredFile, error) {
	return nil, errors.New("not implemented")
}
func (f *ingestStorageFake) SweepOlderThan(context.Context, time.Duration) (int, error) {
	return 0, errors.New("not implemented")
}

type ingestCacheFake struct {
	entries   map[string]ports.CacheEntry
	lookupErr error
	storeErr  error
}

func newIngestCacheFake() *ingestCacheFake {
	return &ingestCacheFake{entries: map[string]ports.CacheEntry{}}
}

func (f *ingestCacheFake) Lookup(_ context.Context, hash string) (*ports.CacheEntry, bool, error) {
	if f.lookupErr != nil {
		return nil, false, f.lookupErr
	}
	entry, ok := f.entries[hash]
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (f *ingestCacheFake) Store(_ context.Context, hash string, entry ports.CacheEntry) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.entries[hash] = entry
	return nil
}

func (f *ingestCacheFake) Sweep(context.Context) (int, error) { return 0, nil }

type extractorFake struct {
	text  string
	err   error
	calls int
}

func (f *extractorFake) Extract(context.Context, []byte, ports.FileKind) (string, error) {
	f.calls++
	return f.text, f.err
}

type classifierFake struct {
	cls domain.Classification
}

func (f *classifierFake) Classify(string) domain.Classification { return f.cls }

type limiterFake struct {
	allow bool
}

func (f *limiterFake) Admit(string) bool { return f.allow }
func (f *limiterFake) Sweep() int        { return 0 }

type publisherFake struct {
	events []ports.IngestEvent
	err    error
}

func (f *publisherFake) PublishDocumentIngested(_ context.Context, event ports.IngestEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type ingestFixture struct {
	repo       *ingestRepoFake
	storage    *ingestStorageFake
	cache      *ingestCacheFake
	extractor  *extractorFake
	classifier *classifierFake
	limiter    *limiterFake
	publisher  *publisherFake
	uc         *IngestUseCase
}

func newIngestFixture(cls domain.Classification, text string) *ingestFixture {
	fx := &ingestFixture{
		repo:       &ingestRepoFake{},
		storage:    newIngestStorageFake(),
		cache:      newIngestCacheFake(),
		extractor:  &extractorFake{text: text},
		classifier: &classifierFake{cls: cls},
		limiter:    &limiterFake{allow: true},
		publisher:  &publisherFake{},
	}
	fx.uc = NewIngestUseCase(
		fx.repo, fx.storage, fx.cache, fx.extractor, fx.classifier,
		fx.limiter, fx.publisher,
		IngestConfig{MaxFileBytes: 1 << 20, Scorer: DefaultScorerConfig()},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return fx
}

func uploadFile(name, contentType, body string) ports.UploadFile {
	return ports.UploadFile{Name: name, ContentType: contentType, Data: bytes.NewBufferString(body)}
}

func TestIngestBatchSavesClassifiedFile(t *testing.T) {
	longText := strings.Repeat("удостоверение личности ", 20)
	fx := newIngestFixture(domain.Classification{Category: domain.CategoryUdostoverenie}, longText)

	results, summary, err := fx.uc.IngestBatch(context.Background(), "client-1", "Aslan", "Serikov",
		[]ports.UploadFile{uploadFile("scan.pdf", "application/pdf", "%PDF-1.4 data")})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if summary.Saved != 1 || summary.Failed != 0 || summary.Unclassified != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	r := results[0]
	if r.Outcome != domain.OutcomeSaved {
		t.Fatalf("outcome = %q, error = %q", r.Outcome, r.Error)
	}
	if r.Status != domain.StatusUploaded {
		t.Fatalf("status = %q, want uploaded at confidence %v", r.Status, r.Confidence)
	}
	if _, ok := domain.ParseStoredName(r.StoredFilename); !ok {
		t.Fatalf("stored filename %q does not parse", r.StoredFilename)
	}
	if _, ok := fx.storage.saved[r.StoredFilename]; !ok {
		t.Fatalf("artifact not written under %q", r.StoredFilename)
	}
	if len(fx.repo.created) != 1 {
		t.Fatalf("repo.Create calls = %d", len(fx.repo.created))
	}
	if len(fx.publisher.events) != 1 || fx.publisher.events[0].DocumentID != r.ID {
		t.Fatalf("expected one ingest event for %s, got %+v", r.ID, fx.publisher.events)
	}
	if len(fx.storage.removed) != 1 {
		t.Fatalf("temp file not cleaned up: %v", fx.storage.removed)
	}
}

func TestIngestBatchLowConfidenceRoutesToQueue(t *testing.T) {
	// Short text halves the score, pushing it below the auto-accept line.
	fx := newIngestFixture(domain.Classification{Category: domain.CategoryENT}, "ент сертификат")

	results, _, err := fx.uc.IngestBatch(context.Background(), "client-1", "Aslan", "Serikov",
		[]ports.UploadFile{uploadFile("cert.jpg", "image/jpeg", "jpegdata")})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if results[0].Status != domain.StatusQueued {
		t.Fatalf("status = %q, want queued", results[0].Status)
	}
	if results[0].Outcome != domain.OutcomeSaved {
		t.Fatalf("queued files are still stored, got outcome %q", results[0].Outcome)
	}
	if fx.repo.created[0].Status != domain.StatusQueued {
		t.Fatalf("persisted status = %q", fx.repo.created[0].Status)
	}
}

func TestIngestBatchUnclassifiedSkipsStorage(t *testing.T) {
	fx := newIngestFixture(domain.Classification{Category: domain.CategoryUnclassified}, "мусорный текст без ключевых слов")

	results, summary, err := fx.uc.IngestBatch(context.Background(), "client-1", "Aslan", "Serikov",
		[]ports.UploadFile{uploadFile("scan.png", "image/png", "pngdata")})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if summary.Unclassified != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if results[0].StoredFilename != "" {
		t.Fatalf("unclassified file must not be stored, got %q", results[0].StoredFilename)
	}
	if len(fx.storage.saved) != 0 {
		t.Fatalf("unexpected artifacts: %v", fx.storage.saved)
	}
	if len(fx.repo.created) != 1 {
		t.Fatal("unclassified file still gets a document row")
	}
	if fx.repo.created[0].Status != domain.StatusQueued {
		t.Fatalf("persisted status = %q, want queued", fx.repo.created[0].Status)
	}
}

func TestIngestBatchThrottled(t *testing.T) {
	fx := newIngestFixture(domain.Classification{Category: domain.CategoryDiplom}, "text")
	fx.limiter.allow = false

	_, _, err := fx.uc.IngestBatch(context.Background(), "client-1", "Aslan", "Serikov",
		[]ports.UploadFile{uploadFile("scan.pdf", "application/pdf", "data")})
	if !domain.IsKind(err, domain.ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
	if fx.extractor.calls != 0 {
		t.Fatal("throttled batch must not reach extraction")
	}
}

func TestIngestBatchRequiresApplicantFields(t *testing.T) {
	fx := newIngestFixture(domain.Classification{Category: domain.CategoryDiplom}, "text")

	_, _, err := fx.uc.IngestBatch(context.Background(), "client-1", "  ", "Serikov",
		[]ports.UploadFile{uploadFile("scan.pdf", "application/pdf", "data")})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestIngestBatchFileFailuresAreIsolated(t *testing.T) {
	longText := strings.Repeat("диплом о среднем образовании ", 15)
	fx := newIngestFixture(domain.Classification{Category: domain.CategoryDiplom}, longText)

	results, summary, err := fx.uc.IngestBatch(context.Background(), "client-1", "Aslan", "Serikov",
		[]ports.UploadFile{
			uploadFile("malware.exe", "application/octet-stream", "MZ"),
			uploadFile("diploma.pdf", "application/pdf", "%PDF-1.4 data"),
		})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if summary.Failed != 1 || summary.Saved != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if results[0].Outcome != domain.OutcomeFailed || results[0].Error == "" {
		t.Fatalf("first file should fail validation: %+v", results[0])
	}
	if results[1].Outcome != domain.OutcomeSaved {
		t.Fatalf("second file should survive its sibling: %+v", results[1])
	}
}

func TestIngestBatchRejectsMismatchedContentType(t *testing.T) {
	fx := newIngestFixture(domain.Classification{Category: domain.CategoryDiplom}, "text")

	results, summary, err := fx.uc.IngestBatch(context.Background(), "client-1", "Aslan", "Serikov",
		[]ports.UploadFile{uploadFile("scan.pdf", "image/png", "data")})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if !strings.Contains(results[0].Error, "content type") {
		t.Fatalf("error = %q", results[0].Error)
	}
}

func TestIngestBatchCacheHitSkipsExtraction(t *testing.T) {
	longText := strings.Repeat("справка о прививках ", 20)
	fx := newIngestFixture(domain.Classification{Category: domain.CategoryPrivivka}, longText)

	upload := func() ([]domain.ProcessedFile, domain.BatchSummary, error) {
		return fx.uc.IngestBatch(context.Background(), "client-1", "Aslan", "Serikov",
			[]ports.UploadFile{uploadFile("spravka.jpg", "image/jpeg", "same-bytes")})
	}

	if _, _, err := upload(); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if fx.extractor.calls != 1 {
		t.Fatalf("extractor calls after miss = %d", fx.extractor.calls)
	}

	results, _, err := upload()
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if fx.extractor.calls != 1 {
		t.Fatalf("cache hit must skip extraction, calls = %d", fx.extractor.calls)
	}
	if results[0].Category != domain.CategoryPrivivka {
		t.Fatalf("cached category = %q", results[0].Category)
	}
	if results[0].CacheHit == nil || !*results[0].CacheHit {
		t.Fatalf("second upload must surface a cache hit, got %v", results[0].CacheHit)
	}
}

func TestIngestBatchSurfacesCacheMiss(t *testing.T) {
	longText := strings.Repeat("справка о прививках ", 20)
	fx := newIngestFixture(domain.Classification{Category: domain.CategoryPrivivka}, longText)

	results, _, err := fx.uc.IngestBatch(context.Background(), "client-1", "Aslan", "Serikov",
		[]ports.UploadFile{uploadFile("spravka.jpg", "image/jpeg", "fresh-bytes")})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if results[0].CacheHit == nil || *results[0].CacheHit {
		t.Fatalf("first upload must surface a cache miss, got %v", results[0].CacheHit)
	}

	// A file rejected before the lookup reports nothing.
	results, _, err = fx.uc.IngestBatch(context.Background(), "client-1", "Aslan", "Serikov",
		[]ports.UploadFile{uploadFile("malware.exe", "application/octet-stream", "MZ")})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if results[0].CacheHit != nil {
		t.Fatalf("rejected file must not report a cache lookup, got %v", *results[0].CacheHit)
	}
}

func TestIngestBatchLengthBandIgnoresSurroundingWhitespace(t *testing.T) {
	// 36 meaningful runes padded past the 50-rune band with whitespace; the
	// padding must not promote the text into the next band.
	padded := strings.Repeat(" ", 30) + "удостоверение личности гражданина РК" + strings.Repeat("\n", 30)
	fx := newIngestFixture(domain.Classification{Category: domain.CategoryUdostoverenie}, padded)

	results, _, err := fx.uc.IngestBatch(context.Background(), "client-1", "Aslan", "Serikov",
		[]ports.UploadFile{uploadFile("scan.pdf", "application/pdf", "data")})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if results[0].Confidence != 0.475 {
		t.Fatalf("confidence = %v, want short-text penalty 0.475", results[0].Confidence)
	}
	if results[0].Status != domain.StatusQueued {
		t.Fatalf("status = %q, want queued", results[0].Status)
	}
}

func TestIngestBatchCacheErrorsDegradeToRecompute(t *testing.T) {
	longText := strings.Repeat("медицинская справка 075 ", 20)
	fx := newIngestFixture(domain.Classification{Category: domain.CategoryMedSpravka}, longText)
	fx.cache.lookupErr = errors.New("disk gone")
	fx.cache.storeErr = errors.New("disk gone")

	results, summary, err := fx.uc.IngestBatch(context.Background(), "client-1", "Aslan", "Serikov",
		[]ports.UploadFile{uploadFile("spravka.pdf", "application/pdf", "data")})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if summary.Saved != 1 {
		t.Fatalf("cache failure must not fail the file: %+v", results[0])
	}
	if fx.extractor.calls != 1 {
		t.Fatalf("extractor calls = %d", fx.extractor.calls)
	}
}

func TestIngestBatchPublishFailureDoesNotFailFile(t *testing.T) {
	longText := strings.Repeat("удостоверение личности ", 20)
	fx := newIngestFixture(domain.Classification{Category: domain.CategoryUdostoverenie}, longText)
	fx.publisher.err = errors.New("broker down")

	_, summary, err := fx.uc.IngestBatch(context.Background(), "client-1", "Aslan", "Serikov",
		[]ports.UploadFile{uploadFile("scan.pdf", "application/pdf", "data")})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}
	if summary.Saved != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}
