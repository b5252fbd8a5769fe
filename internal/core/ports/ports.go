package ports

import (
	"io"
	"time"

	"github.com/Meirbek-dev/ai-reception/internal/core/domain"
)

// FileKind selects the extraction strategy for a file.
type FileKind string

const (
	KindPDF   FileKind = "pdf"
	KindImage FileKind = "image"
)

// UploadFile is one file of a batch upload as received from the transport.
type UploadFile struct {
	Name        string
	ContentType string
	Data        io.Reader
}

// CacheEntry is one content-addressed extraction result. StoredAt drives
// TTL expiry; entries are never refreshed on access.
type CacheEntry struct {
	Text       string          `json:"text"`
	Category   domain.Category `json:"category"`
	FuzzyScore *float64        `json:"fuzzy_score,omitempty"`
	StoredAt   time.Time       `json:"stored_at"`
}

// TempFile is a spooled upload awaiting processing.
type TempFile struct {
	Path string
	Size int64
}

// StoredFile describes one artifact in the upload folder whose name parses
// under the stored-filename convention.
type StoredFile struct {
	ID           string
	OriginalName string
	Category     domain.Category
	Filename     string
	SizeBytes    int64
	Modified     time.Time
}

// IngestEvent is published after a file finishes the pipeline, whatever
// its outcome.
type IngestEvent struct {
	DocumentID string                `json:"document_id"`
	Category   domain.Category       `json:"category"`
	Status     domain.DocumentStatus `json:"status,omitempty"`
	Confidence float64               `json:"confidence"`
	Outcome    domain.FileOutcome    `json:"outcome"`
	CreatedAt  time.Time             `json:"created_at"`
}
