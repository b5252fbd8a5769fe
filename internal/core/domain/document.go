package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded DocumentStatus = "uploaded"
	StatusQueued   DocumentStatus = "queued"
	StatusInReview DocumentStatus = "in_review"
	StatusResolved DocumentStatus = "resolved"
)

func ParseDocumentStatus(s string) (DocumentStatus, bool) {
	switch DocumentStatus(s) {
	case StatusUploaded, StatusQueued, StatusInReview, StatusResolved:
		return DocumentStatus(s), true
	}
	return "", false
}

// Document is one ingested artifact. AssignedReviewerID is non-nil iff the
// status is in_review; CategoryFinal is non-nil iff the status is resolved.
type Document struct {
	ID                 string         `json:"id"`
	OriginalName       string         `json:"original_name"`
	StoredFilename     *string        `json:"stored_filename,omitempty"`
	ApplicantName      string         `json:"applicant_name"`
	ApplicantLastname  string         `json:"applicant_lastname"`
	CategoryPredicted  Category       `json:"category_predicted"`
	CategoryConfidence float64        `json:"category_confidence"`
	CategoryFinal      *Category      `json:"category_final,omitempty"`
	Status             DocumentStatus `json:"status"`
	AssignedReviewerID *string        `json:"assigned_reviewer_id,omitempty"`
	SizeBytes          int64          `json:"size_bytes"`
	TextExcerpt        string         `json:"text_excerpt,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Classification is the classifier's verdict for one extracted text.
// FuzzyScore is nil for an exact keyword hit and carries the 0-100
// token-set ratio otherwise.
type Classification struct {
	Category   Category `json:"category"`
	FuzzyScore *float64 `json:"fuzzy_score,omitempty"`
}

// FileOutcome is the per-file result of a batch upload. Each file succeeds
// or fails on its own; one bad file never fails its siblings.
type FileOutcome string

const (
	OutcomeSaved        FileOutcome = "saved"
	OutcomeUnclassified FileOutcome = "unclassified"
	OutcomeFailed       FileOutcome = "failed"
)

type ProcessedFile struct {
	ID             string         `json:"id"`
	OriginalName   string         `json:"original_name"`
	Category       Category       `json:"category"`
	Confidence     float64        `json:"confidence"`
	StoredFilename string         `json:"stored_filename,omitempty"`
	SizeBytes      int64          `json:"size_bytes"`
	Status         DocumentStatus `json:"status,omitempty"`
	Outcome        FileOutcome    `json:"outcome"`
	Error          string         `json:"error,omitempty"`

	// CacheHit is set once the content cache was consulted for this file;
	// nil means the file failed before the lookup. Not part of the response.
	CacheHit *bool `json:"-"`
}

type BatchSummary struct {
	Saved        int `json:"saved"`
	Unclassified int `json:"unclassified"`
	Failed       int `json:"failed"`
}

func Summarize(files []ProcessedFile) BatchSummary {
	var s BatchSummary
	for _, f := range files {
		switch f.Outcome {
		case OutcomeSaved:
			s.Saved++
		case OutcomeUnclassified:
			s.Unclassified++
		default:
			s.Failed++
		}
	}
	return s
}
