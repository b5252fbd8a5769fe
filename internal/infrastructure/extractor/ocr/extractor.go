// Package ocr extracts text from uploaded files on a bounded worker pool.
// Extraction failures and timeouts degrade to empty text: the pipeline
// treats them as a low-confidence classification, never a request failure.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/semaphore"

	"github.com/Meirbek-dev/ai-reception/internal/core/ports"
	"github.com/Meirbek-dev/ai-reception/internal/infrastructure/resilience"
)

type Config struct {
	Timeout       time.Duration
	MaxPages      int
	PageParallel  int
	MaxTextLength int
}

type Extractor struct {
	pool   *Pool
	exec   *resilience.Executor
	cfg    Config
	logger *slog.Logger
}

func NewExtractor(pool *Pool, exec *resilience.Executor, cfg Config, logger *slog.Logger) *Extractor {
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 1
	}
	if cfg.PageParallel < 1 {
		cfg.PageParallel = 1
	}
	return &Extractor{pool: pool, exec: exec, cfg: cfg, logger: logger}
}

// Extract runs OCR (images) or page-text extraction (PDF) under the hard
// timeout. It returns empty text on timeout or worker failure.
func (e *Extractor) Extract(ctx context.Context, data []byte, kind ports.FileKind) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var text string
	var err error
	switch kind {
	case ports.KindPDF:
		text, err = e.extractPDF(ctx, data)
	default:
		text, err = e.extractImage(ctx, data)
	}
	if err != nil {
		e.logger.Warn("extraction_degraded_to_empty", "kind", string(kind), "error", err)
		return "", nil
	}
	return truncateRunes(text, e.cfg.MaxTextLength), nil
}

func (e *Extractor) extractImage(ctx context.Context, data []byte) (string, error) {
	var text string
	err := e.exec.Execute(ctx, "ocr.recognize", func(ctx context.Context) error {
		out, err := e.pool.Run(ctx, func(engine Engine) (string, error) {
			return engine.Recognize(data)
		})
		if err != nil {
			return err
		}
		text = out
		return nil
	}, classifyExtractionError)
	return text, err
}

// extractPDF fans one task per page across the pool, bounded by the page
// parallelism cap, and joins the texts in page order. Every submitted page
// is awaited; a failed page contributes empty text rather than aborting
// its siblings.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	pageCount, err := pdfPageCount(data)
	if err != nil {
		return "", err
	}
	if pageCount > e.cfg.MaxPages {
		pageCount = e.cfg.MaxPages
	}

	sem := semaphore.NewWeighted(int64(e.cfg.PageParallel))
	texts := make([]string, pageCount)

	var wg sync.WaitGroup
	for i := 0; i < pageCount; i++ {
		pageNum := i + 1
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			text, err := e.pool.Run(ctx, func(Engine) (string, error) {
				return pdfPageText(data, pageNum)
			})
			if err != nil {
				e.logger.Warn("pdf_page_extraction_failed", "page", pageNum, "error", err)
				return
			}
			texts[idx] = text
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil && joined(texts) == "" {
		return "", err
	}
	return joined(texts), nil
}

func pdfPageCount(data []byte) (int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	n := reader.NumPage()
	if n < 1 {
		return 0, errors.New("pdf has no pages")
	}
	return n, nil
}

// pdfPageText opens its own reader: readers are not shared across workers,
// only the immutable byte slice is.
func pdfPageText(data []byte, pageNum int) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return "", fmt.Errorf("pdf page %d missing", pageNum)
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("pdf page %d text: %w", pageNum, err)
	}
	return text, nil
}

func joined(texts []string) string {
	out := ""
	for _, t := range texts {
		if t == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += t
	}
	return out
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func classifyExtractionError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		// A timeout says nothing about engine health; keep the breaker shut.
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
