package httpadapter

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Meirbek-dev/ai-reception/internal/core/domain"
	"github.com/Meirbek-dev/ai-reception/internal/core/ports"
	"github.com/Meirbek-dev/ai-reception/internal/observability/metrics"
)

type Config struct {
	Service        string
	MaxRequestSize int64
	MaxFiles       int
	RateLimitRPS   int
	RateLimitBurst int
	OCRWorkers     int
	UploadPath     string
}

type Router struct {
	ingestor ports.DocumentIngestor
	review   ports.ReviewService
	storage  ports.ObjectStorage
	metrics  *metrics.HTTPServerMetrics
	cfg      Config
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	review ports.ReviewService,
	storage ports.ObjectStorage,
	m *metrics.HTTPServerMetrics,
	cfg Config,
) *Router {
	if cfg.Service == "" {
		cfg.Service = "api"
	}
	return &Router{
		ingestor: ingestor,
		review:   review,
		storage:  storage,
		metrics:  m,
		cfg:      cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", rt.health)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/documents", rt.documents)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	mux.HandleFunc("/v1/review/queue", rt.reviewQueue)
	mux.HandleFunc("/v1/review/documents/", rt.reviewDocument)

	handler := rt.metrics.Middleware(rt.cfg.Service, mux)
	handler = trafficControlMiddleware(rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst, func() {
		rt.metrics.RecordThrottled(rt.cfg.Service, "traffic")
	}, handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	info, err := os.Stat(rt.cfg.UploadPath)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"ocr_workers":   rt.cfg.OCRWorkers,
		"upload_folder": err == nil && info.IsDir(),
	})
}

func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadDocuments(w, r)
	case http.MethodGet:
		rt.listStoredDocuments(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > rt.cfg.MaxRequestSize {
		writeJSON(w, http.StatusRequestEntityTooLarge,
			map[string]string{"error": "request body exceeds the configured limit"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxRequestSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	name := r.FormValue("name")
	lastname := r.FormValue("lastname")
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'files' is required"})
		return
	}
	if rt.cfg.MaxFiles > 0 && len(headers) > rt.cfg.MaxFiles {
		writeJSON(w, http.StatusBadRequest,
			map[string]string{"error": "too many files in one upload"})
		return
	}

	files := make([]ports.UploadFile, 0, len(headers))
	var opened []interface{ Close() error }
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable multipart file"})
			return
		}
		opened = append(opened, f)
		files = append(files, ports.UploadFile{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        f,
		})
	}

	start := time.Now()
	results, summary, err := rt.ingestor.IngestBatch(r.Context(), clientID(r), name, lastname, files)
	if err != nil {
		if domain.IsKind(err, domain.ErrThrottled) {
			rt.metrics.RecordThrottled(rt.cfg.Service, "upload")
		}
		writeError(w, err)
		return
	}

	rt.metrics.RecordIngestBatch(rt.cfg.Service, time.Since(start))
	for _, file := range results {
		rt.metrics.RecordIngestFile(rt.cfg.Service, string(file.Outcome))
		if file.CacheHit != nil {
			rt.metrics.RecordCacheLookup(rt.cfg.Service, *file.CacheHit)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"files":   results,
		"summary": summary,
	})
}

func (rt *Router) listStoredDocuments(w http.ResponseWriter, r *http.Request) {
	stored, err := rt.storage.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	category := q.Get("category")
	name := domain.SanitizeName(q.Get("name"))
	lastname := domain.SanitizeName(q.Get("lastname"))

	out := make([]ports.StoredFile, 0, len(stored))
	for _, file := range stored {
		if category != "" && string(file.Category) != category {
			continue
		}
		if q.Get("name") != "" && !strings.HasPrefix(file.OriginalName, name+"_") {
			continue
		}
		if q.Get("lastname") != "" && !strings.Contains(file.OriginalName, "_"+lastname) {
			continue
		}
		out = append(out, file)
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": out, "total": len(out)})
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.review.GetDocument(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) reviewQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if _, err := reviewerFromRequest(r); err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	docs, err := rt.review.Queue(r.Context(), domain.DocumentStatus(q.Get("status")), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

// reviewDocument dispatches /v1/review/documents/{id}/{verb}.
func (rt *Router) reviewDocument(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/review/documents/")
	id, verb, ok := strings.Cut(rest, "/")
	if !ok || id == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	reviewer, err := reviewerFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	switch {
	case verb == "actions" && r.Method == http.MethodGet:
		rt.auditTrail(w, r, id)
	case verb == "claim" && r.Method == http.MethodPost:
		rt.transition(w, r, "claim", func() (*domain.Document, error) {
			return rt.review.Claim(r.Context(), id, reviewer)
		})
	case verb == "release" && r.Method == http.MethodPost:
		rt.transition(w, r, "release", func() (*domain.Document, error) {
			return rt.review.Release(r.Context(), id, reviewer)
		})
	case verb == "resolve" && r.Method == http.MethodPost:
		rt.resolve(w, r, id, reviewer)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (rt *Router) transition(w http.ResponseWriter, _ *http.Request, operation string, apply func() (*domain.Document, error)) {
	doc, err := apply()
	if err != nil {
		if domain.IsKind(err, domain.ErrConflict) {
			rt.metrics.RecordReviewConflict(rt.cfg.Service, operation)
		}
		writeError(w, err)
		return
	}
	rt.metrics.RecordReviewTransition(rt.cfg.Service, operation)
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) resolve(w http.ResponseWriter, r *http.Request, id string, reviewer domain.Reviewer) {
	var req struct {
		FinalCategory     string  `json:"final_category"`
		ApplicantName     *string `json:"applicant_name"`
		ApplicantLastname *string `json:"applicant_lastname"`
		Comment           *string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	doc, err := rt.review.Resolve(r.Context(), domain.ResolveRequest{
		DocumentID:        id,
		FinalCategory:     domain.Category(req.FinalCategory),
		ApplicantName:     req.ApplicantName,
		ApplicantLastname: req.ApplicantLastname,
		Comment:           req.Comment,
	}, reviewer)
	if err != nil {
		if domain.IsKind(err, domain.ErrConflict) {
			rt.metrics.RecordReviewConflict(rt.cfg.Service, "resolve")
		}
		writeError(w, err)
		return
	}
	action := domain.ResolveActionType(doc.CategoryPredicted, domain.Category(req.FinalCategory))
	rt.metrics.RecordReviewTransition(rt.cfg.Service, string(action))
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) auditTrail(w http.ResponseWriter, r *http.Request, id string) {
	actions, err := rt.review.AuditTrail(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions, "count": len(actions)})
}

var errMissingReviewer = errors.New("X-Reviewer-Id header is required")

// reviewerFromRequest trusts identity headers set by the upstream gateway.
func reviewerFromRequest(r *http.Request) (domain.Reviewer, error) {
	reviewer := domain.Reviewer{
		ID:   strings.TrimSpace(r.Header.Get("X-Reviewer-Id")),
		Role: domain.ReviewerRole(strings.TrimSpace(r.Header.Get("X-Reviewer-Role"))),
	}
	if reviewer.Role == "" {
		reviewer.Role = domain.RoleReviewer
	}
	if reviewer.ID == "" {
		return domain.Reviewer{}, domain.WrapError(domain.ErrUnauthorized, "authenticate reviewer",
			errMissingReviewer)
	}
	return reviewer, nil
}

func clientID(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
