package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"scalable-rag-engine/internal/domain"
	"scalable-rag-engine/internal/domain/model"
	"scalable-rag-engine/internal/infra/logging"
	"scalable-rag-engine/internal/infra/metrics"
	"scalable-rag-engine/internal/usecase"
)

const (
	minQueryRunes = 3
	maxBodyBytes  = 1 << 20
)

// Server exposes URL submission, job status and question answering over HTTP.
type Server struct {
	submit  usecase.SubmissionUseCase
	query   usecase.QueryUseCase
	log     *zerolog.Logger
	timeout time.Duration
}

func NewServer(submit usecase.SubmissionUseCase, query usecase.QueryUseCase, requestTimeout time.Duration, logger *zerolog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "api").Logger()
	return &Server{submit: submit, query: query, log: &l, timeout: requestTimeout}
}

// Router builds the chi router with middlewares and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID())
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))
	r.Use(cors.AllowAll().Handler)

	r.Get("/", s.handleRoot)
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(Timeout(s.timeout))
		r.Post("/ingest-url", s.handleIngest)
		r.Post("/query", s.handleQuery)
		r.Get("/jobs/{id}", s.handleJob)
	})
	return r
}

// NewHTTPServer wraps h in an http.Server listening on port.
func NewHTTPServer(port int, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type ingestRequest struct {
	URL string `json:"url"`
}

type ingestResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type conflictResponse struct {
	Detail string `json:"detail"`
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

type jobResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "RAG Engine API is running"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	job, err := s.submit.Submit(r.Context(), req.URL)
	if err != nil {
		var ce *domain.ConflictError
		if errors.As(err, &ce) {
			writeJSON(w, http.StatusConflict, conflictResponse{
				Detail: fmt.Sprintf("URL has already been submitted. Job ID: %s, Status: %s", ce.JobID, ce.Status),
				JobID:  ce.JobID,
				Status: ce.Status,
			})
			return
		}
		s.writeError(w, r, err, "Failed to submit URL")
		return
	}

	writeJSON(w, http.StatusAccepted, ingestResponse{
		JobID:   job.ID,
		Status:  string(job.Status),
		Message: "URL submitted for ingestion.",
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Query)) < minQueryRunes {
		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("query must be at least %d characters", minQueryRunes))
		return
	}

	ans, err := s.query.Answer(r.Context(), req.Query)
	if err != nil {
		s.writeError(w, r, err, "Failed to answer query")
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Answer: ans.Text, Sources: ans.Sources})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.submit.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, "Failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func toJobResponse(j *model.IngestionJob) jobResponse {
	return jobResponse{
		ID:        j.ID,
		URL:       j.URL,
		Status:    string(j.Status),
		LastError: j.LastError,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// writeError maps domain errors to status codes; anything unknown is a 500
// with a generic detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Job not found")
	case errors.Is(err, domain.ErrConflict):
		writeDetail(w, http.StatusConflict, err.Error())
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg(msg)
		writeDetail(w, http.StatusInternalServerError, msg)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
