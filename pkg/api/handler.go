package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"media-transcriber/pkg/media"
	"media-transcriber/pkg/models"
	"media-transcriber/pkg/pipeline"
	"media-transcriber/pkg/storage"
	"media-transcriber/pkg/transcribe"
)

const defaultMaxAgeHours = 168

type Handlers struct {
	orch   *pipeline.Orchestrator
	jobs   *pipeline.Manager
	store  storage.Store
	logger *slog.Logger
}

func NewHandlers(orch *pipeline.Orchestrator, jobs *pipeline.Manager, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		orch:   orch,
		jobs:   jobs,
		store:  orch.Store(),
		logger: logger.With("component", "api"),
	}
}

func NewRouter(h *Handlers) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", h.HealthHandler).Methods("GET")
	router.HandleFunc("/process", h.ProcessHandler).Methods("POST")
	router.HandleFunc("/jobs", h.SubmitJobHandler).Methods("POST")
	router.HandleFunc("/jobs/{id}", h.GetJobHandler).Methods("GET")
	router.HandleFunc("/transcripts", h.ListTranscriptsHandler).Methods("GET")
	router.HandleFunc("/transcripts/{fingerprint}", h.GetTranscriptHandler).Methods("GET")
	router.HandleFunc("/transcripts/{fingerprint}", h.DeleteTranscriptHandler).Methods("DELETE")
	router.HandleFunc("/cache/cleanup", h.CleanupHandler).Methods("POST")
	router.HandleFunc("/ws", h.WebSocketHandler)
	return router
}

type processResponse struct {
	Fingerprint string                      `json:"fingerprint"`
	Cached      bool                        `json:"cached"`
	Persisted   bool                        `json:"persisted"`
	Warning     string                      `json:"warning,omitempty"`
	Record      *models.TranscriptionRecord `json:"record"`
}

func newProcessResponse(res *pipeline.Result) processResponse {
	resp := processResponse{
		Fingerprint: res.Record.Fingerprint,
		Cached:      res.Cached,
		Persisted:   res.Persisted,
		Record:      res.Record,
	}
	if res.PersistError != nil {
		resp.Warning = "transcription could not be cached: " + res.PersistError.Error()
	}
	return resp
}

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (pipeline.Request, error) {
	var req pipeline.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	if req.URL == "" {
		return req, errors.New("URL is required")
	}
	return req, nil
}

func (h *Handlers) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("processing started", "url", req.URL)
	res, err := h.orch.Process(r.Context(), req, nil)
	if err != nil {
		h.logger.Warn("processing failed", "url", req.URL, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newProcessResponse(res))
}

func (h *Handlers) SubmitJobHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := h.jobs.Submit(req)
	if err != nil {
		writeError(w, statusFor(err), fmt.Sprintf("Failed to submit job: %v", err))
		return
	}
	w.Header().Set("Location", "/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handlers) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Job(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handlers) ListTranscriptsHandler(w http.ResponseWriter, r *http.Request) {
	records := h.store.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"count":          len(records),
		"transcriptions": records,
	})
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9]+`)

func attachment(title, suffix string) string {
	name := unsafeFileChars.ReplaceAllString(title, "_")
	if name == "" || name == "_" {
		name = "transcript"
	}
	return fmt.Sprintf(`attachment; filename="%s_%s"`, name, suffix)
}

type fullTranscript struct {
	Video struct {
		Title    string  `json:"title"`
		Author   string  `json:"author"`
		Duration float64 `json:"duration"`
		URL      string  `json:"url"`
	} `json:"video"`
	Transcription struct {
		Clean       string             `json:"clean"`
		Timestamped string             `json:"timestamped"`
		Words       []models.WordToken `json:"words"`
	} `json:"transcription"`
	Metadata struct {
		SegmentCount     int     `json:"segment_count"`
		Language         string  `json:"language,omitempty"`
		DetectedLanguage string  `json:"detected_language,omitempty"`
		BackendDuration  float64 `json:"backend_duration"`
	} `json:"metadata"`
	ProcessedAt time.Time `json:"processed_at"`
}

func newFullTranscript(rec *models.TranscriptionRecord) fullTranscript {
	var ft fullTranscript
	ft.Video.Title = rec.Title
	ft.Video.Author = rec.Author
	ft.Video.Duration = rec.Duration
	ft.Video.URL = rec.URL
	ft.Transcription.Clean = rec.TranscriptClean
	ft.Transcription.Timestamped = rec.TranscriptTimestamped
	ft.Transcription.Words = rec.Words
	ft.Metadata.SegmentCount = rec.SegmentCount
	ft.Metadata.Language = rec.Language
	ft.Metadata.DetectedLanguage = rec.DetectedLanguage
	ft.Metadata.BackendDuration = rec.BackendDuration
	ft.ProcessedAt = rec.ProcessedAt
	return ft
}

func (h *Handlers) GetTranscriptHandler(w http.ResponseWriter, r *http.Request) {
	fp := mux.Vars(r)["fingerprint"]
	rec, err := h.store.Get(fp)
	if err != nil {
		writeError(w, http.StatusNotFound, "Transcription not found in cache")
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "clean":
		writeText(w, rec.TranscriptClean, attachment(rec.Title, "clean.txt"))
	case "timestamped":
		writeText(w, rec.TranscriptTimestamped, attachment(rec.Title, "timestamped.txt"))
	case "json":
		w.Header().Set("Content-Disposition", attachment(rec.Title, "full.json"))
		writeJSON(w, http.StatusOK, newFullTranscript(rec))
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
	}
}

func (h *Handlers) DeleteTranscriptHandler(w http.ResponseWriter, r *http.Request) {
	fp := mux.Vars(r)["fingerprint"]
	ok, err := h.store.Delete(fp)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Transcription not found in cache")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Deleted cached transcription: " + fp,
	})
}

func (h *Handlers) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	hours := defaultMaxAgeHours
	if v := r.URL.Query().Get("max_age_hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "max_age_hours must be a non-negative integer")
			return
		}
		hours = n
	}

	deleted, err := h.store.EvictOlderThan(time.Duration(hours) * time.Hour)
	if err != nil {
		h.logger.Warn("cleanup incomplete", "deleted", deleted, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       err == nil,
		"deleted_count": deleted,
		"message":       fmt.Sprintf("Cleaned up %d old cached transcriptions", deleted),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, media.ErrInvalidSource), errors.Is(err, pipeline.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, pipeline.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, transcribe.ErrTranscriptionFailed):
		return http.StatusBadGateway
	case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrShuttingDown),
		errors.Is(err, storage.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, body, disposition string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", disposition)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}
