package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/beatpress/api/internal/credentials"
	"github.com/beatpress/api/internal/db"
	"github.com/beatpress/api/internal/models"
	"github.com/beatpress/api/internal/pipeline"
	"github.com/beatpress/api/internal/services"
	"github.com/beatpress/api/internal/storage"
)

// maxUploadBytes bounds the multipart form: a full-length beat plus cover art
// fits comfortably in 200 MB.
const maxUploadBytes = 200 << 20

// JobProcessor runs an admitted job to completion.
type JobProcessor interface {
	Process(job *models.Job) (*models.PublishOutcome, error)
}

type Handler struct {
	pipeline JobProcessor
	uploads  *storage.UploadStore
	creds    *credentials.Manager
	db       *db.DB
}

func NewHandler(p JobProcessor, uploads *storage.UploadStore, creds *credentials.Manager, database *db.DB) *Handler {
	return &Handler{
		pipeline: p,
		uploads:  uploads,
		creds:    creds,
		db:       database,
	}
}

// CreateVideo handles POST /v1/videos.
//
// The request blocks until the job has run through the whole pipeline; with
// jobs strictly serialized, a submission behind a long render simply waits
// its turn on the open connection.
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	beatTitle := strings.TrimSpace(r.FormValue("beatTitle"))
	if beatTitle == "" {
		respondError(w, http.StatusBadRequest, "beatTitle is required")
		return
	}

	style, err := models.ParseBackgroundStyle(r.FormValue("backgroundStyle"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "backgroundStyle must be \"blurred\" or \"black\"")
		return
	}

	var publishAt time.Time
	if raw := strings.TrimSpace(r.FormValue("publishAt")); raw != "" {
		publishAt, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "publishAt must be RFC3339")
			return
		}
	}

	jobID := uuid.New().String()

	audioFile, audioHeader, err := r.FormFile("audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer audioFile.Close()

	imageFile, imageHeader, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer imageFile.Close()

	audioPath, err := h.uploads.SaveUpload(audioFile, audioHeader, "audio", jobID, ".mp3")
	if err != nil {
		log.Printf("[API] failed to save audio upload: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to store audio upload")
		return
	}

	imagePath, err := h.uploads.SaveUpload(imageFile, imageHeader, "image", jobID, ".jpg")
	if err != nil {
		log.Printf("[API] failed to save image upload: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to store image upload")
		return
	}

	job := &models.Job{
		ID:            jobID,
		AudioPath:     audioPath,
		ImagePath:     imagePath,
		BeatTitle:     beatTitle,
		Tags:          strings.TrimSpace(r.FormValue("tags")),
		Genre:         strings.TrimSpace(r.FormValue("genre")),
		InstagramLink: strings.TrimSpace(r.FormValue("instagramLink")),
		BeatstarsLink: strings.TrimSpace(r.FormValue("beatstarsLink")),
		ManualBPM:     r.FormValue("manualBpm"),
		ManualKey:     r.FormValue("manualKey"),
		Email:         strings.TrimSpace(r.FormValue("email")),
		Style:         style,
		PublishAt:     publishAt,
		CreatedAt:     time.Now(),
	}

	outcome, err := h.pipeline.Process(job)
	if err != nil {
		log.Printf("[API] job %s failed: %v", jobID, err)
		respondError(w, publishErrorStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

// ListPublishes handles GET /v1/publishes
// Query params:
//   - limit: max results (default 50, max 200)
func (h *Handler) ListPublishes(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		respondError(w, http.StatusServiceUnavailable, "Publish history is not configured")
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.db.ListPublishRecords(r.Context(), limit)
	if err != nil {
		log.Printf("[API] failed to list publishes: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list publishes")
		return
	}

	respondJSON(w, http.StatusOK, records)
}

// publishErrorStatus maps pipeline failures onto HTTP statuses the frontend
// can act on.
func publishErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrAuthExpired):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrQuotaDenied):
		return http.StatusForbidden
	case errors.Is(err, pipeline.ErrSerializerStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
