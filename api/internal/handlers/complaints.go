package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"civicconnect-backend/api/internal/classify"
	"civicconnect-backend/api/internal/models"
	"civicconnect-backend/shared/events"
	"civicconnect-backend/shared/httpx"
	"civicconnect-backend/shared/logx"
	"civicconnect-backend/shared/workflow"
)

// ComplaintStore is the slice of the complaints repo the HTTP layer
// needs.
type ComplaintStore interface {
	Create(ctx context.Context, c models.Complaint) (models.Complaint, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.Complaint, error)
	List(ctx context.Context, status string, category string, limit int, offset int) ([]models.Complaint, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (models.Complaint, error)
	Assign(ctx context.Context, id uuid.UUID, department string, assignedTo string) (models.Complaint, error)
	UpdateVerification(ctx context.Context, id uuid.UUID, v models.MLVerification) (models.Complaint, error)
	ResetVerification(ctx context.Context, id uuid.UUID) (models.Complaint, error)
}

// VerificationEnqueuer routes a freshly created or requeued complaint
// into the verification pipeline.
type VerificationEnqueuer interface {
	Enqueue(ctx context.Context, c models.Complaint) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error
}

type DepartmentStore interface {
	EnsureDepartment(ctx context.Context, name string) error
}

type ComplaintsHandler struct {
	Store       ComplaintStore
	Enqueuer    VerificationEnqueuer
	Departments DepartmentStore
	Events      Publisher
	Logger      logx.Logger
}

func (h ComplaintsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/complaints", h.create)
	mux.HandleFunc("GET /api/v1/complaints", h.list)
	mux.HandleFunc("GET /api/v1/complaints/{id}", h.get)
	mux.HandleFunc("PUT /api/v1/complaints/{id}/status", h.updateStatus)
	mux.HandleFunc("PUT /api/v1/complaints/{id}/assign", h.assign)
	mux.HandleFunc("PUT /api/v1/complaints/{id}/verification", h.updateVerification)
	mux.HandleFunc("POST /api/v1/complaints/{id}/reverify", h.reverify)
}

type createComplaintRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	LocationText string `json:"locationText"`
	ImageURL     string `json:"imageUrl"`
	ReporterID   string `json:"reporterId"`
}

type createComplaintResponse struct {
	models.Complaint
	QueuedForVerification bool `json:"queuedForVerification"`
}

func (h ComplaintsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createComplaintRequest
	if err := httpx.DecodeJSON(r, &req, 1<<20); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
		return
	}

	var missing []string
	if strings.TrimSpace(req.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(req.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(req.LocationText) == "" {
		missing = append(missing, "locationText")
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		missing = append(missing, "imageUrl")
	}
	if strings.TrimSpace(req.ReporterID) == "" {
		missing = append(missing, "reporterId")
	}
	if len(missing) > 0 {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "missing required fields",
			map[string]any{"missing": missing})
		return
	}
	reporterID, err := uuid.Parse(strings.TrimSpace(req.ReporterID))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid reporterId", nil)
		return
	}

	classification := classify.Classify(req.Title, req.Description)
	created, err := h.Store.Create(r.Context(), models.Complaint{
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		LocationText: strings.TrimSpace(req.LocationText),
		ImageURL:     strings.TrimSpace(req.ImageURL),
		Category:     classification.Category,
		ReporterID:   reporterID,
	})
	if err != nil {
		h.Logger.Error(r.Context(), "complaint_create_failed", "failed to create complaint",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create complaint", nil)
		return
	}

	// Queueing happens after the write and never fails the request.
	queued, err := h.Enqueuer.Enqueue(r.Context(), created)
	if err != nil {
		h.Logger.Warn(r.Context(), "verification_enqueue_failed", "complaint created but not queued",
			slog.String("complaint_id", created.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	if refreshed, err := h.Store.GetByID(r.Context(), created.ID); err == nil {
		created = refreshed
	}

	h.publishComplaintEvent(r.Context(), workflow.EventComplaintCreated, created)
	httpx.WriteJSON(w, http.StatusCreated, createComplaintResponse{
		Complaint:             created,
		QueuedForVerification: queued,
	})
}

func (h ComplaintsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := strings.TrimSpace(q.Get("status"))
	if status != "" && !workflow.IsComplaintStatus(status) {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "unknown status",
			map[string]any{"allowed": workflow.AllComplaintStatuses()})
		return
	}
	limit := intQuery(q.Get("limit"), 100)
	offset := intQuery(q.Get("offset"), 0)

	complaints, err := h.Store.List(r.Context(), status, strings.TrimSpace(q.Get("category")), limit, offset)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list complaints", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"complaints": complaints,
		"count":      len(complaints),
	})
}

func (h ComplaintsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.Store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h ComplaintsHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req, 1<<16); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
		return
	}
	if !workflow.IsComplaintStatus(req.Status) {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "unknown status",
			map[string]any{"allowed": workflow.AllComplaintStatuses()})
		return
	}

	c, err := h.Store.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	h.publishComplaintEvent(r.Context(), workflow.EventComplaintStatus, c)
	httpx.WriteJSON(w, http.StatusOK, c)
}

type assignRequest struct {
	Department string `json:"department"`
	AssignedTo string `json:"assignedTo"`
}

func (h ComplaintsHandler) assign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req, 1<<16); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Department) == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "department is required", nil)
		return
	}
	if h.Departments != nil {
		if err := h.Departments.EnsureDepartment(r.Context(), strings.TrimSpace(req.Department)); err != nil {
			httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to register department", nil)
			return
		}
	}

	c, err := h.Store.Assign(r.Context(), id, strings.TrimSpace(req.Department), strings.TrimSpace(req.AssignedTo))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	h.publishComplaintEvent(r.Context(), workflow.EventComplaintAssigned, c)
	httpx.WriteJSON(w, http.StatusOK, c)
}

type updateVerificationRequest struct {
	Verified   bool       `json:"verified"`
	Confidence float64    `json:"confidence"`
	Analysis   *string    `json:"analysis"`
	Severity   string     `json:"severity"`
	Pending    bool       `json:"pending"`
	Status     string     `json:"status"`
	VerifiedAt *time.Time `json:"verifiedAt"`
}

// updateVerification is the admin override. It overwrites the whole
// sub-record; concurrent pipeline writes follow last-write-wins.
func (h ComplaintsHandler) updateVerification(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateVerificationRequest
	if err := httpx.DecodeJSON(r, &req, 1<<16); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
		return
	}
	status := workflow.NormalizeMLStatus(req.Status)
	if status != workflow.MLStatusNone {
		valid := false
		for _, s := range workflow.AllMLStatuses() {
			if s == status {
				valid = true
			}
		}
		if !valid {
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "unknown verification status",
				map[string]any{"allowed": workflow.AllMLStatuses()})
			return
		}
	}
	if req.Pending && workflow.IsTerminalMLStatus(status) {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "terminal verification cannot be pending", nil)
		return
	}

	c, err := h.Store.UpdateVerification(r.Context(), id, models.MLVerification{
		Verified:   req.Verified,
		Confidence: req.Confidence,
		Analysis:   req.Analysis,
		Severity:   req.Severity,
		Pending:    req.Pending,
		Status:     status,
		VerifiedAt: req.VerifiedAt,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

// reverify resets a settled complaint and puts it back through the
// pipeline. Complaints still pending or processing are rejected.
func (h ComplaintsHandler) reverify(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	current, err := h.Store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if !workflow.CanTransitionML(current.MLVerification.Status, workflow.MLStatusPending) {
		httpx.WriteError(w, r, http.StatusConflict, "FAILED_PRECONDITION", "verification already in progress",
			map[string]any{"status": current.MLVerification.Status})
		return
	}

	c, err := h.Store.ResetVerification(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if _, err := h.Enqueuer.Enqueue(r.Context(), c); err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to requeue verification", nil)
		return
	}
	if refreshed, err := h.Store.GetByID(r.Context(), c.ID); err == nil {
		c = refreshed
	}
	httpx.WriteJSON(w, http.StatusAccepted, c)
}

func (h ComplaintsHandler) publishComplaintEvent(ctx context.Context, eventType string, c models.Complaint) {
	if h.Events == nil {
		return
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return
	}
	envelope := events.Envelope{
		EventID:       uuid.New(),
		OccurredAt:    time.Now().UTC(),
		AggregateType: "complaint",
		AggregateID:   c.ID,
		EventType:     eventType,
		Payload:       payload,
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	if err := h.Events.Publish(ctx, events.TopicComplaintEvents, []byte(c.ID.String()), value, nil); err != nil {
		h.Logger.Warn(ctx, "event_publish_failed", "failed to publish complaint event",
			slog.String("topic", events.TopicComplaintEvents),
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid complaint id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "complaint not found", nil)
		return
	}
	httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "storage error", nil)
}

func intQuery(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
