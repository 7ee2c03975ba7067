package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"birthday-sync-service/internal/store"
	"birthday-sync-service/internal/sync"
)

type Handler struct {
	service   *sync.Service
	authToken string
}

func NewHandler(service *sync.Service, authToken string) *Handler {
	return &Handler{
		service:   service,
		authToken: authToken,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware)

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Post("/birthdays", h.CreateBirthday)
		r.Put("/birthdays/{id}", h.UpdateBirthday)
		r.Delete("/birthdays/{id}", h.DeleteBirthday)
		r.Get("/birthdays/{id}/events", h.ListRemoteEvents)

		r.Post("/sync/birthday/{id}", h.SyncBirthday)
		r.Post("/sync/bulk", h.StartBulkSync)
		r.Post("/sync/sweep", h.TriggerSweep)
		r.Get("/sync/jobs/{id}", h.GetJob)
		r.Get("/sync/status", h.GetSyncStatus)
	})

	return r
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type birthdayPayload struct {
	ID          string   `json:"id,omitempty"`
	TenantID    string   `json:"tenant_id"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	BirthDate   string   `json:"birth_date"`
	AfterSunset bool     `json:"after_sunset"`
	Gender      string   `json:"gender,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	GroupIDs    []string `json:"group_ids,omitempty"`
	Archived    bool     `json:"archived"`
	Preference  string   `json:"calendar_preference,omitempty"`
}

func (p birthdayPayload) toModel() (*store.Birthday, error) {
	if p.TenantID == "" || p.FirstName == "" {
		return nil, errors.New("tenant_id and first_name are required")
	}
	birthDate, err := time.Parse("2006-01-02", p.BirthDate)
	if err != nil {
		return nil, errors.New("birth_date must be YYYY-MM-DD")
	}
	return &store.Birthday{
		ID:          p.ID,
		TenantID:    p.TenantID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		BirthDate:   birthDate,
		AfterSunset: p.AfterSunset,
		Gender:      p.Gender,
		Notes:       p.Notes,
		GroupIDs:    p.GroupIDs,
		Archived:    p.Archived,
		Preference:  store.CalendarPreference(p.Preference),
	}, nil
}

func (h *Handler) CreateBirthday(w http.ResponseWriter, r *http.Request) {
	var payload birthdayPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	b, err := payload.toModel()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.CreateBirthday(r.Context(), b); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(b)
}

func (h *Handler) UpdateBirthday(w http.ResponseWriter, r *http.Request) {
	var payload birthdayPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	payload.ID = chi.URLParam(r, "id")
	b, err := payload.toModel()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateBirthday(r.Context(), b); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(b)
}

func (h *Handler) DeleteBirthday(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteBirthday(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListRemoteEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	page, err := h.service.ListRemoteEvents(r.Context(), id, r.URL.Query().Get("pageToken"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	json.NewEncoder(w).Encode(page)
}

func (h *Handler) SyncBirthday(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	force := r.URL.Query().Get("force") == "true"

	if err := h.service.SyncBirthday(r.Context(), id, force); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, sync.ErrPrimaryCalendar) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "synced"})
}

type bulkSyncRequest struct {
	UserID      string   `json:"user_id"`
	BirthdayIDs []string `json:"birthday_ids"`
}

func (h *Handler) StartBulkSync(w http.ResponseWriter, r *http.Request) {
	var req bulkSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || len(req.BirthdayIDs) == 0 {
		http.Error(w, "user_id and birthday_ids are required", http.StatusBadRequest)
		return
	}

	jobID, err := h.service.StartBulkSync(r.Context(), req.UserID, req.BirthdayIDs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": jobID})
}

func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	// The request context dies with this handler; the sweep outlives it.
	go h.service.Sweep(context.Background())
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "sweep started"})
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(job)
}

func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{"status": h.service.GetStatus()})
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.authToken != "" && r.Header.Get("Authorization") != "Bearer "+h.authToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
