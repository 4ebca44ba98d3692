package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Amar-Omerika/stake-limit-service/internal/app/dto"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/model"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/repository"
	"github.com/Amar-Omerika/stake-limit-service/internal/domain/useCases"
)

// ServerConfig tunes the HTTP surface.
type ServerConfig struct {
	Addr             string
	APIKey           string
	RatePerSecond    float64
	RateBurst        int
	TicketsPerSecond float64
	TicketBurst      int
}

// Server exposes ticket evaluation and device configuration over HTTP. It is
// a thin marshalling layer: all decisions and validations live in the domain
// services, and domain error kinds map one-to-one onto status codes.
type Server struct {
	evaluator   useCases.TicketEvaluator
	devices     useCases.DeviceService
	archive     repository.DecisionArchive
	broadcaster useCases.Broadcaster
	log         *slog.Logger
	server      *http.Server
}

// NewServer builds the router. archive and broadcaster may be nil.
func NewServer(cfg ServerConfig, evaluator useCases.TicketEvaluator, devices useCases.DeviceService, archive repository.DecisionArchive, broadcaster useCases.Broadcaster, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		evaluator:   evaluator,
		devices:     devices,
		archive:     archive,
		broadcaster: broadcaster,
		log:         log,
	}

	r := chi.NewRouter()
	r.Use(rateLimit(cfg.RatePerSecond, cfg.RateBurst))

	r.Get("/health", s.handleHealth)
	if broadcaster != nil {
		r.Get("/ws", broadcaster.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(apiKeyAuth(cfg.APIKey))

		r.Route("/process-ticket", func(r chi.Router) {
			// Ticket submission gets its own, stricter budget.
			r.Use(rateLimit(cfg.TicketsPerSecond, cfg.TicketBurst))
			r.Post("/", s.handleProcessTicket)
		})

		r.Route("/device-config", func(r chi.Router) {
			r.Post("/", s.handleCreateDevice)
			r.Get("/", s.handleListDevices)
			r.Get("/{deviceId}", s.handleGetDevice)
			r.Put("/{deviceId}", s.handleUpdateDevice)
			r.Delete("/{deviceId}", s.handleDeleteDevice)
		})

		r.Get("/decisions", s.handleRecentDecisions)
	})

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) handleProcessTicket(w http.ResponseWriter, r *http.Request) {
	var in dto.TicketDTO
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	decision, err := s.evaluator.Evaluate(r.Context(), in.ToModel())
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(decision.Status)})
}

func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var in dto.DeviceConfigDTO
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	created, err := s.devices.Create(r.Context(), in.ToModel())
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":      "Device configuration created successfully",
		"deviceConfig": dto.DeviceFromModel(created),
		"deviceId":     created.DeviceID,
	})
}

func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	var in dto.DeviceConfigDTO
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	updated, err := s.devices.Update(r.Context(), deviceID, in.ToModel())
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DeviceFromModel(updated))
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	cfg, err := s.devices.Get(r.Context(), deviceID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DeviceFromModel(cfg))
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceId")

	found, err := s.devices.Delete(r.Context(), deviceID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Device configuration not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Device configuration deleted successfully"})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := model.DeviceFilter{
		DeviceID:    q.Get("deviceId"),
		BlockedOnly: q.Get("blocked") == "true",
	}
	if v, err := strconv.ParseFloat(q.Get("stakeLimitMin"), 64); err == nil {
		filter.MinStakeLimit = v
	}
	if v, err := strconv.ParseFloat(q.Get("stakeLimitMax"), 64); err == nil {
		filter.MaxStakeLimit = v
	}

	opts := model.ListOptions{
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		opts.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = v
	}

	page, err := s.devices.List(r.Context(), filter, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PageFromModel(page))
}

func (s *Server) handleRecentDecisions(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "decision archive not configured"})
		return
	}

	since := time.Now().Add(-1 * time.Hour)
	if v := r.URL.Query().Get("sinceSeconds"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			since = time.Now().Add(-time.Duration(secs) * time.Second)
		}
	}

	decisions, err := s.archive.FindDecisionsSince(r.Context(), since)
	if err != nil {
		s.log.Error("failed to query decision archive", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	out := make([]*dto.DecisionDTO, len(decisions))
	for i, d := range decisions {
		out[i] = dto.DecisionFromModel(d)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps domain error kinds to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch model.KindOf(err) {
	case model.KindValidation, model.KindDuplicateTicket:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case model.KindDeviceNotFound:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case model.KindDuplicateDevice:
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		s.log.Error("request failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Handler exposes the assembled router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
