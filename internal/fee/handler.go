// AngelaMos | 2026
// handler.go

package fee

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/licensegate/internal/core"
	"github.com/carterperez-dev/licensegate/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/fees", func(r chi.Router) {
		r.Get("/resolve", h.Resolve)
		r.Post("/trades", h.RecordTrade)
	})
}

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/fees/summary", h.Summary)
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	resolution, err := h.service.Resolve(
		r.Context(),
		middleware.GetUserID(r.Context()),
		r.URL.Query().Get("license_key"),
	)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, resolution)
}

func (h *Handler) RecordTrade(w http.ResponseWriter, r *http.Request) {
	var req RecordTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.RecordTrade(
		r.Context(),
		middleware.GetUserID(r.Context()),
		req,
	)
	if err != nil {
		if core.IsAppError(err) {
			core.JSONError(w, err)
			return
		}
		core.InternalServerError(w, err)
		return
	}

	if resp.Duplicate {
		core.OK(w, resp)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			core.BadRequest(w, "since must be RFC3339")
			return
		}
		since = parsed
	}

	summary, err := h.service.Summary(r.Context(), since)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, summary)
}
