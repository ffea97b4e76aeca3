// AngelaMos | 2026
// handler.go

package license

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

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

// RegisterRoutes wires the client-facing endpoints. Activation and
// validation are unauthenticated by design: a desktop client holds a
// license key, not a session.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/licenses", func(r chi.Router) {
		r.Post("/activate", h.Activate)
		r.Post("/validate", h.Validate)
	})
}

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/licenses", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Generate)
		r.Get("/{licenseKey}", h.Get)
		r.Post("/{licenseKey}/revoke", h.Revoke)
		r.Post("/{licenseKey}/deactivate", h.Deactivate)
	})

	r.Route("/tiers", func(r chi.Router) {
		r.Get("/", h.ListTiers)
		r.Post("/", h.CreateTier)
		r.Get("/{tierName}", h.GetTier)
		r.Put("/{tierName}", h.UpdateTier)
	})
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	// Activation may come from a logged-in dashboard or a bare client.
	userID := middleware.GetUserID(r.Context())

	lic, err := h.service.Activate(r.Context(), req, userID, clientIP(r))
	if err != nil {
		if core.IsAppError(err) {
			core.JSONError(w, err)
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToLicenseResponse(lic))
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	summary, err := h.service.Validate(r.Context(), req)
	if err != nil {
		if core.IsAppError(err) {
			core.JSONError(w, err)
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, summary)
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	lic, err := h.service.Generate(
		r.Context(),
		req,
		middleware.GetUserID(r.Context()),
	)
	if err != nil {
		if core.IsAppError(err) {
			core.JSONError(w, err)
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, ToLicenseResponse(lic))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	licenseKey := chi.URLParam(r, "licenseKey")

	lic, err := h.service.GetByKey(r.Context(), licenseKey)
	if err != nil {
		if core.IsAppError(err) {
			core.JSONError(w, err)
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToLicenseResponse(lic))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := ListParams{
		Status:   r.URL.Query().Get("status"),
		TierName: r.URL.Query().Get("tier"),
		OwnerID:  r.URL.Query().Get("owner_id"),
	}
	params.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	params.PageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))

	licenses, total, err := h.service.List(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	resp := LicenseListResponse{
		Licenses: make([]LicenseResponse, 0, len(licenses)),
		Total:    total,
	}
	for i := range licenses {
		resp.Licenses = append(resp.Licenses, ToLicenseResponse(&licenses[i]))
	}

	core.OK(w, resp)
}

type statusChangeRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.service.Revoke)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.service.Deactivate)
}

func (h *Handler) changeStatus(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, licenseKey, actorID, reason string) error,
) {
	licenseKey := chi.URLParam(r, "licenseKey")

	var req statusChangeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			core.BadRequest(w, "invalid request body")
			return
		}
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	err := apply(
		r.Context(),
		licenseKey,
		middleware.GetUserID(r.Context()),
		req.Reason,
	)
	if err != nil {
		if core.IsAppError(err) {
			core.JSONError(w, err)
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) CreateTier(w http.ResponseWriter, r *http.Request) {
	var req TierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	tier, err := h.service.CreateTier(r.Context(), req)
	if err != nil {
		if core.IsAppError(err) {
			core.JSONError(w, err)
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, tier)
}

func (h *Handler) UpdateTier(w http.ResponseWriter, r *http.Request) {
	var req TierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}
	req.TierName = chi.URLParam(r, "tierName")

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	tier, err := h.service.UpdateTier(r.Context(), req)
	if err != nil {
		if core.IsAppError(err) {
			core.JSONError(w, err)
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, tier)
}

func (h *Handler) GetTier(w http.ResponseWriter, r *http.Request) {
	tier, err := h.service.GetTier(r.Context(), chi.URLParam(r, "tierName"))
	if err != nil {
		if core.IsAppError(err) {
			core.JSONError(w, err)
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, tier)
}

func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.service.ListTiers(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, map[string]any{"tiers": tiers})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[len(ips)-1])
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}
