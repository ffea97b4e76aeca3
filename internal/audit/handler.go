// AngelaMos | 2026
// handler.go

package audit

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/licensegate/internal/core"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, operatorOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/audit", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(operatorOnly)

		r.Get("/", h.List)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	entries, err := h.service.List(r.Context(), ListParams{
		Action:      q.Get("action"),
		ActorUserID: q.Get("actor"),
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, map[string]any{"entries": entries})
}
