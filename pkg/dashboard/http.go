package dashboard

import (
	"net/http"
	"strconv"

	"github.com/gestione-formulari/dashboard/pkg/common/apperr"
	"github.com/gestione-formulari/dashboard/pkg/common/logger"
	"github.com/gestione-formulari/dashboard/pkg/formulari"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/dashboard/overview", h.handleOverview).Methods(http.MethodGet)
	r.HandleFunc("/dashboard/monthly", h.handleMonthly).Methods(http.MethodGet)
	r.HandleFunc("/dashboard/top", h.handleTop).Methods(http.MethodGet)
	r.HandleFunc("/dashboard/emissions", h.handleEmissions).Methods(http.MethodGet)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Overview(r.Context())
	if err != nil {
		h.fail(w, r, err, "failed to compute overview")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	var m formulari.Month
	if v := r.URL.Query().Get("month"); v != "" {
		parsed, err := formulari.ParseMonth(v)
		if err != nil {
			apperr.Write(w, err, "")
			return
		}
		m = parsed
	} else {
		now := h.service.now()
		m = formulari.Month{Year: now.Year(), Month: now.Month()}
	}

	views, err := h.service.Monthly(r.Context(), m)
	if err != nil {
		h.fail(w, r, err, "failed to list monthly formulari")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]interface{}{"month": m.String(), "data": views})
}

func (h *Handler) handleTop(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entity := q.Get("entity")
	if entity == "" {
		entity = "produttore"
	}
	limit, err := optionalInt(q.Get("limit"), "limit")
	if err != nil {
		apperr.Write(w, err, "")
		return
	}

	groups, err := h.service.Top(r.Context(), entity, limit)
	if err != nil {
		h.fail(w, r, err, "failed to rank entities")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]interface{}{"entity": entity, "data": groups})
}

func (h *Handler) handleEmissions(w http.ResponseWriter, r *http.Request) {
	days, err := optionalInt(r.URL.Query().Get("days"), "days")
	if err != nil {
		apperr.Write(w, err, "")
		return
	}
	out, err := h.service.Emissions(r.Context(), days)
	if err != nil {
		h.fail(w, r, err, "failed to compute emissions")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if !apperr.IsValidation(err) {
		logger.FromContext(r.Context()).WithError(err).Error(msg)
	}
	apperr.Write(w, err, msg)
}

func optionalInt(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, apperr.Validation("%s must be a positive integer", name)
	}
	return n, nil
}
