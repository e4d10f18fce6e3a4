package formulari

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gestione-formulari/dashboard/pkg/common/apperr"
	"github.com/gestione-formulari/dashboard/pkg/common/logger"
	"github.com/gestione-formulari/dashboard/pkg/common/models"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/formulari", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/formulari/pec-preview", h.handlePECPreview).Methods(http.MethodPost)
	r.HandleFunc("/formulari/uid/{uid}", h.handleGetByUID).Methods(http.MethodGet)
	r.HandleFunc("/formulari/{id:[0-9]+}", h.handleGet).Methods(http.MethodGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	req, err := ParseFilterRequest(r.URL.Query(), h.service.Limits())
	if err != nil {
		apperr.Write(w, err, "invalid filters")
		return
	}
	page, err := h.service.List(r.Context(), req)
	if err != nil {
		logFailure(r, err, "failed to list formulari")
		apperr.Write(w, err, "failed to list formulari")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		apperr.Write(w, apperr.Validation("invalid formulario id"), "")
		return
	}
	view, err := h.service.Get(r.Context(), id)
	if err != nil {
		logFailure(r, err, "failed to get formulario")
		apperr.Write(w, err, "failed to get formulario")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleGetByUID(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetByUID(r.Context(), mux.Vars(r)["uid"])
	if err != nil {
		logFailure(r, err, "failed to get formulario")
		apperr.Write(w, err, "failed to get formulario")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handlePECPreview(w http.ResponseWriter, r *http.Request) {
	var req models.UIDArrayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.Write(w, apperr.Validation("invalid request body"), "")
		return
	}
	preview, err := h.service.PECPreview(r.Context(), req.UIDArray)
	if err != nil {
		logFailure(r, err, "failed to build PEC preview")
		apperr.Write(w, err, "failed to build PEC preview")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, preview)
}

// logFailure logs store failures; client errors are not worth an entry.
func logFailure(r *http.Request, err error, msg string) {
	var qe *QueryExecutionError
	if !errors.As(err, &qe) {
		return
	}
	logger.WithRequest(r.Header.Get("X-Request-ID")).WithError(err).Error(msg)
}
