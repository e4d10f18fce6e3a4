package support

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gestione-formulari/dashboard/pkg/common/apperr"
	"github.com/gestione-formulari/dashboard/pkg/common/logger"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/support/tickets", h.handleCreate).Methods(http.MethodPost)
	router.HandleFunc("/support/tickets", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/support/tickets/{id:[0-9]+}/resolve", h.handleResolve).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.FromContext(r.Context()).WithError(err).Warn("invalid support ticket payload")
		apperr.Write(w, apperr.Validation("invalid request body"), "")
		return
	}

	t, err := h.service.Create(r.Context(), req)
	if err != nil {
		if !apperr.IsValidation(err) {
			logger.FromContext(r.Context()).WithError(err).Error("failed to create support ticket")
		}
		apperr.Write(w, err, "failed to create support ticket")
		return
	}
	apperr.WriteJSON(w, http.StatusCreated, t)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.service.List(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Error("failed to list support tickets")
		apperr.Write(w, err, "failed to list support tickets")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, tickets)
}

func (h *HTTPHandler) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		apperr.Write(w, apperr.Validation("invalid ticket id"), "")
		return
	}

	t, err := h.service.Resolve(r.Context(), id)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			logger.FromContext(r.Context()).WithError(err).Error("failed to resolve support ticket")
		}
		apperr.Write(w, err, "failed to resolve support ticket")
		return
	}
	apperr.WriteJSON(w, http.StatusOK, t)
}
