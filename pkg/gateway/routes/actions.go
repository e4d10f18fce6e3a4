package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gestione-formulari/dashboard/pkg/actions"
	"github.com/gestione-formulari/dashboard/pkg/common/apperr"
	"github.com/gestione-formulari/dashboard/pkg/common/logger"
	"github.com/gestione-formulari/dashboard/pkg/common/models"
	"github.com/gorilla/mux"
)

const maxFormMemory = 1 << 20

// ActionProxy exposes the dashboard action endpoints and forwards them to the
// external services through an actions.Service.
type ActionProxy struct {
	Service        *actions.Service
	MaxRequestBody int64
}

func RegisterActionRoutes(router *mux.Router, proxy *ActionProxy) {
	if proxy == nil || proxy.Service == nil {
		panic("action proxy requires a service")
	}

	router.HandleFunc("/aggiorna-formulario", proxy.handleUpdate).Methods(http.MethodPost)
	router.HandleFunc("/delete-formulario", proxy.handleDelete).Methods(http.MethodPost)
	router.HandleFunc("/send-pec", proxy.handleSendPEC).Methods(http.MethodPost)
}

func (p *ActionProxy) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if p.MaxRequestBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, p.MaxRequestBody)
	}
	if err := parseForm(r); err != nil {
		apperr.Write(w, apperr.Validation("invalid form body"), "")
		return
	}

	res, err := p.Service.Update(r.Context(), actions.UpdateRequest{
		UID:             r.FormValue("uid"),
		NewFir:          r.FormValue("new_fir"),
		NewAppuntamento: r.FormValue("new_appuntamento"),
	})
	if err != nil {
		logAction(r, err, "Failed to update formulario")
		apperr.Write(w, err, "Failed to update formulario")
		return
	}
	apperr.WriteJSON(w, res.Status, res.Body)
}

func (p *ActionProxy) handleDelete(w http.ResponseWriter, r *http.Request) {
	uids, err := p.decodeUIDs(w, r)
	if err != nil {
		apperr.Write(w, err, "")
		return
	}

	res, err := p.Service.Delete(r.Context(), uids)
	if err != nil {
		logAction(r, err, "Failed to delete formulari")
		// Upstream rejections keep the historical 500 contract.
		if ue, ok := apperr.AsUpstream(err); ok {
			apperr.WriteJSON(w, http.StatusInternalServerError, models.ErrorResponse{
				Error:   "Failed to delete formulari",
				Details: ue.Detail,
			})
			return
		}
		apperr.Write(w, err, "Failed to delete formulari")
		return
	}
	apperr.WriteJSON(w, res.Status, res.Body)
}

func (p *ActionProxy) handleSendPEC(w http.ResponseWriter, r *http.Request) {
	uids, err := p.decodeUIDs(w, r)
	if err != nil {
		apperr.Write(w, err, "")
		return
	}

	res, err := p.Service.SendPEC(r.Context(), uids)
	if err != nil {
		logAction(r, err, "Failed to send PEC")
		apperr.Write(w, err, "Failed to send PEC")
		return
	}
	apperr.WriteJSON(w, res.Status, res.Body)
}

// decodeUIDs reads a {"uid_array": [...]} body. A missing or non-array
// uid_array is a validation error; contents are checked by the service.
func (p *ActionProxy) decodeUIDs(w http.ResponseWriter, r *http.Request) ([]string, error) {
	body := r.Body
	if p.MaxRequestBody > 0 {
		body = http.MaxBytesReader(w, r.Body, p.MaxRequestBody)
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, apperr.Validation("invalid request body")
	}
	field, ok := raw["uid_array"]
	if !ok {
		return nil, apperr.Validation("uid_array is required")
	}
	var uids []string
	if err := json.Unmarshal(field, &uids); err != nil || uids == nil {
		return nil, apperr.Validation("uid_array must be an array of strings")
	}
	return uids, nil
}

func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxFormMemory)
	}
	return r.ParseForm()
}

func logAction(r *http.Request, err error, msg string) {
	if apperr.IsValidation(err) || apperr.IsConflict(err) {
		return
	}
	entry := logger.FromContext(r.Context()).WithError(err)
	var ue *apperr.UpstreamError
	if errors.As(err, &ue) {
		entry = entry.WithField("upstream_status", ue.Status)
	}
	entry.Error(msg)
}
