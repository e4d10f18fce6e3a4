// Package actions forwards record mutations to the back-office services that
// own them. Nothing here writes to the record store directly.
package actions

import (
	"strings"

	"github.com/gestione-formulari/dashboard/pkg/common/apperr"
)

type Kind string

const (
	KindUpdate  Kind = "update"
	KindDelete  Kind = "delete"
	KindSendPEC Kind = "send_pec"
)

// UpdateRequest changes the document number and/or the appointment of one
// formulario.
type UpdateRequest struct {
	UID             string
	NewFir          string
	NewAppuntamento string
}

func (r UpdateRequest) Normalized() UpdateRequest {
	return UpdateRequest{
		UID:             strings.TrimSpace(r.UID),
		NewFir:          strings.TrimSpace(r.NewFir),
		NewAppuntamento: strings.TrimSpace(r.NewAppuntamento),
	}
}

func (r UpdateRequest) Validate() error {
	if r.UID == "" {
		return apperr.Validation("uid is required")
	}
	if r.NewFir == "" && r.NewAppuntamento == "" {
		return apperr.Validation("at least one of new_fir or new_appuntamento is required")
	}
	return nil
}

// ValidateUIDs checks a uid_array payload and returns it trimmed and
// de-duplicated, preserving order.
func ValidateUIDs(uids []string) ([]string, error) {
	if len(uids) == 0 {
		return nil, apperr.Validation("uid_array must be a non-empty array")
	}
	seen := make(map[string]bool, len(uids))
	out := make([]string, 0, len(uids))
	for i, uid := range uids {
		uid = strings.TrimSpace(uid)
		if uid == "" {
			return nil, apperr.Validation("uid_array[%d] is empty", i)
		}
		if seen[uid] {
			continue
		}
		seen[uid] = true
		out = append(out, uid)
	}
	return out, nil
}
