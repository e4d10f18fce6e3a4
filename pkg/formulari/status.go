package formulari

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gestione-formulari/dashboard/pkg/store"
)

type Status string

const (
	StatusInAttesa   Status = "in_attesa"
	StatusApprovato  Status = "approvato"
	StatusCompletato Status = "completato"
	// StatusRifiutato is only ever set by external systems and is never
	// derived.
	StatusRifiutato Status = "rifiutato"
)

// PECRule decides when a formulario counts as having had its PEC sent.
type PECRule string

const (
	// PECRulePresence treats any recorded send result as sent.
	PECRulePresence PECRule = "presence"
	// PECRuleStatusCode additionally requires the recorded status code to be
	// 200.
	PECRuleStatusCode PECRule = "status_code"
)

const pecSuccessCode = 200

func ParsePECRule(s string) (PECRule, error) {
	switch PECRule(strings.ToLower(strings.TrimSpace(s))) {
	case "", PECRulePresence:
		return PECRulePresence, nil
	case PECRuleStatusCode:
		return PECRuleStatusCode, nil
	}
	return "", fmt.Errorf("unknown PEC sent rule %q", s)
}

// Deriver computes display status. The same rule backs both the derived
// value and the predicates used to filter on it, so a row always matches
// the status filter for the badge it shows.
type Deriver struct {
	Rule PECRule
}

func NewDeriver(rule PECRule) Deriver {
	if rule == "" {
		rule = PECRulePresence
	}
	return Deriver{Rule: rule}
}

// DeriveStatus applies the default presence rule.
func DeriveStatus(rec Formulario) Status {
	return NewDeriver(PECRulePresence).Status(rec)
}

func (d Deriver) PECSent(rec Formulario) bool {
	if rec.RisultatiInvioPEC == nil {
		return false
	}
	if d.Rule == PECRuleStatusCode {
		return rec.RisultatiInvioPEC.StatusCode != nil && *rec.RisultatiInvioPEC.StatusCode == pecSuccessCode
	}
	return true
}

func (d Deriver) Status(rec Formulario) Status {
	switch {
	case d.PECSent(rec):
		return StatusCompletato
	case rec.DataMovimento != nil:
		return StatusApprovato
	default:
		return StatusInAttesa
	}
}

func (d Deriver) statusCodeField() store.Field {
	return store.JSONPath(ColRisultatiInvioPEC, "status_code")
}

// SentCond matches exactly the records PECSent reports as sent.
func (d Deriver) SentCond() store.Cond {
	if d.Rule == PECRuleStatusCode {
		return store.Eq(d.statusCodeField(), strconv.Itoa(pecSuccessCode))
	}
	return store.NotNull(store.Col(ColRisultatiInvioPEC))
}

// NotSentCond is the complement of SentCond.
func (d Deriver) NotSentCond() store.Cond {
	if d.Rule == PECRuleStatusCode {
		return store.Neq(d.statusCodeField(), strconv.Itoa(pecSuccessCode))
	}
	return store.IsNull(store.Col(ColRisultatiInvioPEC))
}

// StatusCond returns the predicate selecting records that derive to s.
func (d Deriver) StatusCond(s Status) (store.Cond, bool) {
	switch s {
	case StatusCompletato:
		return d.SentCond(), true
	case StatusApprovato:
		return store.And(d.NotSentCond(), store.NotNull(store.Col(ColDataMovimento))), true
	case StatusInAttesa:
		return store.And(d.NotSentCond(), store.IsNull(store.Col(ColDataMovimento))), true
	}
	return store.Cond{}, false
}
