package formulari

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gestione-formulari/dashboard/pkg/store"
)

// Column names of the formulari table.
const (
	ColID                      = "id"
	ColUID                     = "uid"
	ColCreatedAt               = "created_at"
	ColNumeroFir               = "numeroFir"
	ColProduttore              = "produttore"
	ColUnitaLocaleProduttore   = "unita_locale_produttore"
	ColTrasportatore           = "trasportatore"
	ColDestinatario            = "destinatario"
	ColUnitaLocaleDestinatario = "unita_locale_destinatario"
	ColIntermediario           = "intermediario"
	ColIDAppuntamento          = "id_appuntamento"
	ColDataEmissione           = "data_emissione"
	ColDataMovimento           = "data_movimento"
	ColDatiFormulario          = "dati_formulario"
	ColDatiAppuntamento        = "dati_appuntamento"
	ColDatiInvioPEC            = "dati_invio_pec"
	ColRisultatiInvioPEC       = "risultati_invio_pec"
	ColFilePaths               = "file_paths"
)

// NotApplicable is the sentinel some producers write into party fields in
// place of leaving them empty.
const NotApplicable = "non presente"

// DocumentKind is one of the document types a formulario may carry.
type DocumentKind string

const (
	DocFileInput       DocumentKind = "file_input"
	DocFormulario      DocumentKind = "formulario"
	DocBuonoIntervento DocumentKind = "buono_intervento"
	DocScontrino       DocumentKind = "scontrino"
)

var documentKinds = []DocumentKind{DocFileInput, DocFormulario, DocBuonoIntervento, DocScontrino}

func ParseDocumentKind(s string) (DocumentKind, bool) {
	for _, k := range documentKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Formulario is one waste-transport document as read from the store.
type Formulario struct {
	ID                      int64              `json:"id"`
	UID                     string             `json:"uid"`
	CreatedAt               time.Time          `json:"created_at"`
	NumeroFir               *string            `json:"numeroFir"`
	Produttore              *string            `json:"produttore"`
	UnitaLocaleProduttore   *string            `json:"unita_locale_produttore"`
	Trasportatore           *string            `json:"trasportatore"`
	Destinatario            *string            `json:"destinatario"`
	UnitaLocaleDestinatario *string            `json:"unita_locale_destinatario"`
	Intermediario           *string            `json:"intermediario"`
	IDAppuntamento          *string            `json:"id_appuntamento"`
	DataEmissione           *time.Time         `json:"data_emissione"`
	DataMovimento           *time.Time         `json:"data_movimento"`
	DatiFormulario          *DatiFormulario    `json:"dati_formulario"`
	DatiAppuntamento        *DatiAppuntamento  `json:"dati_appuntamento"`
	DatiInvioPEC            *DatiInvioPEC      `json:"dati_invio_pec"`
	RisultatiInvioPEC       *RisultatiInvioPEC `json:"risultati_invio_pec"`
	FilePaths               *FilePaths         `json:"file_paths"`
}

var partyColumns = map[string]bool{
	ColProduttore:              true,
	ColUnitaLocaleProduttore:   true,
	ColTrasportatore:           true,
	ColDestinatario:            true,
	ColUnitaLocaleDestinatario: true,
	ColIntermediario:           true,
}

func isPartyColumn(column string) bool { return partyColumns[column] }

// Normalize folds the "non presente" sentinel and blank strings in the party
// fields into nil.
func (f Formulario) Normalize() Formulario {
	for _, p := range []**string{
		&f.Produttore,
		&f.UnitaLocaleProduttore,
		&f.Trasportatore,
		&f.Destinatario,
		&f.UnitaLocaleDestinatario,
		&f.Intermediario,
	} {
		*p = normalizeParty(*p)
	}
	return f
}

func normalizeParty(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" || strings.EqualFold(trimmed, NotApplicable) {
		return nil
	}
	return v
}

// Lookup resolves a column or JSON path the way Postgres would read it:
// JSON path values come back as text.
func (f Formulario) Lookup(field store.Field) (interface{}, bool) {
	if field.IsJSON() {
		return f.lookupJSON(field)
	}
	switch field.Column {
	case ColID:
		return f.ID, true
	case ColUID:
		return f.UID, true
	case ColCreatedAt:
		return f.CreatedAt, true
	case ColNumeroFir:
		return deref(f.NumeroFir)
	case ColProduttore:
		return deref(normalizeParty(f.Produttore))
	case ColUnitaLocaleProduttore:
		return deref(normalizeParty(f.UnitaLocaleProduttore))
	case ColTrasportatore:
		return deref(normalizeParty(f.Trasportatore))
	case ColDestinatario:
		return deref(normalizeParty(f.Destinatario))
	case ColUnitaLocaleDestinatario:
		return deref(normalizeParty(f.UnitaLocaleDestinatario))
	case ColIntermediario:
		return deref(normalizeParty(f.Intermediario))
	case ColIDAppuntamento:
		return deref(f.IDAppuntamento)
	case ColDataEmissione:
		return derefTime(f.DataEmissione)
	case ColDataMovimento:
		return derefTime(f.DataMovimento)
	case ColDatiFormulario:
		return f.DatiFormulario, f.DatiFormulario != nil
	case ColDatiAppuntamento:
		return f.DatiAppuntamento, f.DatiAppuntamento != nil
	case ColDatiInvioPEC:
		return f.DatiInvioPEC, f.DatiInvioPEC != nil
	case ColRisultatiInvioPEC:
		return f.RisultatiInvioPEC, f.RisultatiInvioPEC != nil
	case ColFilePaths:
		return f.FilePaths, f.FilePaths != nil
	}
	return nil, false
}

func (f Formulario) lookupJSON(field store.Field) (interface{}, bool) {
	col, ok := f.Lookup(store.Col(field.Column))
	if !ok {
		return nil, false
	}
	raw, err := json.Marshal(col)
	if err != nil {
		return nil, false
	}
	var node interface{}
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, false
	}
	for _, key := range field.Path {
		obj, ok := node.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if node, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return jsonText(node)
}

// jsonText renders a decoded JSON value as the ->> operator does.
func jsonText(v interface{}) (interface{}, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return string(b), true
}

func deref(s *string) (interface{}, bool) {
	if s == nil {
		return nil, false
	}
	return *s, true
}

func derefTime(t *time.Time) (interface{}, bool) {
	if t == nil {
		return nil, false
	}
	return *t, true
}
