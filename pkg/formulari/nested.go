package formulari

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// FilePaths references the uploaded documents of a formulario. A nil field
// means that document type was never uploaded.
type FilePaths struct {
	FileInput       *string `json:"file_input"`
	Formulario      *string `json:"formulario"`
	BuonoIntervento *string `json:"buono_intervento"`
	Scontrino       *string `json:"scontrino"`
}

func (p *FilePaths) get(kind DocumentKind) *string {
	if p == nil {
		return nil
	}
	switch kind {
	case DocFileInput:
		return p.FileInput
	case DocFormulario:
		return p.Formulario
	case DocBuonoIntervento:
		return p.BuonoIntervento
	case DocScontrino:
		return p.Scontrino
	}
	return nil
}

// DatiFormulario holds the parsed contents of the paper document.
type DatiFormulario struct {
	Trasporto              map[string]interface{} `json:"trasporto,omitempty"`
	DestinazioneInfo       map[string]interface{} `json:"destinazione_info,omitempty"`
	CaratteristicheRifiuto map[string]interface{} `json:"caratteristiche_rifiuto,omitempty"`
	Quantita               *Quantity              `json:"quantita,omitempty"`
	Extra                  map[string]interface{} `json:"-"`
}

// Destinazione returns the destination sub-object. Older documents store it
// under destinatario_info.
func (d *DatiFormulario) Destinazione() map[string]interface{} {
	if d == nil {
		return nil
	}
	if d.DestinazioneInfo != nil {
		return d.DestinazioneInfo
	}
	if legacy, ok := d.Extra["destinatario_info"].(map[string]interface{}); ok {
		return legacy
	}
	return nil
}

func (d *DatiFormulario) UnmarshalJSON(data []byte) error {
	type plain DatiFormulario
	var p plain
	extra, err := unmarshalWithExtra(data, &p)
	if err != nil {
		return err
	}
	*d = DatiFormulario(p)
	d.Extra = extra
	return nil
}

func (d DatiFormulario) MarshalJSON() ([]byte, error) {
	type plain DatiFormulario
	return marshalWithExtra(plain(d), d.Extra)
}

// DatiAppuntamento is the scheduling metadata attached by the appointment
// system.
type DatiAppuntamento struct {
	IDTrasportatore *FlexString            `json:"idTrasportatore,omitempty"`
	IDProduttore    *FlexString            `json:"idProduttore,omitempty"`
	Extra           map[string]interface{} `json:"-"`
}

func (d *DatiAppuntamento) UnmarshalJSON(data []byte) error {
	type plain DatiAppuntamento
	var p plain
	extra, err := unmarshalWithExtra(data, &p)
	if err != nil {
		return err
	}
	*d = DatiAppuntamento(p)
	d.Extra = extra
	return nil
}

func (d DatiAppuntamento) MarshalJSON() ([]byte, error) {
	type plain DatiAppuntamento
	return marshalWithExtra(plain(d), d.Extra)
}

// DatiInvioPEC configures the certified email sent for a formulario.
type DatiInvioPEC struct {
	PECDestinatario  string                 `json:"pec_destinatario,omitempty"`
	RiceveFormulario bool                   `json:"riceveFormulario"`
	RiceveScontrino  bool                   `json:"riceveScontrino"`
	Extra            map[string]interface{} `json:"-"`
}

func (d *DatiInvioPEC) UnmarshalJSON(data []byte) error {
	type plain DatiInvioPEC
	var p plain
	extra, err := unmarshalWithExtra(data, &p)
	if err != nil {
		return err
	}
	*d = DatiInvioPEC(p)
	d.Extra = extra
	return nil
}

func (d DatiInvioPEC) MarshalJSON() ([]byte, error) {
	type plain DatiInvioPEC
	return marshalWithExtra(plain(d), d.Extra)
}

// RisultatiInvioPEC is the outcome of the last PEC send attempt.
type RisultatiInvioPEC struct {
	StatusCode *int                   `json:"status_code,omitempty"`
	Extra      map[string]interface{} `json:"-"`
}

func (r *RisultatiInvioPEC) UnmarshalJSON(data []byte) error {
	var p struct {
		StatusCode json.RawMessage `json:"status_code"`
	}
	extra, err := unmarshalWithExtra(data, &p)
	if err != nil {
		return err
	}
	*r = RisultatiInvioPEC{Extra: extra}
	if code, ok := parseLooseInt(p.StatusCode); ok {
		r.StatusCode = &code
	}
	return nil
}

func (r RisultatiInvioPEC) MarshalJSON() ([]byte, error) {
	type plain RisultatiInvioPEC
	return marshalWithExtra(plain(r), r.Extra)
}

// FlexString accepts both JSON strings and numbers. Upstream systems are not
// consistent about how they encode identifiers.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

func (s *FlexString) String() string {
	if s == nil {
		return ""
	}
	return string(*s)
}

// Quantity is a weight that may be encoded as a number or a numeric string.
// Unparseable values decode to zero.
type Quantity float64

func (q *Quantity) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*q = Quantity(v)
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), 64)
		if err != nil {
			f = 0
		}
		*q = Quantity(f)
	default:
		*q = 0
	}
	return nil
}

func parseLooseInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// unmarshalWithExtra decodes data into target and returns the keys target
// does not declare.
func unmarshalWithExtra(data []byte, target interface{}) (map[string]interface{}, error) {
	if err := json.Unmarshal(data, target); err != nil {
		return nil, err
	}
	var all map[string]interface{}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, key := range jsonKeys(reflect.TypeOf(target).Elem()) {
		delete(all, key)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func marshalWithExtra(v interface{}, extra map[string]interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return b, err
	}
	var merged map[string]interface{}
	if err := json.Unmarshal(b, &merged); err != nil {
		return nil, err
	}
	for k, val := range extra {
		if _, declared := merged[k]; !declared {
			merged[k] = val
		}
	}
	return json.Marshal(merged)
}

func jsonKeys(t reflect.Type) []string {
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name := strings.Split(tag, ",")[0]
		if name == "" || name == "-" {
			continue
		}
		keys = append(keys, name)
	}
	return keys
}
