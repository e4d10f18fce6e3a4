package formulari

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/gestione-formulari/dashboard/pkg/store"
)

func TestNestedStructsKeepUnknownKeys(t *testing.T) {
	raw := `{"idTrasportatore":"70577","idProduttore":"1","slot":{"from":"08:00"},"note":"cancello B"}`
	var d DatiAppuntamento
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.IDTrasportatore.String() != "70577" || d.IDProduttore.String() != "1" {
		t.Fatalf("unexpected ids: %v %v", d.IDTrasportatore, d.IDProduttore)
	}
	if d.Extra["note"] != "cancello B" {
		t.Fatalf("extra keys lost: %v", d.Extra)
	}

	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]interface{}
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal again: %v", err)
	}
	for _, key := range []string{"idTrasportatore", "idProduttore", "slot", "note"} {
		if _, ok := back[key]; !ok {
			t.Errorf("key %s dropped on round trip: %s", key, out)
		}
	}
}

func TestDatiFormularioQuantityAndLegacyDestination(t *testing.T) {
	var d DatiFormulario
	raw := `{"quantita":"1250,5","destinatario_info":{"citta":"Torino"},"trasporto":{"targa":"AB123CD"}}`
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Quantita == nil || float64(*d.Quantita) != 1250.5 {
		t.Fatalf("unexpected quantity %v", d.Quantita)
	}
	if d.Destinazione()["citta"] != "Torino" {
		t.Fatalf("legacy destination not found: %v", d.Destinazione())
	}
	out, _ := json.Marshal(d)
	if !strings.Contains(string(out), "destinatario_info") {
		t.Fatalf("legacy key should survive a round trip: %s", out)
	}
}

func TestRisultatiInvioPECStatusCodeEncodings(t *testing.T) {
	for raw, want := range map[string]int{`{"status_code":200}`: 200, `{"status_code":"200"}`: 200, `{"status_code":404,"message":"x"}`: 404} {
		var r RisultatiInvioPEC
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if r.StatusCode == nil || *r.StatusCode != want {
			t.Errorf("%s: got %v, want %d", raw, r.StatusCode, want)
		}
	}
	var r RisultatiInvioPEC
	if err := json.Unmarshal([]byte(`{"message":"queued"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.StatusCode != nil || r.Extra["message"] != "queued" {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestNormalizeFoldsNotApplicable(t *testing.T) {
	rec := Formulario{
		Produttore:    strp("Azienda Alpha"),
		Intermediario: strp(" Non Presente "),
		Destinatario:  strp(""),
	}.Normalize()
	if rec.Produttore == nil || *rec.Produttore != "Azienda Alpha" {
		t.Fatalf("real values must be kept, got %v", rec.Produttore)
	}
	if rec.Intermediario != nil || rec.Destinatario != nil {
		t.Fatalf("sentinel and blank should be nil: %v %v", rec.Intermediario, rec.Destinatario)
	}
}

func TestLookupJSONPathAsText(t *testing.T) {
	rec := newRecord(1, withPEC(intp(200)), withFiles(FilePaths{Scontrino: strp("s.jpg")}))
	if v, ok := rec.Lookup(store.JSONPath(ColRisultatiInvioPEC, "status_code")); !ok || v != "200" {
		t.Fatalf("status code lookup = %v, %v", v, ok)
	}
	if _, ok := rec.Lookup(store.JSONPath(ColFilePaths, string(DocFormulario))); ok {
		t.Fatal("null file path must look up as absent")
	}
	if v, ok := rec.Lookup(store.JSONPath(ColFilePaths, string(DocScontrino))); !ok || v != "s.jpg" {
		t.Fatalf("scontrino lookup = %v, %v", v, ok)
	}
}
