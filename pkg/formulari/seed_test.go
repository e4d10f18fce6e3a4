package formulari

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	content := `[{
		"id": 7,
		"uid": "abc",
		"created_at": "2024-02-01T10:00:00Z",
		"produttore": "non presente",
		"data_movimento": "2024-02-03T00:00:00Z",
		"dati_appuntamento": {"idTrasportatore": 70577, "idProduttore": "12"},
		"risultati_invio_pec": {"status_code": "200"}
	}]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	recs, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected one record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Produttore != nil {
		t.Fatalf("placeholder party should be normalized away, got %q", *rec.Produttore)
	}
	if rec.DatiAppuntamento.IDTrasportatore.String() != "70577" {
		t.Fatalf("numeric id should decode as text, got %q", rec.DatiAppuntamento.IDTrasportatore.String())
	}
	if NewDeriver(PECRuleStatusCode).Status(rec) != StatusCompletato {
		t.Fatal("string status code should count as sent")
	}

	if _, err := LoadSeed(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("missing file should fail")
	}
}
