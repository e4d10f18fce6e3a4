package formulari

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestViewDecoration(t *testing.T) {
	d := NewDecorator(NewDeriver(PECRulePresence), "https://files.example.com/bucket/")
	qty := Quantity(12.5)
	rec := newRecord(7,
		withMovimento(dayp(2024, 4, 2)),
		withFiles(FilePaths{
			Formulario: strp("2024/04/fir.pdf"),
			Scontrino:  strp("https://cdn.example.com/s.jpg"),
		}),
		func(r *Formulario) {
			r.DataEmissione = dayp(2024, 4, 1)
			r.DatiFormulario = &DatiFormulario{Quantita: &qty}
		},
	)

	v := d.View(rec)
	if v.Stato != StatusApprovato {
		t.Fatalf("unexpected stato %s", v.Stato)
	}
	if v.Codice != "FIR-7" {
		t.Fatalf("codice should fall back to the id, got %s", v.Codice)
	}
	if !v.Data.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("data should be the issue date, got %v", v.Data)
	}
	if v.Quantita != 12.5 {
		t.Fatalf("unexpected quantita %v", v.Quantita)
	}
	if got := *v.FilePaths.Formulario; got != "https://files.example.com/bucket/2024/04/fir.pdf" {
		t.Fatalf("relative path not resolved: %s", got)
	}
	if got := *v.FilePaths.Scontrino; got != "https://cdn.example.com/s.jpg" {
		t.Fatalf("absolute URL must be kept: %s", got)
	}
	if v.FilePaths.FileInput != nil || v.FilePaths.BuonoIntervento != nil {
		t.Fatal("missing documents must stay null")
	}
	if *rec.FilePaths.Formulario != "2024/04/fir.pdf" {
		t.Fatal("decoration must not mutate the record")
	}

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(out)
	for _, want := range []string{`"stato":"approvato"`, `"codice":"FIR-7"`, `"file_input":null`, `"uid":"uid-7"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in %s", want, body)
		}
	}
}

func TestViewFallbacks(t *testing.T) {
	d := NewDecorator(NewDeriver(PECRulePresence), "")
	rec := newRecord(3, func(r *Formulario) { r.NumeroFir = strp("XRR 123456/24") })
	v := d.View(rec)
	if v.Codice != "XRR 123456/24" {
		t.Fatalf("unexpected codice %s", v.Codice)
	}
	if !v.Data.Equal(rec.CreatedAt) {
		t.Fatalf("data should fall back to created_at, got %v", v.Data)
	}
	if v.FilePaths != nil || v.Quantita != 0 {
		t.Fatalf("unexpected decoration %+v", v)
	}
}

func TestResolveFilePathsDropsBlankPaths(t *testing.T) {
	d := NewDecorator(NewDeriver(PECRulePresence), "https://files.example.com/bucket/")
	got := d.ResolveFilePaths(&FilePaths{
		FileInput:  strp(""),
		Formulario: strp("  "),
		Scontrino:  strp("2024/05/s.jpg"),
	})
	if got.FileInput != nil || got.Formulario != nil || got.BuonoIntervento != nil {
		t.Fatalf("blank paths should resolve to nil, got %+v", got)
	}
	if got.Scontrino == nil || *got.Scontrino != "https://files.example.com/bucket/2024/05/s.jpg" {
		t.Fatalf("unexpected scontrino %v", got.Scontrino)
	}
}
