package formulari

import (
	"fmt"
	"time"

	"github.com/gestione-formulari/dashboard/pkg/store"
)

var fixtureBase = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

func intp(i int) *int { return &i }

func dayp(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func flex(s string) *FlexString {
	v := FlexString(s)
	return &v
}

func newRecord(id int64, opts ...func(*Formulario)) Formulario {
	rec := Formulario{
		ID:        id,
		UID:       fmt.Sprintf("uid-%d", id),
		CreatedAt: fixtureBase.Add(time.Duration(id) * time.Hour),
	}
	for _, opt := range opts {
		opt(&rec)
	}
	return rec
}

func withMovimento(t *time.Time) func(*Formulario) {
	return func(r *Formulario) { r.DataMovimento = t }
}

func withPEC(code *int) func(*Formulario) {
	return func(r *Formulario) { r.RisultatiInvioPEC = &RisultatiInvioPEC{StatusCode: code} }
}

func withFiles(p FilePaths) func(*Formulario) {
	return func(r *Formulario) { r.FilePaths = &p }
}

func withParties(produttore, trasportatore string) func(*Formulario) {
	return func(r *Formulario) {
		if produttore != "" {
			r.Produttore = strp(produttore)
		}
		if trasportatore != "" {
			r.Trasportatore = strp(trasportatore)
		}
	}
}

func withAppuntamento(trasportatore, produttore string) func(*Formulario) {
	return func(r *Formulario) {
		d := &DatiAppuntamento{}
		if trasportatore != "" {
			d.IDTrasportatore = flex(trasportatore)
		}
		if produttore != "" {
			d.IDProduttore = flex(produttore)
		}
		r.DatiAppuntamento = d
	}
}

func newTestService(rule PECRule, rows ...Formulario) *Service {
	deriver := NewDeriver(rule)
	composer := NewComposer(ComposerOptions{Deriver: deriver, OperatorID: "70577"})
	return NewService(
		store.NewMemory(rows...),
		composer,
		NewDecorator(deriver, "https://files.example.com/"),
		PageLimits{DefaultSize: 15, MaxSize: 100},
	)
}

func defaultRequest() FilterRequest {
	return FilterRequest{Page: 1, PageSize: 15, SortBy: ColCreatedAt, SortDesc: true}
}

func uidsOf(views []View) map[string]bool {
	out := make(map[string]bool, len(views))
	for _, v := range views {
		out[v.UID] = true
	}
	return out
}
