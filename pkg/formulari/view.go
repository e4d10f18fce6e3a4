package formulari

import (
	"fmt"
	"strings"
	"time"
)

// View is a Formulario as served to the dashboard.
type View struct {
	Formulario
	Stato     Status     `json:"stato"`
	Codice    string     `json:"codice"`
	Data      time.Time  `json:"data"`
	Quantita  float64    `json:"quantita"`
	FilePaths *FilePaths `json:"file_paths"`
}

// Page is one window of a filtered listing.
type Page struct {
	Data       []View `json:"data"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalPages int    `json:"totalPages"`
}

// Decorator builds views; it does no I/O.
type Decorator struct {
	deriver        Deriver
	storageBaseURL string
}

func NewDecorator(deriver Deriver, storageBaseURL string) Decorator {
	return Decorator{deriver: deriver, storageBaseURL: storageBaseURL}
}

func (d Decorator) View(rec Formulario) View {
	v := View{
		Formulario: rec,
		Stato:      d.deriver.Status(rec),
		Codice:     fmt.Sprintf("FIR-%d", rec.ID),
		Data:       rec.CreatedAt,
		FilePaths:  d.ResolveFilePaths(rec.FilePaths),
	}
	if rec.NumeroFir != nil && *rec.NumeroFir != "" {
		v.Codice = *rec.NumeroFir
	}
	if rec.DataEmissione != nil {
		v.Data = *rec.DataEmissione
	}
	if rec.DatiFormulario != nil && rec.DatiFormulario.Quantita != nil {
		v.Quantita = float64(*rec.DatiFormulario.Quantita)
	}
	return v
}

func (d Decorator) Views(recs []Formulario) []View {
	out := make([]View, 0, len(recs))
	for _, rec := range recs {
		out = append(out, d.View(rec))
	}
	return out
}

// ResolveFilePaths turns storage-relative paths into servable URLs. Nil and
// blank entries come back nil and already absolute URLs are kept.
func (d Decorator) ResolveFilePaths(p *FilePaths) *FilePaths {
	if p == nil {
		return nil
	}
	return &FilePaths{
		FileInput:       d.resolve(p.FileInput),
		Formulario:      d.resolve(p.Formulario),
		BuonoIntervento: d.resolve(p.BuonoIntervento),
		Scontrino:       d.resolve(p.Scontrino),
	}
}

func (d Decorator) resolve(path *string) *string {
	if path == nil || strings.TrimSpace(*path) == "" {
		return nil
	}
	if strings.HasPrefix(*path, "http://") || strings.HasPrefix(*path, "https://") {
		resolved := *path
		return &resolved
	}
	resolved := d.storageBaseURL + *path
	return &resolved
}
