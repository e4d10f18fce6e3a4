package formulari

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gestione-formulari/dashboard/pkg/common/apperr"
	"github.com/gestione-formulari/dashboard/pkg/common/config"
	"github.com/gestione-formulari/dashboard/pkg/common/logger"
	"github.com/gestione-formulari/dashboard/pkg/observability/metrics"
	"github.com/gestione-formulari/dashboard/pkg/store"
)

type Service struct {
	store     store.Store[Formulario]
	composer  *Composer
	decorator Decorator
	limits    PageLimits
}

func NewService(st store.Store[Formulario], composer *Composer, decorator Decorator, limits PageLimits) *Service {
	return &Service{store: st, composer: composer, decorator: decorator, limits: limits}
}

// NewServiceFromConfig wires a Service with the composer and decorator
// settings taken from cfg.
func NewServiceFromConfig(st store.Store[Formulario], cfg *config.Config) (*Service, error) {
	rule, err := ParsePECRule(cfg.PECSentRule)
	if err != nil {
		return nil, err
	}
	deriver := NewDeriver(rule)
	composer := NewComposer(ComposerOptions{
		Deriver:    deriver,
		OperatorID: cfg.OperatorID,
		DateColumn: cfg.DateFilterColumn,
	})
	limits := PageLimits{DefaultSize: cfg.DefaultPageSize, MaxSize: cfg.MaxPageSize}
	return NewService(st, composer, NewDecorator(deriver, cfg.StorageBaseURL), limits), nil
}

func (s *Service) Composer() *Composer {
	return s.composer
}

func (s *Service) Decorator() Decorator {
	return s.decorator
}

func (s *Service) Limits() PageLimits {
	return s.limits
}

// List runs the composed query for req: one count and one window over the
// same predicates.
func (s *Service) List(ctx context.Context, req FilterRequest) (Page, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	req.PageSize = s.limits.clamp(req.PageSize)
	q := s.composer.Query(req)

	total, err := s.store.Count(ctx, q.Where)
	if err != nil {
		metrics.ObserveQuery(err)
		return Page{}, &QueryExecutionError{Err: err}
	}

	rows, err := s.store.Find(ctx, q)
	if err != nil {
		metrics.ObserveQuery(err)
		return Page{}, &QueryExecutionError{Err: err}
	}
	metrics.ObserveQuery(nil)

	return Page{
		Data:       s.decorator.Views(rows),
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: TotalPages(total, req.PageSize),
	}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (View, error) {
	return s.findOne(ctx, store.Eq(store.Col(ColID), id), fmt.Sprintf("formulario %d", id))
}

func (s *Service) GetByUID(ctx context.Context, uid string) (View, error) {
	if strings.TrimSpace(uid) == "" {
		return View{}, apperr.Validation("uid is required")
	}
	return s.findOne(ctx, store.Eq(store.Col(ColUID), uid), fmt.Sprintf("formulario %s", uid))
}

func (s *Service) findOne(ctx context.Context, cond store.Cond, label string) (View, error) {
	rows, err := s.store.Find(ctx, store.Query{Where: []store.Cond{cond}, Limit: 1})
	if err != nil {
		return View{}, &QueryExecutionError{Err: err}
	}
	if len(rows) == 0 {
		return View{}, fmt.Errorf("%s: %w", label, apperr.ErrNotFound)
	}
	return s.decorator.View(rows[0]), nil
}

// PECPreview summarises what sending PEC for a selection would do.
type PECPreview struct {
	Count        int      `json:"count"`
	Recipients   []string `json:"recipients"`
	Documents    []string `json:"documents"`
	Unconfigured []string `json:"unconfigured_uids"`
	Missing      []string `json:"missing_uids"`
}

func (s *Service) PECPreview(ctx context.Context, uids []string) (PECPreview, error) {
	uids = dedupe(uids)
	if len(uids) == 0 {
		return PECPreview{}, apperr.Validation("uid_array must contain at least one uid")
	}

	match := make([]store.Cond, 0, len(uids))
	for _, uid := range uids {
		match = append(match, store.Eq(store.Col(ColUID), uid))
	}
	rows, err := s.store.Find(ctx, store.Query{Where: []store.Cond{store.Or(match...)}})
	if err != nil {
		return PECPreview{}, &QueryExecutionError{Err: err}
	}

	preview := PECPreview{
		Count:        len(rows),
		Recipients:   []string{},
		Documents:    []string{},
		Unconfigured: []string{},
		Missing:      []string{},
	}
	found := make(map[string]bool, len(rows))
	recipients := make(map[string]bool)
	var formulario, scontrino bool
	for _, rec := range rows {
		found[rec.UID] = true
		cfg := rec.DatiInvioPEC
		if cfg == nil || strings.TrimSpace(cfg.PECDestinatario) == "" {
			preview.Unconfigured = append(preview.Unconfigured, rec.UID)
			continue
		}
		recipients[strings.TrimSpace(cfg.PECDestinatario)] = true
		formulario = formulario || cfg.RiceveFormulario
		scontrino = scontrino || cfg.RiceveScontrino
	}
	for r := range recipients {
		preview.Recipients = append(preview.Recipients, r)
	}
	sort.Strings(preview.Recipients)
	if formulario {
		preview.Documents = append(preview.Documents, "Formulario")
	}
	if scontrino {
		preview.Documents = append(preview.Documents, "Scontrino")
	}
	for _, uid := range uids {
		if !found[uid] {
			preview.Missing = append(preview.Missing, uid)
		}
	}
	sort.Strings(preview.Unconfigured)

	if len(preview.Missing) > 0 {
		logger.Log.WithField("missing", len(preview.Missing)).Debug("PEC preview requested for unknown uids")
	}
	return preview, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
