// Package dashboard computes the summary statistics shown on the dashboard
// landing page. Results are cached until an action changes the records.
package dashboard

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gestione-formulari/dashboard/pkg/common/apperr"
	"github.com/gestione-formulari/dashboard/pkg/common/logger"
	"github.com/gestione-formulari/dashboard/pkg/formulari"
	"github.com/gestione-formulari/dashboard/pkg/observability/metrics"
	"github.com/gestione-formulari/dashboard/pkg/store"
)

const (
	DefaultTopLimit      = 15
	maxTopLimit          = 100
	DefaultEmissionsDays = 60
	maxEmissionsDays     = 366
)

// entityColumns lists the party columns that can be ranked.
var entityColumns = map[string]string{
	"produttore":    formulari.ColProduttore,
	"trasportatore": formulari.ColTrasportatore,
	"destinatario":  formulari.ColDestinatario,
	"intermediario": formulari.ColIntermediario,
}

type Overview struct {
	Total                  int64   `json:"total"`
	WithAppuntamento       int64   `json:"with_appuntamento"`
	WithoutAppuntamento    int64   `json:"without_appuntamento"`
	WithAppuntamentoPct    float64 `json:"with_appuntamento_pct"`
	WithoutAppuntamentoPct float64 `json:"without_appuntamento_pct"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type Emissions struct {
	From    string       `json:"from"`
	To      string       `json:"to"`
	Days    []DailyCount `json:"days"`
	Total   int64        `json:"total"`
	Average float64      `json:"average"`
}

type Service struct {
	store     store.Store[formulari.Formulario]
	decorator formulari.Decorator
	cache     Cache
	now       func() time.Time
}

// NewService builds the statistics service. cache may be nil to disable
// caching.
func NewService(st store.Store[formulari.Formulario], decorator formulari.Decorator, cache Cache) *Service {
	return &Service{store: st, decorator: decorator, cache: cache, now: time.Now}
}

// Invalidate drops cached statistics. It is safe to call without a cache.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}

func (s *Service) Overview(ctx context.Context) (Overview, error) {
	return cached(ctx, s, cacheKey("overview"), func() (Overview, error) {
		total, err := s.store.Count(ctx, nil)
		if err != nil {
			return Overview{}, fmt.Errorf("count formulari: %w", err)
		}
		with, err := s.store.Count(ctx, []store.Cond{store.NotNull(store.Col(formulari.ColIDAppuntamento))})
		if err != nil {
			return Overview{}, fmt.Errorf("count scheduled formulari: %w", err)
		}
		out := Overview{
			Total:               total,
			WithAppuntamento:    with,
			WithoutAppuntamento: total - with,
		}
		if total > 0 {
			out.WithAppuntamentoPct = round1(float64(with) * 100 / float64(total))
			out.WithoutAppuntamentoPct = round1(float64(total-with) * 100 / float64(total))
		}
		return out, nil
	})
}

// Monthly lists the records moved during m, most recent movement first.
func (s *Service) Monthly(ctx context.Context, m formulari.Month) ([]formulari.View, error) {
	return cached(ctx, s, cacheKey("monthly", m.String()), func() ([]formulari.View, error) {
		recs, err := s.store.Find(ctx, store.Query{
			Where: []store.Cond{formulari.MonthCond(m)},
			Order: []store.Order{
				{Field: store.Col(formulari.ColDataMovimento), Desc: true},
				{Field: store.Col(formulari.ColID), Desc: true},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("list formulari for %s: %w", m, err)
		}
		return s.decorator.Views(recs), nil
	})
}

// Top ranks the most frequent names in one party column. Null and empty
// names are ignored.
func (s *Service) Top(ctx context.Context, entity string, limit int) ([]store.Group, error) {
	column, ok := entityColumns[entity]
	if !ok {
		return nil, apperr.Validation("invalid entity %q: must be one of produttore, trasportatore, destinatario, intermediario", entity)
	}
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}

	return cached(ctx, s, cacheKey("top", entity, strconv.Itoa(limit)), func() ([]store.Group, error) {
		f := store.Col(column)
		groups, err := s.store.GroupCount(ctx, f, []store.Cond{store.Neq(f, "")}, limit)
		if err != nil {
			return nil, fmt.Errorf("rank %s: %w", entity, err)
		}
		if groups == nil {
			groups = []store.Group{}
		}
		return groups, nil
	})
}

// Emissions counts issued documents per day over the last days days,
// today included. Days without documents are reported as zero.
func (s *Service) Emissions(ctx context.Context, days int) (Emissions, error) {
	if days <= 0 {
		days = DefaultEmissionsDays
	}
	if days > maxEmissionsDays {
		return Emissions{}, apperr.Validation("days must be at most %d", maxEmissionsDays)
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := today.AddDate(0, 0, -(days - 1))
	key := cacheKey("emissions", today.Format("2006-01-02"), strconv.Itoa(days))

	return cached(ctx, s, key, func() (Emissions, error) {
		emissione := store.Col(formulari.ColDataEmissione)
		recs, err := s.store.Find(ctx, store.Query{
			Where: []store.Cond{
				store.Gte(emissione, from),
				store.Lt(emissione, today.AddDate(0, 0, 1)),
			},
		})
		if err != nil {
			return Emissions{}, fmt.Errorf("load emissions: %w", err)
		}

		counts := make(map[string]int64, days)
		for _, rec := range recs {
			if rec.DataEmissione != nil {
				counts[rec.DataEmissione.UTC().Format("2006-01-02")]++
			}
		}

		out := Emissions{
			From: from.Format("2006-01-02"),
			To:   today.Format("2006-01-02"),
			Days: make([]DailyCount, 0, days),
		}
		for d := from; !d.After(today); d = d.AddDate(0, 0, 1) {
			date := d.Format("2006-01-02")
			out.Days = append(out.Days, DailyCount{Date: date, Count: counts[date]})
			out.Total += counts[date]
		}
		out.Average = round1(float64(out.Total) / float64(len(out.Days)))
		return out, nil
	})
}

// cached serves key from the cache or computes and stores it. Cache failures
// only cost a recomputation.
func cached[T any](ctx context.Context, s *Service, key string, compute func() (T, error)) (T, error) {
	if s.cache != nil {
		var hit T
		ok, err := s.cache.Get(ctx, key, &hit)
		if err != nil {
			logger.FromContext(ctx).WithError(err).WithField("key", key).Warn("Statistics cache read failed")
		}
		if ok && err == nil {
			metrics.ObserveStatsCache(true)
			return hit, nil
		}
	}
	metrics.ObserveStatsCache(false)

	v, err := compute()
	if err != nil {
		return v, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, v); err != nil {
			logger.FromContext(ctx).WithError(err).WithField("key", key).Warn("Statistics cache write failed")
		}
	}
	return v, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
