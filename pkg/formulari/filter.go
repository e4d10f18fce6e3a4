package formulari

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gestione-formulari/dashboard/pkg/common/apperr"
)

type PECStatus string

const (
	PECInviata    PECStatus = "inviata"
	PECNonInviata PECStatus = "non_inviata"
)

// DaGestire is the only accepted value of daGestireStatus.
const DaGestire = "da_gestire"

// SearchColumns are the columns free-text search may be scoped to.
var SearchColumns = []string{ColNumeroFir, ColProduttore, ColTrasportatore, ColDestinatario, ColIntermediario}

var sortColumns = map[string]bool{
	ColID:                      true,
	ColUID:                     true,
	ColCreatedAt:               true,
	ColNumeroFir:               true,
	ColProduttore:              true,
	ColUnitaLocaleProduttore:   true,
	ColTrasportatore:           true,
	ColDestinatario:            true,
	ColUnitaLocaleDestinatario: true,
	ColIntermediario:           true,
	ColIDAppuntamento:          true,
	ColDataEmissione:           true,
	ColDataMovimento:           true,
}

const (
	defaultSortBy = ColCreatedAt
	dateLayout    = "2006-01-02"
	monthLayout   = "2006-01"
)

// Month is a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// Start is the first instant of the month in UTC.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// LastDay is the month's true last day; day 0 of the following month
// normalizes to it, leap years included.
func (m Month) LastDay() time.Time {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC)
}

func (m Month) String() string {
	return m.Start().Format(monthLayout)
}

func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, strings.TrimSpace(s))
	if err != nil {
		return Month{}, apperr.Validation("invalid month %q, expected YYYY-MM", s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// FilterRequest is one list request. The zero value of every filter field
// means no constraint from that dimension.
type FilterRequest struct {
	Page         int
	PageSize     int
	Search       string
	SearchColumn string
	Status       Status
	Documents    []DocumentKind
	PECStatus    PECStatus
	DateFrom     *time.Time
	DateTo       *time.Time
	DaGestire    bool
	Month        *Month
	SortBy       string
	SortDesc     bool
}

// PageLimits bounds the page size accepted from clients.
type PageLimits struct {
	DefaultSize int
	MaxSize     int
}

func (l PageLimits) clamp(size int) int {
	if size < 1 {
		size = l.DefaultSize
	}
	if size < 1 {
		size = 15
	}
	if l.MaxSize > 0 && size > l.MaxSize {
		size = l.MaxSize
	}
	return size
}

// Offset is the window start for the request's page.
func (r FilterRequest) Offset() int {
	if r.Page < 1 {
		return 0
	}
	return (r.Page - 1) * r.PageSize
}

// ParseFilterRequest reads a FilterRequest from URL query parameters. Unknown
// enum values and malformed dates are rejected; an unknown searchColumn or
// sortBy falls back to its default.
func ParseFilterRequest(q url.Values, limits PageLimits) (FilterRequest, error) {
	req := FilterRequest{
		Page:     1,
		PageSize: limits.clamp(0),
		SortBy:   defaultSortBy,
		SortDesc: true,
	}

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, apperr.Validation("invalid page %q", v)
		}
		if n > 1 {
			req.Page = n
		}
	}
	if v := q.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, apperr.Validation("invalid pageSize %q", v)
		}
		req.PageSize = limits.clamp(n)
	}
	if req.Page-1 > math.MaxInt/req.PageSize {
		return req, apperr.Validation("page %d out of range", req.Page)
	}

	req.Search = strings.TrimSpace(q.Get("search"))
	if col := q.Get("searchColumn"); isSearchColumn(col) {
		req.SearchColumn = col
	}

	if v := q.Get("status"); v != "" && v != "all" {
		switch s := Status(v); s {
		case StatusCompletato, StatusApprovato, StatusInAttesa:
			req.Status = s
		default:
			return req, apperr.Validation("invalid status %q", v)
		}
	}

	if v := q.Get("documents"); v != "" {
		seen := make(map[DocumentKind]bool)
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			kind, ok := ParseDocumentKind(part)
			if !ok {
				return req, apperr.Validation("invalid document type %q", part)
			}
			if !seen[kind] {
				seen[kind] = true
				req.Documents = append(req.Documents, kind)
			}
		}
	}

	if v := q.Get("pecStatus"); v != "" && v != "all" {
		switch p := PECStatus(v); p {
		case PECInviata, PECNonInviata:
			req.PECStatus = p
		default:
			return req, apperr.Validation("invalid pecStatus %q", v)
		}
	}

	var err error
	if req.DateFrom, err = parseDate("dateFrom", q.Get("dateFrom")); err != nil {
		return req, err
	}
	if req.DateTo, err = parseDate("dateTo", q.Get("dateTo")); err != nil {
		return req, err
	}

	if v := q.Get("daGestireStatus"); v != "" && v != "all" {
		if v != DaGestire {
			return req, apperr.Validation("invalid daGestireStatus %q", v)
		}
		req.DaGestire = true
	}

	if v := q.Get("month"); v != "" {
		m, err := ParseMonth(v)
		if err != nil {
			return req, err
		}
		req.Month = &m
	}

	if v := q.Get("sortBy"); sortColumns[v] {
		req.SortBy = v
	}
	if strings.EqualFold(q.Get("sortOrder"), "asc") {
		req.SortDesc = false
	}

	return req, nil
}

func isSearchColumn(col string) bool {
	for _, c := range SearchColumns {
		if c == col {
			return true
		}
	}
	return false
}

// parseDate accepts a plain date or an RFC 3339 timestamp and keeps only the
// calendar day.
func parseDate(name, v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, v); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &day, nil
	}
	return nil, apperr.Validation("invalid %s %q, expected YYYY-MM-DD", name, v)
}
