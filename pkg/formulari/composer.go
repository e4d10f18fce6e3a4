package formulari

import (
	"fmt"

	"github.com/gestione-formulari/dashboard/pkg/store"
)

// QueryExecutionError wraps a failure of the record store while serving a
// composed query. It is never retried here.
type QueryExecutionError struct {
	Err error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// Composer turns a FilterRequest into store predicates.
type Composer struct {
	deriver    Deriver
	operatorID string
	dateColumn string
}

type ComposerOptions struct {
	Deriver Deriver
	// OperatorID identifies this operator in appointment metadata.
	OperatorID string
	// DateColumn is the column dateFrom/dateTo apply to.
	DateColumn string
}

func NewComposer(opts ComposerOptions) *Composer {
	if opts.DateColumn == "" {
		opts.DateColumn = ColDataMovimento
	}
	if opts.Deriver.Rule == "" {
		opts.Deriver = NewDeriver(PECRulePresence)
	}
	return &Composer{
		deriver:    opts.Deriver,
		operatorID: opts.OperatorID,
		dateColumn: opts.DateColumn,
	}
}

func (c *Composer) Deriver() Deriver {
	return c.deriver
}

// Conditions returns the AND-combined predicates for req, always in the same
// order: search, status, documents, PEC status, date range, da gestire,
// month.
func (c *Composer) Conditions(req FilterRequest) []store.Cond {
	var where []store.Cond

	if req.Search != "" {
		where = append(where, searchCond(req.Search, req.SearchColumn))
	}

	if req.Status != "" {
		if cond, ok := c.deriver.StatusCond(req.Status); ok {
			where = append(where, cond)
		}
	}

	if len(req.Documents) > 0 {
		docs := make([]store.Cond, 0, len(req.Documents))
		for _, kind := range req.Documents {
			docs = append(docs, store.NotNull(store.JSONPath(ColFilePaths, string(kind))))
		}
		where = append(where, store.And(docs...))
	}

	switch req.PECStatus {
	case PECInviata:
		where = append(where, c.deriver.SentCond())
	case PECNonInviata:
		where = append(where, c.deriver.NotSentCond())
	}

	if req.DateFrom != nil {
		where = append(where, store.Gte(store.Col(c.dateColumn), *req.DateFrom))
	}
	if req.DateTo != nil {
		// Inclusive end date: everything before the start of the next day.
		where = append(where, store.Lt(store.Col(c.dateColumn), req.DateTo.AddDate(0, 0, 1)))
	}

	if req.DaGestire {
		where = append(where, c.DaGestireCond())
	}

	if req.Month != nil {
		where = append(where, MonthCond(*req.Month))
	}

	return where
}

// DaGestireCond matches records where this operator is the carrier but not
// also the producer.
func (c *Composer) DaGestireCond() store.Cond {
	return store.And(
		store.Eq(store.JSONPath(ColDatiAppuntamento, "idTrasportatore"), c.operatorID),
		store.Neq(store.JSONPath(ColDatiAppuntamento, "idProduttore"), c.operatorID),
	)
}

// MonthCond restricts the movement date to the calendar month m.
func MonthCond(m Month) store.Cond {
	field := store.Col(ColDataMovimento)
	return store.And(
		store.Gte(field, m.Start()),
		store.Lt(field, m.LastDay().AddDate(0, 0, 1)),
	)
}

// Query composes the full windowed query for req.
func (c *Composer) Query(req FilterRequest) store.Query {
	sortBy := req.SortBy
	if !sortColumns[sortBy] {
		sortBy = defaultSortBy
	}
	order := []store.Order{{Field: store.Col(sortBy), Desc: req.SortDesc}}
	if sortBy != ColID {
		// Stable windows across pages when the sort key has duplicates.
		order = append(order, store.Order{Field: store.Col(ColID), Desc: req.SortDesc})
	}
	return store.Query{
		Where:  c.Conditions(req),
		Order:  order,
		Offset: req.Offset(),
		Limit:  req.PageSize,
	}
}

func searchCond(term, column string) store.Cond {
	if isSearchColumn(column) {
		return store.ILike(store.Col(column), term)
	}
	anyOf := make([]store.Cond, 0, len(SearchColumns))
	for _, col := range SearchColumns {
		anyOf = append(anyOf, store.ILike(store.Col(col), term))
	}
	return store.Or(anyOf...)
}

// TotalPages is ceil(total / pageSize), zero when there is nothing to show.
func TotalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
