package formulari

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/gestione-formulari/dashboard/pkg/store"
)

func TestDocumentsFilterRequiresEveryType(t *testing.T) {
	svc := newTestService(PECRulePresence,
		newRecord(1, withFiles(FilePaths{Formulario: strp("a/formulario.pdf")})),
		newRecord(2, withFiles(FilePaths{Formulario: strp("b/formulario.pdf"), Scontrino: strp("b/scontrino.jpg")})),
		newRecord(3),
	)

	req := defaultRequest()
	req.Documents = []DocumentKind{DocFormulario, DocScontrino}
	page, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Data[0].UID != "uid-2" {
		t.Fatalf("expected only uid-2, got total=%d rows=%v", page.Total, uidsOf(page.Data))
	}
}

func TestDateToIsInclusive(t *testing.T) {
	endOfDay := time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC)
	svc := newTestService(PECRulePresence,
		newRecord(1, withMovimento(dayp(2024, 3, 15))),
		newRecord(2, withMovimento(&endOfDay)),
		newRecord(3, withMovimento(dayp(2024, 3, 16))),
		newRecord(4, withMovimento(dayp(2024, 3, 9))),
		newRecord(5),
	)

	req := defaultRequest()
	req.DateFrom = dayp(2024, 3, 10)
	req.DateTo = dayp(2024, 3, 15)
	page, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := uidsOf(page.Data)
	if len(got) != 2 || !got["uid-1"] || !got["uid-2"] {
		t.Fatalf("expected uid-1 and uid-2, got %v", got)
	}
}

func TestDateBoundsAreIndependent(t *testing.T) {
	svc := newTestService(PECRulePresence,
		newRecord(1, withMovimento(dayp(2023, 12, 31))),
		newRecord(2, withMovimento(dayp(2024, 6, 1))),
	)

	req := defaultRequest()
	req.DateFrom = dayp(2024, 1, 1)
	page, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Data[0].UID != "uid-2" {
		t.Fatalf("dateFrom alone should keep uid-2 only, got %v", uidsOf(page.Data))
	}
}

func TestMonthFilterHandlesLeapYear(t *testing.T) {
	svc := newTestService(PECRulePresence,
		newRecord(1, withMovimento(dayp(2024, 2, 29))),
		newRecord(2, withMovimento(dayp(2024, 3, 1))),
		newRecord(3, withMovimento(dayp(2024, 2, 1))),
		newRecord(4, withMovimento(dayp(2024, 1, 31))),
	)

	m, err := ParseMonth("2024-02")
	if err != nil {
		t.Fatalf("parse month: %v", err)
	}
	req := defaultRequest()
	req.Month = &m
	page, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := uidsOf(page.Data)
	if len(got) != 2 || !got["uid-1"] || !got["uid-3"] {
		t.Fatalf("expected February records only, got %v", got)
	}
}

func TestMonthLastDay(t *testing.T) {
	cases := map[string]int{
		"2024-02": 29,
		"2023-02": 28,
		"2024-04": 30,
		"2024-12": 31,
	}
	for in, want := range cases {
		m, err := ParseMonth(in)
		if err != nil {
			t.Fatalf("parse %s: %v", in, err)
		}
		if got := m.LastDay().Day(); got != want {
			t.Errorf("%s: last day %d, want %d", in, got, want)
		}
	}
}

func TestSearchScopedToColumn(t *testing.T) {
	svc := newTestService(PECRulePresence,
		newRecord(1, withParties("Azienda Alpha S.r.l.", "Trasporti Rossi")),
		newRecord(2, withParties("Beta Ecologia", "Alpha Trasporti")),
	)
	limits := svc.Limits()

	req, err := ParseFilterRequest(url.Values{"search": {"Alpha"}, "searchColumn": {"produttore"}}, limits)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	page, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Data[0].UID != "uid-1" {
		t.Fatalf("expected only uid-1, got %v", uidsOf(page.Data))
	}

	req, err = ParseFilterRequest(url.Values{"search": {"alpha"}, "searchColumn": {"not_a_column"}}, limits)
	if err != nil {
		t.Fatalf("unknown searchColumn should not be an error: %v", err)
	}
	page, err = svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("fallback search should match both records, got %v", uidsOf(page.Data))
	}
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	svc := newTestService(PECRulePresence,
		newRecord(1, func(r *Formulario) { r.NumeroFir = strp("ABC 100%") }),
		newRecord(2, func(r *Formulario) { r.NumeroFir = strp("ABC 1000") }),
	)
	req := defaultRequest()
	req.Search = "100%"
	req.SearchColumn = ColNumeroFir
	page, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Data[0].UID != "uid-1" {
		t.Fatalf("expected literal match on uid-1, got %v", uidsOf(page.Data))
	}
}

func TestDaGestireFilter(t *testing.T) {
	svc := newTestService(PECRulePresence,
		newRecord(1, withAppuntamento("70577", "99999")),
		newRecord(2, withAppuntamento("70577", "70577")),
		newRecord(3, withAppuntamento("12345", "99999")),
		newRecord(4, withAppuntamento("70577", "")),
		newRecord(5),
	)

	req := defaultRequest()
	req.DaGestire = true
	page, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := uidsOf(page.Data)
	if len(got) != 2 || !got["uid-1"] || !got["uid-4"] {
		t.Fatalf("expected uid-1 and uid-4, got %v", got)
	}
}

func TestNumericAppointmentIDsMatch(t *testing.T) {
	var d DatiAppuntamento
	if err := d.UnmarshalJSON([]byte(`{"idTrasportatore": 70577, "idProduttore": "1"}`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	svc := newTestService(PECRulePresence, newRecord(1, func(r *Formulario) { r.DatiAppuntamento = &d }))

	req := defaultRequest()
	req.DaGestire = true
	page, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("numeric carrier id should match, got total %d", page.Total)
	}
}

func TestPECStatusFilter(t *testing.T) {
	rows := []Formulario{
		newRecord(1, withPEC(intp(200))),
		newRecord(2, withPEC(intp(500))),
		newRecord(3, withPEC(nil)),
		newRecord(4),
	}
	cases := []struct {
		rule    PECRule
		status  PECStatus
		wantIDs []string
	}{
		{PECRulePresence, PECInviata, []string{"uid-1", "uid-2", "uid-3"}},
		{PECRulePresence, PECNonInviata, []string{"uid-4"}},
		{PECRuleStatusCode, PECInviata, []string{"uid-1"}},
		{PECRuleStatusCode, PECNonInviata, []string{"uid-2", "uid-3", "uid-4"}},
	}
	for _, tc := range cases {
		svc := newTestService(tc.rule, rows...)
		req := defaultRequest()
		req.PECStatus = tc.status
		page, err := svc.List(context.Background(), req)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		got := uidsOf(page.Data)
		if len(got) != len(tc.wantIDs) {
			t.Fatalf("%s/%s: got %v, want %v", tc.rule, tc.status, got, tc.wantIDs)
		}
		for _, id := range tc.wantIDs {
			if !got[id] {
				t.Fatalf("%s/%s: missing %s in %v", tc.rule, tc.status, id, got)
			}
		}
	}
}

func TestStatusFilterAgreesWithDerivedStatus(t *testing.T) {
	rows := []Formulario{
		newRecord(1),
		newRecord(2, withMovimento(dayp(2024, 5, 2))),
		newRecord(3, withPEC(intp(200))),
		newRecord(4, withPEC(intp(500)), withMovimento(dayp(2024, 5, 3))),
		newRecord(5, withPEC(nil)),
	}
	for _, rule := range []PECRule{PECRulePresence, PECRuleStatusCode} {
		svc := newTestService(rule, rows...)
		for _, status := range []Status{StatusInAttesa, StatusApprovato, StatusCompletato} {
			req := defaultRequest()
			req.Status = status
			page, err := svc.List(context.Background(), req)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			got := uidsOf(page.Data)
			for _, rec := range rows {
				derived := svc.Decorator().View(rec).Stato
				if got[rec.UID] != (derived == status) {
					t.Errorf("rule %s filter %s: %s derived %s, in result=%v", rule, status, rec.UID, derived, got[rec.UID])
				}
			}
			for _, v := range page.Data {
				if v.Stato != status {
					t.Errorf("rule %s filter %s returned row with stato %s", rule, status, v.Stato)
				}
			}
		}
	}
}

func TestAddingFiltersNeverIncreasesTotal(t *testing.T) {
	var rows []Formulario
	for i := int64(1); i <= 40; i++ {
		opts := []func(*Formulario){withParties("Produttore Alpha", "Trasporti")}
		if i%2 == 0 {
			opts = append(opts, withMovimento(dayp(2024, 2, int(i%28)+1)))
		}
		if i%3 == 0 {
			opts = append(opts, withFiles(FilePaths{Formulario: strp("f.pdf")}))
		}
		if i%4 == 0 {
			opts = append(opts, withAppuntamento("70577", "1"))
		}
		if i%5 == 0 {
			opts = append(opts, withPEC(intp(200)))
		}
		rows = append(rows, newRecord(i, opts...))
	}
	svc := newTestService(PECRulePresence, rows...)
	m := Month{Year: 2024, Month: time.February}

	steps := []func(*FilterRequest){
		func(r *FilterRequest) { r.Search = "alpha" },
		func(r *FilterRequest) { r.Status = StatusApprovato },
		func(r *FilterRequest) { r.Documents = []DocumentKind{DocFormulario} },
		func(r *FilterRequest) { r.PECStatus = PECNonInviata },
		func(r *FilterRequest) { r.DateFrom = dayp(2024, 2, 5) },
		func(r *FilterRequest) { r.DateTo = dayp(2024, 2, 25) },
		func(r *FilterRequest) { r.DaGestire = true },
		func(r *FilterRequest) { r.Month = &m },
	}

	req := defaultRequest()
	page, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	prev := page.Total
	for i, step := range steps {
		step(&req)
		page, err := svc.List(context.Background(), req)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if page.Total > prev {
			t.Fatalf("step %d increased total from %d to %d", i, prev, page.Total)
		}
		prev = page.Total
	}
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total    int64
		pageSize int
		want     int
	}{
		{0, 15, 0},
		{1, 15, 1},
		{15, 15, 1},
		{16, 15, 2},
		{45, 15, 3},
	}
	for _, tc := range cases {
		if got := TotalPages(tc.total, tc.pageSize); got != tc.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tc.total, tc.pageSize, got, tc.want)
		}
	}
}

func TestListWindowAndOrder(t *testing.T) {
	var rows []Formulario
	for i := int64(1); i <= 20; i++ {
		rows = append(rows, newRecord(i))
	}
	svc := newTestService(PECRulePresence, rows...)

	req := defaultRequest()
	req.Page = 2
	page, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 20 || page.TotalPages != 2 || len(page.Data) != 5 {
		t.Fatalf("unexpected page: total=%d pages=%d rows=%d", page.Total, page.TotalPages, len(page.Data))
	}
	// created_at desc: page 2 holds the five oldest records.
	if page.Data[0].ID != 5 || page.Data[4].ID != 1 {
		t.Fatalf("unexpected window order: first=%d last=%d", page.Data[0].ID, page.Data[4].ID)
	}

	req.Page = 3
	page, err = svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Data) != 0 || page.Total != 20 {
		t.Fatalf("page past the end should be empty with the full total, got %d rows total %d", len(page.Data), page.Total)
	}
}

func TestEmptyResultHasZeroPages(t *testing.T) {
	svc := newTestService(PECRulePresence)
	page, err := svc.List(context.Background(), defaultRequest())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 0 || page.TotalPages != 0 || page.Data == nil {
		t.Fatalf("unexpected empty page: %+v", page)
	}
}

func TestConditionsKeepFixedOrder(t *testing.T) {
	c := NewComposer(ComposerOptions{OperatorID: "70577"})
	m := Month{Year: 2024, Month: time.May}
	req := FilterRequest{
		Search:    "x",
		Status:    StatusApprovato,
		Documents: []DocumentKind{DocScontrino},
		PECStatus: PECInviata,
		DateFrom:  dayp(2024, 5, 1),
		DateTo:    dayp(2024, 5, 31),
		DaGestire: true,
		Month:     &m,
	}
	conds := c.Conditions(req)
	wantOps := []store.Op{store.OpOr, store.OpAnd, store.OpAnd, store.OpNotNull, store.OpGte, store.OpLt, store.OpAnd, store.OpAnd}
	if len(conds) != len(wantOps) {
		t.Fatalf("expected %d conditions, got %d", len(wantOps), len(conds))
	}
	for i, op := range wantOps {
		if conds[i].Op != op {
			t.Errorf("condition %d: op %s, want %s", i, conds[i].Op, op)
		}
	}
	if !conds[5].Value.(time.Time).Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("dateTo upper bound should be the following midnight, got %v", conds[5].Value)
	}
}

type failingStore struct{ err error }

func (f failingStore) Find(context.Context, store.Query) ([]Formulario, error) { return nil, f.err }
func (f failingStore) Count(context.Context, []store.Cond) (int64, error)    { return 0, f.err }
func (f failingStore) GroupCount(context.Context, store.Field, []store.Cond, int) ([]store.Group, error) {
	return nil, f.err
}

func TestListWrapsStoreFailure(t *testing.T) {
	cause := errors.New("connection reset")
	deriver := NewDeriver(PECRulePresence)
	svc := NewService(failingStore{err: cause}, NewComposer(ComposerOptions{Deriver: deriver}), NewDecorator(deriver, ""), PageLimits{DefaultSize: 15})

	_, err := svc.List(context.Background(), defaultRequest())
	var qe *QueryExecutionError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QueryExecutionError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestSentinelPartiesNeverMatch(t *testing.T) {
	rows := []Formulario{
		newRecord(1, func(r *Formulario) { r.Intermediario = strp("Non Presente ") }),
		newRecord(2, func(r *Formulario) { r.Intermediario = strp("Intermediari Presente Srl") }),
		newRecord(3, func(r *Formulario) { r.Intermediario = strp("  ") }),
	}
	svc := newTestService(PECRulePresence, rows...)

	req := defaultRequest()
	req.Search = "presente"
	req.SearchColumn = ColIntermediario
	page, err := svc.List(context.Background(), req)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Data[0].UID != "uid-2" {
		t.Fatalf("expected only uid-2, got total=%d rows=%v", page.Total, uidsOf(page.Data))
	}

	groups, err := store.NewMemory(rows...).GroupCount(context.Background(), store.Col(ColIntermediario), nil, 0)
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if len(groups) != 1 || groups[0].Key != "Intermediari Presente Srl" {
		t.Fatalf("unexpected groups %+v", groups)
	}
}
