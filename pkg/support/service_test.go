package support

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gestione-formulari/dashboard/pkg/common/apperr"
	"github.com/gestione-formulari/dashboard/pkg/common/logger"
	"github.com/gorilla/mux"
)

func init() {
	logger.SetOutput(io.Discard)
}

func validRequest() CreateTicketRequest {
	return CreateTicketRequest{
		UserName:           " Giulia ",
		InquiryType:        InquiryBug,
		ProblemTitle:       "Filtro mese",
		ProblemDescription: "Il filtro di febbraio non mostra il 29.",
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(NewMemoryStore())

	cases := map[string]func(*CreateTicketRequest){
		"missing user":        func(r *CreateTicketRequest) { r.UserName = "  " },
		"missing inquiry":     func(r *CreateTicketRequest) { r.InquiryType = "" },
		"unknown inquiry":     func(r *CreateTicketRequest) { r.InquiryType = "Reclamo" },
		"missing title":       func(r *CreateTicketRequest) { r.ProblemTitle = "" },
		"missing description": func(r *CreateTicketRequest) { r.ProblemDescription = "\n" },
	}
	for name, mutate := range cases {
		req := validRequest()
		mutate(&req)
		if _, err := svc.Create(context.Background(), req); !apperr.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestCreateListResolve(t *testing.T) {
	st := NewMemoryStore()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	tick := base
	st.clock = func() time.Time { tick = tick.Add(time.Minute); return tick }
	svc := NewService(st)
	svc.now = func() time.Time { return base.Add(time.Hour) }

	first, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.UserName != "Giulia" || first.ScreenshotURL != nil {
		t.Fatalf("unexpected ticket %+v", first)
	}
	req := validRequest()
	req.ScreenshotURL = "https://files.example.com/s.png"
	second, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	tickets, err := svc.List(context.Background())
	if err != nil || len(tickets) != 2 || tickets[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v, %v", tickets, err)
	}

	resolved, err := svc.Resolve(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(base.Add(time.Hour)) || !resolved.UpdatedAt.Equal(*resolved.ResolvedAt) {
		t.Fatalf("unexpected resolution %+v", resolved)
	}

	if _, err := svc.Resolve(context.Background(), 99); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHTTPHandler(t *testing.T) {
	r := mux.NewRouter()
	NewHTTPHandler(NewService(NewMemoryStore()), 1<<16).Register(r.PathPrefix("/api").Subrouter())

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	body, _ := json.Marshal(validRequest())
	rec := do(http.MethodPost, "/api/support/tickets", string(body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var created Ticket
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil || created.ID == 0 {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	if rec := do(http.MethodPost, "/api/support/tickets", `{"user_name":"x"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("incomplete ticket: expected 400, got %d", rec.Code)
	}
	if rec := do(http.MethodPost, "/api/support/tickets", `{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %d", rec.Code)
	}

	rec = do(http.MethodGet, "/api/support/tickets", "")
	var list []Ticket
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("unexpected list %s", rec.Body.String())
	}

	if rec := do(http.MethodPost, "/api/support/tickets/1/resolve", ""); rec.Code != http.StatusOK {
		t.Fatalf("resolve: %d", rec.Code)
	}
	if rec := do(http.MethodPost, "/api/support/tickets/42/resolve", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("resolve missing: expected 404, got %d", rec.Code)
	}
}
