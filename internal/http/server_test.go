package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"finanzen/internal/services"
	"finanzen/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ledger := services.NewLedgerService(repo, nil)
	reports := services.NewReportService(repo)
	return NewServer(":0", ledger, reports)
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/transactions",
		`{"date":"2024-03-15","description":"salary","amount":"2500.50","type":"income"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var created transactionPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal create response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created transaction has no id")
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions/"+created.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var list []transactionPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list has %d entries, want 1", len(list))
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rr.Code)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"bad date", `{"date":"15/03/2024","description":"x","amount":"10","type":"income"}`, http.StatusUnprocessableEntity},
		{"bad amount", `{"date":"2024-03-15","description":"x","amount":"abc","type":"income"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"date":"2024-03-15","description":"x","amount":"-5","type":"income"}`, http.StatusUnprocessableEntity},
		{"empty description", `{"date":"2024-03-15","description":" ","amount":"10","type":"income"}`, http.StatusUnprocessableEntity},
		{"bad type", `{"date":"2024-03-15","description":"x","amount":"10","type":"transfer"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, "/api/transactions", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestSummaryEndpoint(t *testing.T) {
	srv := newTestServer(t)

	seed := []string{
		`{"date":"2024-03-01","description":"salary","amount":"5000","type":"income"}`,
		`{"date":"2024-03-10","description":"groceries","amount":"3000","type":"expense"}`,
		`{"date":"2024-04-01","description":"bonus","amount":"9999","type":"income"}`,
	}
	for _, body := range seed {
		if rr := doJSON(t, srv, http.MethodPost, "/api/transactions", body); rr.Code != http.StatusCreated {
			t.Fatalf("seed failed: %d %s", rr.Code, rr.Body.String())
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/summary?filter=month&value=2024-03", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rr.Code)
	}
	var summary summaryPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if summary.TotalBalance != "2000" {
		t.Errorf("balance = %s, want 2000", summary.TotalBalance)
	}
	if summary.SavingsRate != 40 {
		t.Errorf("savings rate = %f, want 40", summary.SavingsRate)
	}
	if summary.Unallocated != "2000" {
		t.Errorf("unallocated = %s, want 2000", summary.Unallocated)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/summary?filter=month&value=bad", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad filter status = %d, want 400", rr.Code)
	}
}

func TestAllocationGuardOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	if rr := doJSON(t, srv, http.MethodPost, "/api/transactions",
		`{"date":"2024-03-01","description":"salary","amount":"1000","type":"income"}`); rr.Code != http.StatusCreated {
		t.Fatalf("seed failed: %d", rr.Code)
	}

	rr := doJSON(t, srv, http.MethodPost, "/api/allocations",
		`{"date":"2024-03-02","category":"goals","amount":"600"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("allocation within budget status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/allocations",
		`{"date":"2024-03-03","category":"emergency_fund","amount":"500"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("over-budget allocation status = %d, want 422", rr.Code)
	}
}

func TestProjectionEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/api/projection", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("projection status = %d", rr.Code)
	}
	var points []projectionPointPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &points); err != nil {
		t.Fatalf("unmarshal projection: %v", err)
	}
	if len(points) != 60 {
		t.Fatalf("projection has %d points, want 60", len(points))
	}
}

func TestRecurringEndpointAndExport(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/recurring",
		`{"description":"rent","amount":"900","type":"expense","start_date":"2024-01-15"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create recurring status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/recurring",
		`{"description":"bad","amount":"900","type":"expense","start_date":"2024-06-01","end_date":"2024-01-01"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("inverted window status = %d, want 422", rr.Code)
	}

	if rr := doJSON(t, srv, http.MethodPost, "/api/transactions",
		`{"date":"2024-03-15","description":"salary","amount":"2500","type":"income"}`); rr.Code != http.StatusCreated {
		t.Fatalf("seed failed: %d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions/export", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("export content type = %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "2024-03-15,salary,income,2500") {
		t.Errorf("export body missing row:\n%s", rr.Body.String())
	}
}

func TestUpdateTransactionOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/transactions",
		`{"date":"2024-03-15","description":"salary","amount":"2500","type":"income"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}
	var created transactionPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal create response: %v", err)
	}

	rr = doJSON(t, srv, http.MethodPut, "/api/transactions/"+created.ID,
		`{"date":"2024-03-16","description":"salary (corrected)","amount":"2600","type":"income"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions/"+created.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var got transactionPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal get response: %v", err)
	}
	if got.Amount != "2600" || got.Date != "2024-03-16" {
		t.Errorf("after update: amount = %s, date = %s", got.Amount, got.Date)
	}

	rr = doJSON(t, srv, http.MethodPut, "/api/transactions/no-such-id",
		`{"date":"2024-03-16","description":"ghost","amount":"1","type":"income"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("update missing id status = %d, want 404", rr.Code)
	}
}
