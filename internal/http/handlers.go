package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"finanzen/internal/core"
	"finanzen/internal/export"
	"finanzen/internal/services"
	"finanzen/internal/storage"

	"github.com/shopspring/decimal"
)

// Amounts travel as decimal strings to keep cents exact across the wire.
type transactionPayload struct {
	ID          string `json:"id,omitempty"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
}

type allocationPayload struct {
	ID             string   `json:"id,omitempty"`
	Date           string   `json:"date"`
	Category       string   `json:"category"`
	Amount         string   `json:"amount"`
	Description    string   `json:"description,omitempty"`
	InterestRate   *float64 `json:"interest_rate,omitempty"`
	InvestmentType string   `json:"investment_type,omitempty"`
}

type recurringPayload struct {
	ID                string  `json:"id,omitempty"`
	Description       string  `json:"description"`
	Amount            string  `json:"amount"`
	Type              string  `json:"type"`
	StartDate         string  `json:"start_date"`
	EndDate           *string `json:"end_date,omitempty"`
	LastProcessedDate *string `json:"last_processed_date,omitempty"`
}

type summaryPayload struct {
	TotalIncome    string            `json:"total_income"`
	TotalExpenses  string            `json:"total_expenses"`
	TotalBalance   string            `json:"total_balance"`
	SavingsRate    float64           `json:"savings_rate"`
	Allocations    map[string]string `json:"allocations_by_category"`
	TotalAllocated string            `json:"total_allocated"`
	Unallocated    string            `json:"unallocated"`
}

type investmentsPayload struct {
	TotalContributions string           `json:"total_contributions"`
	CurrentValue       float64          `json:"current_value"`
	Growth             float64          `json:"growth"`
	Portfolio          []portfolioSlice `json:"portfolio"`
}

type portfolioSlice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type projectionPointPayload struct {
	Month         string  `json:"month"`
	Value         float64 `json:"value"`
	Contributions float64 `json:"contributions"`
}

type errorPayload struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidDateFilter):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrEndBeforeStart),
		errors.Is(err, core.ErrRateOutsideInvest),
		errors.Is(err, services.ErrInsufficientUnallocated):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
		writeJSON(w, status, errorPayload{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorPayload{Error: err.Error()})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	filter := core.DateFilter{
		Type:  core.FilterType(r.URL.Query().Get("filter")),
		Value: r.URL.Query().Get("value"),
	}
	if filter.Type == "" {
		filter.Type = core.FilterAll
	}

	summary, err := s.reports.Summary(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	payload := summaryPayload{
		TotalIncome:    summary.TotalIncome.String(),
		TotalExpenses:  summary.TotalExpenses.String(),
		TotalBalance:   summary.TotalBalance.String(),
		SavingsRate:    summary.SavingsRate,
		Allocations:    make(map[string]string, len(summary.AllocationsByCategory)),
		TotalAllocated: summary.TotalAllocated.String(),
		Unallocated:    summary.Unallocated.String(),
	}
	for category, amount := range summary.AllocationsByCategory {
		payload.Allocations[string(category)] = amount.String()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleInvestments(w http.ResponseWriter, r *http.Request) {
	summary, err := s.reports.Investments(r.Context(), core.Today(time.Now()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	payload := investmentsPayload{
		TotalContributions: summary.TotalContributions.String(),
		CurrentValue:       summary.CurrentValue,
		Growth:             summary.Growth,
		Portfolio:          make([]portfolioSlice, 0, len(summary.PortfolioBreakdown)),
	}
	for _, slice := range summary.PortfolioBreakdown {
		payload.Portfolio = append(payload.Portfolio, portfolioSlice{Name: slice.Name, Value: slice.Value})
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	points, err := s.reports.Projection(r.Context(), core.Today(time.Now()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	payload := make([]projectionPointPayload, 0, len(points))
	for _, p := range points {
		payload = append(payload, projectionPointPayload{
			Month:         p.Month,
			Value:         p.Value,
			Contributions: p.Contributions,
		})
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.ledger.ListTransactions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	payload := make([]transactionPayload, 0, len(transactions))
	for _, t := range transactions {
		payload = append(payload, transactionToPayload(t))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.ledger.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionToPayload(t))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var payload transactionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid request body"})
		return
	}

	t, err := transactionFromPayload(payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.ledger.CreateTransaction(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, transactionToPayload(created))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var payload transactionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid request body"})
		return
	}
	payload.ID = r.PathValue("id")

	t, err := transactionFromPayload(payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.ledger.UpdateTransaction(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionToPayload(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.ledger.ListTransactions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	if err := export.WriteTransactionsCSV(w, transactions); err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed", "error", err)
	}
}

func (s *Server) handleListAllocations(w http.ResponseWriter, r *http.Request) {
	allocations, err := s.ledger.ListAllocations(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	payload := make([]allocationPayload, 0, len(allocations))
	for _, a := range allocations {
		payload = append(payload, allocationToPayload(a))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleCreateAllocation(w http.ResponseWriter, r *http.Request) {
	var payload allocationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid request body"})
		return
	}

	a, err := allocationFromPayload(payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.ledger.CreateAllocation(r.Context(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, allocationToPayload(created))
}

func (s *Server) handleUpdateAllocation(w http.ResponseWriter, r *http.Request) {
	var payload allocationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid request body"})
		return
	}
	payload.ID = r.PathValue("id")

	a, err := allocationFromPayload(payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.ledger.UpdateAllocation(r.Context(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, allocationToPayload(updated))
}

func (s *Server) handleDeleteAllocation(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteAllocation(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	templates, err := s.ledger.ListRecurring(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	payload := make([]recurringPayload, 0, len(templates))
	for _, rt := range templates {
		payload = append(payload, recurringToPayload(rt))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var payload recurringPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid request body"})
		return
	}

	rt, err := recurringFromPayload(payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.ledger.CreateRecurring(r.Context(), rt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recurringToPayload(created))
}

func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	var payload recurringPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid request body"})
		return
	}
	payload.ID = r.PathValue("id")

	rt, err := recurringFromPayload(payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.ledger.UpdateRecurring(r.Context(), rt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recurringToPayload(updated))
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteRecurring(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func transactionToPayload(t core.Transaction) transactionPayload {
	return transactionPayload{
		ID:          t.ID,
		Date:        t.Date.ISODay(),
		Description: t.Description,
		Amount:      t.Amount.String(),
		Type:        string(t.Type),
	}
}

func transactionFromPayload(p transactionPayload) (core.Transaction, error) {
	date, err := core.ParseDay(p.Date)
	if err != nil {
		return core.Transaction{}, core.ErrInvalidDate
	}
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return core.Transaction{}, core.ErrInvalidAmount
	}
	return core.Transaction{
		ID:          p.ID,
		Date:        date,
		Description: p.Description,
		Amount:      amount,
		Type:        core.TransactionType(p.Type),
	}, nil
}

func allocationToPayload(a core.Allocation) allocationPayload {
	return allocationPayload{
		ID:             a.ID,
		Date:           a.Date.ISODay(),
		Category:       string(a.Category),
		Amount:         a.Amount.String(),
		Description:    a.Description,
		InterestRate:   a.InterestRate,
		InvestmentType: a.InvestmentType,
	}
}

func allocationFromPayload(p allocationPayload) (core.Allocation, error) {
	date, err := core.ParseDay(p.Date)
	if err != nil {
		return core.Allocation{}, core.ErrInvalidDate
	}
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return core.Allocation{}, core.ErrInvalidAmount
	}
	return core.Allocation{
		ID:             p.ID,
		Date:           date,
		Category:       core.AllocationCategory(p.Category),
		Amount:         amount,
		Description:    p.Description,
		InterestRate:   p.InterestRate,
		InvestmentType: p.InvestmentType,
	}, nil
}

func recurringToPayload(rt core.RecurringTransaction) recurringPayload {
	p := recurringPayload{
		ID:          rt.ID,
		Description: rt.Description,
		Amount:      rt.Amount.String(),
		Type:        string(rt.Type),
		StartDate:   rt.StartDate.ISODay(),
	}
	if rt.EndDate != nil {
		end := rt.EndDate.ISODay()
		p.EndDate = &end
	}
	if rt.LastProcessedDate != nil {
		last := rt.LastProcessedDate.ISODay()
		p.LastProcessedDate = &last
	}
	return p
}

func recurringFromPayload(p recurringPayload) (core.RecurringTransaction, error) {
	start, err := core.ParseDay(p.StartDate)
	if err != nil {
		return core.RecurringTransaction{}, core.ErrInvalidDate
	}
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return core.RecurringTransaction{}, core.ErrInvalidAmount
	}
	rt := core.RecurringTransaction{
		ID:          p.ID,
		Description: p.Description,
		Amount:      amount,
		Type:        core.TransactionType(p.Type),
		StartDate:   start,
	}
	if p.EndDate != nil {
		end, err := core.ParseDay(*p.EndDate)
		if err != nil {
			return core.RecurringTransaction{}, core.ErrInvalidDate
		}
		rt.EndDate = &end
	}
	return rt, nil
}
