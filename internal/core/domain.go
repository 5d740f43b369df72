package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Investments   AllocationCategory = "investments"
	EmergencyFund AllocationCategory = "emergency_fund"
	Goals         AllocationCategory = "goals"
)

const (
	FilterAll   FilterType = "all"
	FilterYear  FilterType = "year"
	FilterMonth FilterType = "month"
	FilterDay   FilterType = "day"
)

type (
	TransactionType    string
	AllocationCategory string
	FilterType         string

	// Transaction is a concrete ledger entry. Amount is always stored
	// positive; the sign is derived from Type.
	Transaction struct {
		ID          string
		Date        Date
		Description string
		Amount      decimal.Decimal
		Type        TransactionType
	}

	// Allocation is money moved out of the unallocated balance into a
	// savings bucket. InterestRate and InvestmentType apply only to the
	// investments category.
	Allocation struct {
		ID             string
		Date           Date
		Category       AllocationCategory
		Amount         decimal.Decimal
		Description    string
		InterestRate   *float64 // annual percent
		InvestmentType string
	}

	// RecurringTransaction is a template generating one Transaction per
	// elapsed calendar month between StartDate and min(today, EndDate).
	// LastProcessedDate is a cursor owned exclusively by the materializer.
	RecurringTransaction struct {
		ID                string
		Description       string
		Amount            decimal.Decimal
		Type              TransactionType
		StartDate         Date
		EndDate           *Date
		LastProcessedDate *Date
	}

	// DateFilter scopes aggregation to a calendar window via an ISO date
	// prefix ("2024", "2024-03", or "2024-03-15").
	DateFilter struct {
		Type  FilterType
		Value string
	}
)

var (
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyDescription  = errors.New("empty description")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrInvalidCategory   = errors.New("invalid allocation category")
	ErrInvalidDateFilter = errors.New("invalid date filter")
	ErrEndBeforeStart    = errors.New("end date before start date")
	ErrRateOutsideInvest = errors.New("interest rate only applies to investments")
)

func (ty TransactionType) Validate() error {
	switch ty {
	case Income, Expense:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidType, string(ty))
	}
}

func (c AllocationCategory) Validate() error {
	switch c {
	case Investments, EmergencyFund, Goals:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCategory, string(c))
	}
}

func validateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if err := validateDescription(t.Description); err != nil {
		return err
	}
	if err := validateAmount(t.Amount); err != nil {
		return err
	}
	return t.Type.Validate()
}

func (a Allocation) Validate() error {
	if a.Date.IsZero() {
		return ErrInvalidDate
	}
	if err := a.Category.Validate(); err != nil {
		return err
	}
	if err := validateAmount(a.Amount); err != nil {
		return err
	}
	if a.Category != Investments && (a.InterestRate != nil || a.InvestmentType != "") {
		return ErrRateOutsideInvest
	}
	if a.InterestRate != nil && *a.InterestRate < 0 {
		return errors.New("negative interest rate")
	}
	return nil
}

func (rt RecurringTransaction) Validate() error {
	if rt.StartDate.IsZero() {
		return fmt.Errorf("invalid start date: %w", ErrInvalidDate)
	}
	if rt.EndDate != nil && rt.EndDate.Before(rt.StartDate) {
		return ErrEndBeforeStart
	}
	if err := validateDescription(rt.Description); err != nil {
		return err
	}
	if err := validateAmount(rt.Amount); err != nil {
		return err
	}
	return rt.Type.Validate()
}

var (
	yearRe  = regexp.MustCompile(`^\d{4}$`)
	monthRe = regexp.MustCompile(`^\d{4}-\d{2}$`)
	dayRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Validate checks that the filter value is a well-formed ISO prefix for its
// type. Matching is a plain string-prefix test, so malformed values would
// silently match nothing.
func (f DateFilter) Validate() error {
	switch f.Type {
	case FilterAll:
		return nil
	case FilterYear:
		if !yearRe.MatchString(f.Value) {
			return fmt.Errorf("%w: year filter wants YYYY, got %q", ErrInvalidDateFilter, f.Value)
		}
	case FilterMonth:
		if !monthRe.MatchString(f.Value) {
			return fmt.Errorf("%w: month filter wants YYYY-MM, got %q", ErrInvalidDateFilter, f.Value)
		}
	case FilterDay:
		if !dayRe.MatchString(f.Value) {
			return fmt.Errorf("%w: day filter wants YYYY-MM-DD, got %q", ErrInvalidDateFilter, f.Value)
		}
		if _, err := ParseDay(f.Value); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDateFilter, err)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidDateFilter, string(f.Type))
	}
	return nil
}

// Matches reports whether d falls inside the filter window.
func (f DateFilter) Matches(d Date) bool {
	if f.Type == FilterAll || f.Value == "" {
		return true
	}
	return strings.HasPrefix(d.ISODay(), f.Value)
}
