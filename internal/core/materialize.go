package core

import "fmt"

// MaterializedID returns the deterministic id for a transaction generated
// from a recurring template on a given occurrence day. Re-running
// materialization can therefore never duplicate an entry that is already in
// the ledger.
func MaterializedID(templateID string, occurrence Date) string {
	return fmt.Sprintf("recurring:%s:%s", templateID, occurrence.ISODay())
}

// MaterializeResult is the outcome of one catch-up run.
type MaterializeResult struct {
	// NewTransactions are the ledger entries to append, oldest first.
	NewTransactions []Transaction
	// Templates are all input templates with advanced cursors. Order is
	// preserved from the input.
	Templates []RecurringTransaction
	// Changed reports whether any new transaction was produced. When false
	// the caller must not write either collection back.
	Changed bool
}

// MaterializeRecurring turns recurring templates into the concrete
// transactions that have become due up to and including today.
//
// Occurrences are anchored on the start date: occurrence k is the start date
// plus k months with the day-of-month clamped to the target month. A start
// day of 31 therefore yields Jan 31, Feb 28/29, Mar 31 - the February clamp
// does not drag later occurrences down. The cursor never moves backward, and
// ids already present in existingIDs are skipped so the operation is
// idempotent.
func MaterializeRecurring(templates []RecurringTransaction, existingIDs map[string]struct{}, today Date) MaterializeResult {
	result := MaterializeResult{
		Templates: make([]RecurringTransaction, len(templates)),
	}

	for i, tpl := range templates {
		result.Templates[i] = tpl

		if tpl.StartDate.After(today) {
			continue // not yet active
		}

		// First unprocessed occurrence index. The cursor is always an
		// occurrence itself, so the whole-month difference recovers its
		// index exactly.
		k := 0
		if tpl.LastProcessedDate != nil {
			k = MonthsBetween(tpl.StartDate, *tpl.LastProcessedDate) + 1
		}

		cursor := tpl.LastProcessedDate
		for {
			occurrence := tpl.StartDate.AddMonthsClamped(k)
			if occurrence.After(today) {
				break
			}
			if tpl.EndDate != nil && occurrence.After(*tpl.EndDate) {
				break
			}

			id := MaterializedID(tpl.ID, occurrence)
			if _, exists := existingIDs[id]; !exists {
				result.NewTransactions = append(result.NewTransactions, Transaction{
					ID:          id,
					Date:        occurrence,
					Description: tpl.Description,
					Amount:      tpl.Amount,
					Type:        tpl.Type,
				})
			}

			occ := occurrence
			cursor = &occ
			k++
		}

		result.Templates[i].LastProcessedDate = cursor
	}

	result.Changed = len(result.NewTransactions) > 0
	return result
}
