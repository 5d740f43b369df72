// Package export renders ledger data into interchange formats.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"finanzen/internal/core"
)

var csvHeader = []string{"date", "description", "type", "amount"}

// WriteTransactionsCSV writes the ledger as CSV in the order given.
func WriteTransactionsCSV(w io.Writer, transactions []core.Transaction) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range transactions {
		record := []string{t.Date.ISODay(), t.Description, string(t.Type), t.Amount.String()}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record %s: %w", t.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
