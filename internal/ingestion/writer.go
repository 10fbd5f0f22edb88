package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/jeovahfialho/tradelog/internal/domain"
)

// WriteCSV writes trades in the import layout so an export can be re-imported.
func WriteCSV(w io.Writer, trades []domain.Trade) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, t := range trades {
		record := []string{
			t.Symbol,
			string(t.Side),
			t.Quantity.String(),
			t.EntryPrice.String(),
			t.EntryDate.UTC().Format(time.RFC3339Nano),
			"",
			"",
		}
		if t.ExitPrice != nil {
			record[5] = t.ExitPrice.String()
		}
		if t.ExitDate != nil {
			record[6] = t.ExitDate.UTC().Format(time.RFC3339Nano)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write trade %s: %w", t.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
