package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// DefaultCSVReporter implements CSV output functionality
type DefaultCSVReporter struct{}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

// WriteTradesCSV writes one row per trade followed by a summary row
func (r *DefaultCSVReporter) WriteTradesCSV(trades []*types.Trade, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	// If the user requests an Excel file, delegate to Excel writer
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return NewDefaultExcelReporter().WriteJournalXLSX(Journal{Trades: trades}, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{
		"Trade_ID", "Signal_ID", "Symbol", "Side", "Quantity", "Entry_Price", "Stop_Loss",
		"Take_Profit", "Status", "Exit_Price", "PnL", "PnL_%", "Opened_At", "Closed_At",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, t := range trades {
		row := []string{
			t.ID,
			t.SignalID,
			t.Symbol,
			string(t.Side),
			formatFloat(t.Quantity),
			formatFloat(t.EntryPrice),
			formatFloat(t.StopLossPrice),
			formatFloat(t.TakeProfitPrice),
			string(t.Status),
			optionalFloat(t.ExitPrice),
			optionalFloat(t.PnLAmount),
			optionalFloat(t.PnLPercentage),
			t.OpenedAt.UTC().Format("2006-01-02 15:04:05"),
			"",
		}
		if t.ClosedAt != nil {
			row[13] = t.ClosedAt.UTC().Format("2006-01-02 15:04:05")
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	s := Summarize(trades)
	summaryRow := make([]string, len(header))
	summaryRow[0] = "SUMMARY"
	summaryRow[len(header)-1] = fmt.Sprintf("total=%d; closed=%d; win_rate=%.1f%%; realised_pnl=%.2f; avg_pnl=%.2f%%",
		s.TotalTrades, s.ClosedTrades, s.WinRate, s.RealisedPnL, s.AvgPnLPct)
	if err := w.Write(summaryRow); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
