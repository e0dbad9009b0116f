package reporting

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ducminhle1904/crypto-signal-trader/internal/trader"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// DefaultReporter implements console and file reporting together
type DefaultReporter struct {
	console *DefaultConsoleReporter
	csv     *DefaultCSVReporter
	excel   *DefaultExcelReporter
	paths   *DefaultPathManager
}

// NewDefaultReporter creates a reporter printing to out and exporting under dir
func NewDefaultReporter(out io.Writer, dir string) *DefaultReporter {
	return &DefaultReporter{
		console: NewDefaultConsoleReporter(out),
		csv:     NewDefaultCSVReporter(),
		excel:   NewDefaultExcelReporter(),
		paths:   NewDefaultPathManager(dir),
	}
}

// Console output methods
func (r *DefaultReporter) PrintCycleReport(report *trader.Report) {
	r.console.PrintCycleReport(report)
}

func (r *DefaultReporter) PrintSignals(signals []*types.Signal) {
	r.console.PrintSignals(signals)
}

func (r *DefaultReporter) PrintTrades(trades []*types.Trade) {
	r.console.PrintTrades(trades)
}

func (r *DefaultReporter) PrintSummary(s Summary) {
	r.console.PrintSummary(s)
}

func (r *DefaultReporter) PrintPortfolio(snaps []types.PortfolioSnapshot) {
	r.console.PrintPortfolio(snaps)
}

func (r *DefaultReporter) PrintKeyValues(title string, rows [][2]string) {
	r.console.PrintKeyValues(title, rows)
}

// File output methods
func (r *DefaultReporter) WriteTradesCSV(trades []*types.Trade, path string) error {
	return r.csv.WriteTradesCSV(trades, path)
}

func (r *DefaultReporter) WriteJournalXLSX(j Journal, path string) error {
	return r.excel.WriteJournalXLSX(j, path)
}

// Paths exposes the export path manager
func (r *DefaultReporter) Paths() *DefaultPathManager {
	return r.paths
}

// Export writes the journal in the format implied by the path extension
func (r *DefaultReporter) Export(j Journal, path string) error {
	switch ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); ext {
	case "xlsx":
		return r.WriteJournalXLSX(j, path)
	case "csv":
		return r.WriteTradesCSV(j.Trades, path)
	case "json":
		return WriteJSONFile(struct {
			Trades    []*types.Trade            `json:"trades"`
			Portfolio []types.PortfolioSnapshot `json:"portfolio"`
			Summary   Summary                   `json:"summary"`
		}{j.Trades, j.Portfolio, Summarize(j.Trades)}, path)
	default:
		return fmt.Errorf("unsupported export format %q", ext)
	}
}

var (
	_ ConsoleReporter = (*DefaultReporter)(nil)
	_ FileReporter    = (*DefaultReporter)(nil)
)
