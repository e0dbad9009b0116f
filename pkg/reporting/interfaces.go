package reporting

import (
	"github.com/ducminhle1904/crypto-signal-trader/internal/trader"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// Package reporting renders cycle reports, trade journals and statistics

// ConsoleReporter defines interface for console output
type ConsoleReporter interface {
	PrintCycleReport(report *trader.Report)
	PrintSignals(signals []*types.Signal)
	PrintTrades(trades []*types.Trade)
	PrintSummary(s Summary)
	PrintPortfolio(snaps []types.PortfolioSnapshot)
}

// FileReporter defines interface for file output
type FileReporter interface {
	WriteTradesCSV(trades []*types.Trade, path string) error
	WriteJournalXLSX(j Journal, path string) error
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle       int
	CurrencyStyle     int
	PercentStyle      int
	BaseStyle         int
	RedPercentStyle   int
	GreenPercentStyle int
	OpenStyle         int
	SummaryStyle      int
}
