package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// Journal is everything the export writes: trades and the balance history
type Journal struct {
	Trades    []*types.Trade
	Portfolio []types.PortfolioSnapshot
}

// Sheet names of the exported workbook
const (
	TradesSheet    = "Trades"
	PortfolioSheet = "Portfolio"
	SummarySheet   = "Summary"
)

// DefaultExcelReporter implements Excel output functionality
type DefaultExcelReporter struct{}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

// WriteJournalXLSX writes the trade journal workbook to path
func (r *DefaultExcelReporter) WriteJournalXLSX(j Journal, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	// Replace default sheet and create additional sheets
	if err := fx.SetSheetName(fx.GetSheetName(0), TradesSheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(PortfolioSheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(SummarySheet); err != nil {
		return err
	}

	styles, err := r.createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeTradesSheet(fx, j.Trades, styles); err != nil {
		return err
	}
	if err := r.writePortfolioSheet(fx, j.Portfolio, styles); err != nil {
		return err
	}
	if err := r.writeSummarySheet(fx, Summarize(j.Trades), styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

var lightBorder = []excelize.Border{
	{Type: "left", Color: "E0E0E0", Style: 1},
	{Type: "right", Color: "E0E0E0", Style: 1},
	{Type: "bottom", Color: "E0E0E0", Style: 1},
}

// createExcelStyles registers the cell styles used by every sheet
func (r *DefaultExcelReporter) createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	// Header style - Dark slate background with white text
	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	styles.BaseStyle, err = fx.NewStyle(&excelize.Style{Border: lightBorder})
	if err != nil {
		return styles, err
	}

	// 2 decimals with thousands separator
	styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    4,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    lightBorder,
	})
	if err != nil {
		return styles, err
	}

	// Percentage format, values are fractions
	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    lightBorder,
	})
	if err != nil {
		return styles, err
	}

	styles.RedPercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10,
		Font:      &excelize.Font{Color: "FF0000"},
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    lightBorder,
	})
	if err != nil {
		return styles, err
	}

	styles.GreenPercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10,
		Font:      &excelize.Font{Color: "008000"},
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    lightBorder,
	})
	if err != nil {
		return styles, err
	}

	// Open positions get a light blue fill
	styles.OpenStyle, err = fx.NewStyle(&excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E6F3FF"}, Pattern: 1},
		Border: lightBorder,
	})
	if err != nil {
		return styles, err
	}

	styles.SummaryStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 2},
			{Type: "right", Color: "000000", Style: 2},
			{Type: "top", Color: "000000", Style: 2},
			{Type: "bottom", Color: "000000", Style: 2},
		},
	})
	if err != nil {
		return styles, err
	}

	return styles, nil
}

func writeHeader(fx *excelize.File, sheet string, headers []string, style int) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sheet, cell, h)
		fx.SetCellStyle(sheet, cell, cell, style)
	}
	fx.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func setCell(fx *excelize.File, sheet string, col, row int, value any, style int) {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	fx.SetCellValue(sheet, cell, value)
	fx.SetCellStyle(sheet, cell, cell, style)
}

// writeTradesSheet writes one row per trade in store order
func (r *DefaultExcelReporter) writeTradesSheet(fx *excelize.File, trades []*types.Trade, styles ExcelStyles) error {
	const sheet = TradesSheet
	headers := []string{
		"Trade ID", "Signal ID", "Symbol", "Side", "Quantity", "Entry", "Stop", "Target",
		"Status", "Exit", "PnL", "PnL %", "Opened", "Closed", "Entry Order", "Stop Order", "Target Order",
	}
	writeHeader(fx, sheet, headers, styles.HeaderStyle)
	fx.SetColWidth(sheet, "A", "B", 38)
	fx.SetColWidth(sheet, "C", "L", 12)
	fx.SetColWidth(sheet, "M", "N", 18)
	fx.SetColWidth(sheet, "O", "Q", 22)

	for i, t := range trades {
		row := i + 2
		base := styles.BaseStyle
		if t.IsOpen() {
			base = styles.OpenStyle
		}
		setCell(fx, sheet, 1, row, t.ID, base)
		setCell(fx, sheet, 2, row, t.SignalID, base)
		setCell(fx, sheet, 3, row, t.Symbol, base)
		setCell(fx, sheet, 4, row, string(t.Side), base)
		setCell(fx, sheet, 5, row, t.Quantity, base)
		setCell(fx, sheet, 6, row, t.EntryPrice, styles.CurrencyStyle)
		setCell(fx, sheet, 7, row, t.StopLossPrice, styles.CurrencyStyle)
		setCell(fx, sheet, 8, row, t.TakeProfitPrice, styles.CurrencyStyle)
		setCell(fx, sheet, 9, row, string(t.Status), base)
		if t.ExitPrice != nil {
			setCell(fx, sheet, 10, row, *t.ExitPrice, styles.CurrencyStyle)
		}
		if t.PnLAmount != nil {
			setCell(fx, sheet, 11, row, *t.PnLAmount, styles.CurrencyStyle)
		}
		if t.PnLPercentage != nil {
			style := styles.GreenPercentStyle
			if *t.PnLPercentage < 0 {
				style = styles.RedPercentStyle
			}
			setCell(fx, sheet, 12, row, *t.PnLPercentage/100, style)
		}
		setCell(fx, sheet, 13, row, t.OpenedAt.UTC().Format(timeLayout), base)
		if t.ClosedAt != nil {
			setCell(fx, sheet, 14, row, t.ClosedAt.UTC().Format(timeLayout), base)
		}
		setCell(fx, sheet, 15, row, t.OrderIDs.Entry, base)
		setCell(fx, sheet, 16, row, t.OrderIDs.StopLoss, base)
		setCell(fx, sheet, 17, row, t.OrderIDs.TakeProfit, base)
	}
	return nil
}

// writePortfolioSheet writes the balance history, oldest first
func (r *DefaultExcelReporter) writePortfolioSheet(fx *excelize.File, snaps []types.PortfolioSnapshot, styles ExcelStyles) error {
	const sheet = PortfolioSheet
	writeHeader(fx, sheet, []string{"Timestamp", "Asset", "Total", "Available", "Locked"}, styles.HeaderStyle)
	fx.SetColWidth(sheet, "A", "A", 18)
	fx.SetColWidth(sheet, "B", "E", 14)

	row := 2
	for i := len(snaps) - 1; i >= 0; i-- {
		s := snaps[i]
		setCell(fx, sheet, 1, row, s.Timestamp.UTC().Format(timeLayout), styles.BaseStyle)
		setCell(fx, sheet, 2, row, s.Asset, styles.BaseStyle)
		setCell(fx, sheet, 3, row, s.TotalBalance, styles.CurrencyStyle)
		setCell(fx, sheet, 4, row, s.AvailableBalance, styles.CurrencyStyle)
		setCell(fx, sheet, 5, row, s.LockedBalance, styles.CurrencyStyle)
		row++
	}
	return nil
}

// writeSummarySheet writes the statistics as label/value pairs
func (r *DefaultExcelReporter) writeSummarySheet(fx *excelize.File, s Summary, styles ExcelStyles) error {
	const sheet = SummarySheet
	fx.SetColWidth(sheet, "A", "A", 22)
	fx.SetColWidth(sheet, "B", "B", 16)

	rows := []struct {
		label string
		value any
		style int
	}{
		{"Total Trades", s.TotalTrades, styles.BaseStyle},
		{"Open Trades", s.OpenTrades, styles.BaseStyle},
		{"Closed Trades", s.ClosedTrades, styles.BaseStyle},
		{"Wins", s.Wins, styles.BaseStyle},
		{"Losses", s.Losses, styles.BaseStyle},
		{"Win Rate", s.WinRate / 100, styles.PercentStyle},
		{"Realised PnL", s.RealisedPnL, styles.CurrencyStyle},
		{"Average PnL %", s.AvgPnLPct / 100, styles.PercentStyle},
		{"Best Trade", s.BestPnL, styles.CurrencyStyle},
		{"Worst Trade", s.WorstPnL, styles.CurrencyStyle},
		{"Stopped Out", s.StoppedOut, styles.BaseStyle},
		{"Take Profit", s.TakeProfitHit, styles.BaseStyle},
	}
	for i, row := range rows {
		setCell(fx, sheet, 1, i+1, row.label, styles.SummaryStyle)
		setCell(fx, sheet, 2, i+1, row.value, row.style)
	}
	return nil
}
