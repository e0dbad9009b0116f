package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/crypto-signal-trader/internal/trader"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

const timeLayout = "2006-01-02 15:04"

// DefaultConsoleReporter renders tables for the operator
type DefaultConsoleReporter struct {
	out io.Writer
}

// NewDefaultConsoleReporter creates a console reporter writing to out, or stdout when nil
func NewDefaultConsoleReporter(out io.Writer) *DefaultConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &DefaultConsoleReporter{out: out}
}

func (r *DefaultConsoleReporter) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

// PrintCycleReport prints the outcome of one trading cycle
func (r *DefaultConsoleReporter) PrintCycleReport(report *trader.Report) {
	t := r.newTable(fmt.Sprintf("CYCLE %s", report.StartedAt.UTC().Format(timeLayout)))
	t.AppendRows([]table.Row{
		{"Duration", report.Duration().Round(time.Millisecond).String()},
		{"Expired", report.Expired},
		{"Executed", report.Executed()},
		{"Closed", report.Closed()},
		{"Open positions", report.OpenPositions},
	})
	if report.Portfolio != nil {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Balance", fmt.Sprintf("%.2f %s", report.Portfolio.TotalBalance, report.Portfolio.Asset)},
			{"Available", fmt.Sprintf("%.2f %s", report.Portfolio.AvailableBalance, report.Portfolio.Asset)},
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, Align: text.AlignRight},
	})
	t.Render()

	if len(report.Signals) > 0 {
		st := r.newTable("SIGNALS")
		st.AppendHeader(table.Row{"Signal", "Symbol", "Side", "Outcome", "Qty", "Entry", "Degraded"})
		for _, s := range report.Signals {
			st.AppendRow(table.Row{shortID(s.SignalID), s.Symbol, s.Side, s.Outcome, formatQty(s.Quantity), formatPrice(s.EntryPrice), strings.Join(s.Degraded, ", ")})
		}
		st.Render()
	}

	if len(report.Trades) > 0 {
		tt := r.newTable("POSITIONS")
		tt.AppendHeader(table.Row{"Trade", "Symbol", "Side", "Action", "Price", "Exit", "P&L"})
		for _, p := range report.Trades {
			pnl := ""
			if p.Closed() {
				pnl = colorPnL(p.PnL, fmt.Sprintf("%.2f (%.2f%%)", p.PnL, p.PnLPct))
			}
			tt.AppendRow(table.Row{shortID(p.TradeID), p.Symbol, p.Side, p.Action, formatPrice(p.Price), formatPrice(p.ExitPrice), pnl})
		}
		tt.Render()
	}

	if len(report.Errors) > 0 {
		et := r.newTable("ERRORS")
		et.AppendHeader(table.Row{"Unit", "Category", "Action", "Message"})
		for _, e := range report.Errors {
			et.AppendRow(table.Row{e.Unit, e.Category, e.Action, e.Message})
		}
		et.SetColumnConfigs([]table.ColumnConfig{{Number: 4, WidthMax: 60}})
		et.Render()
	}
	fmt.Fprintln(r.out)
}

// PrintSignals prints signals in store order
func (r *DefaultConsoleReporter) PrintSignals(signals []*types.Signal) {
	t := r.newTable("SIGNALS")
	t.AppendHeader(table.Row{"ID", "Symbol", "Side", "Conf", "Entry", "Stop", "Target", "Status", "Expires"})
	for _, s := range signals {
		expires := "-"
		if s.ExpiresAt != nil {
			expires = s.ExpiresAt.UTC().Format(timeLayout)
		}
		t.AppendRow(table.Row{s.ID, s.Symbol, s.Side, fmt.Sprintf("%.0f%%", s.Confidence),
			formatPrice(s.EntryPrice), formatPrice(s.StopLossPrice), formatPrice(s.TakeProfitPrice), s.Status, expires})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "", "Total", len(signals)})
	t.Render()
}

// PrintTrades prints trades with their realised result
func (r *DefaultConsoleReporter) PrintTrades(trades []*types.Trade) {
	t := r.newTable("TRADES")
	t.AppendHeader(table.Row{"ID", "Symbol", "Side", "Qty", "Entry", "Stop", "Target", "Status", "Exit", "P&L", "Opened"})
	for _, tr := range trades {
		exit, pnl := "", ""
		if tr.ExitPrice != nil {
			exit = formatPrice(*tr.ExitPrice)
		}
		if tr.PnLAmount != nil && tr.PnLPercentage != nil {
			pnl = colorPnL(*tr.PnLAmount, fmt.Sprintf("%.2f (%.2f%%)", *tr.PnLAmount, *tr.PnLPercentage))
		}
		status := string(tr.Status)
		if tr.IsOpen() && !tr.HasFullProtection() {
			status += " !"
		}
		t.AppendRow(table.Row{shortID(tr.ID), tr.Symbol, tr.Side, formatQty(tr.Quantity), formatPrice(tr.EntryPrice),
			formatPrice(tr.StopLossPrice), formatPrice(tr.TakeProfitPrice), status, exit, pnl, tr.OpenedAt.UTC().Format(timeLayout)})
	}
	t.Render()
}

// PrintSummary prints trade statistics
func (r *DefaultConsoleReporter) PrintSummary(s Summary) {
	t := r.newTable("SUMMARY")
	t.AppendRows([]table.Row{
		{"Total trades", s.TotalTrades},
		{"Open", s.OpenTrades},
		{"Closed", s.ClosedTrades},
		{"Wins / Losses", fmt.Sprintf("%d / %d", s.Wins, s.Losses)},
		{"Win rate", fmt.Sprintf("%.1f%%", s.WinRate)},
		{"Realised P&L", colorPnL(s.RealisedPnL, fmt.Sprintf("%.2f", s.RealisedPnL))},
		{"Avg P&L", fmt.Sprintf("%.2f%%", s.AvgPnLPct)},
		{"Stopped out / TP", fmt.Sprintf("%d / %d", s.StoppedOut, s.TakeProfitHit)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 16, Align: text.AlignRight},
	})
	t.Render()
}

// PrintPortfolio prints balance snapshots, newest first
func (r *DefaultConsoleReporter) PrintPortfolio(snaps []types.PortfolioSnapshot) {
	t := r.newTable("PORTFOLIO")
	t.AppendHeader(table.Row{"Time", "Asset", "Total", "Available", "Locked"})
	for _, s := range snaps {
		t.AppendRow(table.Row{s.Timestamp.UTC().Format(timeLayout), s.Asset,
			fmt.Sprintf("%.2f", s.TotalBalance), fmt.Sprintf("%.2f", s.AvailableBalance), fmt.Sprintf("%.2f", s.LockedBalance)})
	}
	t.Render()
}

// PrintKeyValues prints a two column settings table
func (r *DefaultConsoleReporter) PrintKeyValues(title string, rows [][2]string) {
	t := r.newTable(title)
	for _, row := range rows {
		t.AppendRow(table.Row{row[0], row[1]})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 40, Align: text.AlignLeft},
	})
	t.Render()
}

func colorPnL(pnl float64, s string) string {
	switch {
	case pnl > 0:
		return text.FgGreen.Sprint(s)
	case pnl < 0:
		return text.FgRed.Sprint(s)
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatPrice(p float64) string {
	if p == 0 {
		return ""
	}
	return fmt.Sprintf("%.2f", p)
}

func formatQty(q float64) string {
	if q == 0 {
		return ""
	}
	return fmt.Sprintf("%.6g", q)
}
