package reporting

import (
	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// Summary aggregates the realised performance of a set of trades
type Summary struct {
	TotalTrades   int     `json:"total_trades"`
	OpenTrades    int     `json:"open_trades"`
	ClosedTrades  int     `json:"closed_trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"` // percent of closed trades with positive pnl
	RealisedPnL   float64 `json:"realised_pnl"`
	AvgPnLPct     float64 `json:"avg_pnl_pct"`
	BestPnL       float64 `json:"best_pnl"`
	WorstPnL      float64 `json:"worst_pnl"`
	StoppedOut    int     `json:"stopped_out"`
	TakeProfitHit int     `json:"take_profit"`
}

// Summarize computes trade statistics. Open trades count toward the total only.
func Summarize(trades []*types.Trade) Summary {
	var s Summary
	var pctSum float64
	for _, t := range trades {
		s.TotalTrades++
		if t.IsOpen() {
			s.OpenTrades++
			continue
		}
		s.ClosedTrades++

		switch t.Status {
		case types.TradeStatusStoppedOut:
			s.StoppedOut++
		case types.TradeStatusTakeProfit:
			s.TakeProfitHit++
		}

		var pnl, pct float64
		if t.PnLAmount != nil {
			pnl = *t.PnLAmount
		}
		if t.PnLPercentage != nil {
			pct = *t.PnLPercentage
		}
		if pnl > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
		if s.ClosedTrades == 1 || pnl > s.BestPnL {
			s.BestPnL = pnl
		}
		if s.ClosedTrades == 1 || pnl < s.WorstPnL {
			s.WorstPnL = pnl
		}
		s.RealisedPnL += pnl
		pctSum += pct
	}

	if s.ClosedTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.ClosedTrades) * 100
		s.AvgPnLPct = pctSum / float64(s.ClosedTrades)
	}
	return s
}
