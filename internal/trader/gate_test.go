package trader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// TestGateAdmit tests ceiling and freshness decisions
func TestGateAdmit(t *testing.T) {
	tests := []struct {
		name       string
		open       int
		ttl        time.Duration
		clock      time.Time
		want       Admission
		wantStatus types.SignalStatus
	}{
		{"admitted below ceiling", 1, time.Hour, testNow, Admitted, types.SignalStatusApproved},
		{"deferred at ceiling", 2, time.Hour, testNow, Deferred, types.SignalStatusApproved},
		{"expired", 0, time.Hour, testNow.Add(2 * time.Hour), Expired, types.SignalStatusExpired},
		{"no expiry never expires", 0, 0, testNow.Add(48 * time.Hour), Admitted, types.SignalStatusApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := newTestStore()
			for i := 0; i < tt.open; i++ {
				openTrade(t, st, types.SideBuy, 100, 95, 110, 1)
			}
			sig := approvedSignal(t, st, "BTCUSDT", types.SideBuy, 100, 95, 110, tt.ttl)

			clock := tt.clock
			gate := NewGate(st, 2, WithClock(func() time.Time { return clock }))
			got, err := gate.Admit(ctx, sig)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			stored, err := st.GetSignal(ctx, sig.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)
		})
	}
}

// TestGateIneligible tests that only APPROVED signals pass
func TestGateIneligible(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	sig, err := st.CreateSignal(ctx, types.SignalCreate{
		Symbol: "BTCUSDT", Side: types.SideBuy, Confidence: 95,
		EntryPrice: 100, StopLossPrice: 95, TakeProfitPrice: 110,
	}, time.Hour)
	require.NoError(t, err)

	got, err := NewGate(st, 5).Admit(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, Ineligible, got)
	assert.Equal(t, "ineligible", got.String())
}

// TestGateRereadsOpenCount tests that each admission sees trades opened before it
func TestGateRereadsOpenCount(t *testing.T) {
	ctx := context.Background()
	st := newTestStore()
	gate := NewGate(st, 1, WithClock(fixedClock()))
	first := approvedSignal(t, st, "BTCUSDT", types.SideBuy, 100, 95, 110, time.Hour)
	second := approvedSignal(t, st, "ETHUSDT", types.SideBuy, 100, 95, 110, time.Hour)

	got, err := gate.Admit(ctx, first)
	require.NoError(t, err)
	require.Equal(t, Admitted, got)
	openTrade(t, st, types.SideBuy, 100, 95, 110, 1)

	got, err = gate.Admit(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, Deferred, got)
}
