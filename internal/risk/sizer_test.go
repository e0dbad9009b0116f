package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSizer(t *testing.T) {
	_, err := NewSizer(0, DefaultSafetyCap)
	assert.Error(t, err)
	_, err = NewSizer(DefaultRiskFraction, 1.5)
	assert.Error(t, err)

	s, err := NewSizer(DefaultRiskFraction, DefaultSafetyCap)
	require.NoError(t, err)
	assert.Equal(t, 0.02, s.RiskFraction)
}

// TestSizer_RiskBudget tests that the loss at the stop equals the risk budget
func TestSizer_RiskBudget(t *testing.T) {
	s := &Sizer{RiskFraction: 0.02, SafetyCap: 0.95}

	tests := []struct {
		name   string
		equity float64
		entry  float64
		stop   float64
	}{
		{"buy wide stop", 10000, 50000, 45000},
		{"sell stop above", 10000, 3000, 3300},
		{"small account", 250, 2, 1.5},
		{"large account", 1e6, 100, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qty, err := s.Size(tt.equity, tt.entry, tt.stop)
			require.NoError(t, err)

			loss := qty * math.Abs(tt.entry-tt.stop)
			assert.InDelta(t, tt.equity*s.RiskFraction, loss, 1e-6)
			assert.LessOrEqual(t, qty*tt.entry, tt.equity*s.SafetyCap+1e-9)
		})
	}
}

// TestSizer_NotionalCap tests the clamp when the stop is very tight
func TestSizer_NotionalCap(t *testing.T) {
	s := &Sizer{RiskFraction: 0.02, SafetyCap: 0.95}

	// 10000*0.02/10 = 20 BTC, far above 0.95*10000/50000 = 0.19
	qty, err := s.Size(10000, 50000, 49990)
	require.NoError(t, err)
	assert.InDelta(t, 0.19, qty, 1e-12)
	assert.LessOrEqual(t, qty*50000, 9500.0+1e-9)
}

func TestSizer_InvalidStopDistance(t *testing.T) {
	s := &Sizer{RiskFraction: 0.02, SafetyCap: 0.95}

	_, err := s.Size(10000, 50000, 50000)
	assert.ErrorIs(t, err, ErrInvalidStopDistance)

	_, err = s.Size(0, 50000, 49000)
	assert.ErrorIs(t, err, ErrNoEquity)

	_, err = s.Size(1000, 0, 49000)
	assert.Error(t, err)
}

func TestFloorToStep(t *testing.T) {
	tests := []struct {
		qty  float64
		step float64
		want float64
	}{
		{0.0199, 0.001, 0.019},
		{0.3, 0.1, 0.3},
		{1.23456, 0.01, 1.23},
		{7.9, 1, 7},
		{0.5, 0, 0.5},
		{0.0009, 0.001, 0},
		{-1, 0.1, 0},
	}

	for _, tt := range tests {
		got := FloorToStep(tt.qty, tt.step)
		assert.Equal(t, tt.want, got, "FloorToStep(%v, %v)", tt.qty, tt.step)
		assert.LessOrEqual(t, got, math.Max(tt.qty, 0))
	}
}
