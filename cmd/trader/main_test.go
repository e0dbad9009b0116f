package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
trading:
  min_confidence: 85
  signal_expiry: 2h
exchange:
  name: bybit
  category: spot
store:
  driver: file
  path: %s
logging:
  level: debug
  dir: %s
`, filepath.Join(dir, "state.json"), filepath.Join(dir, "logs"))
	path := filepath.Join(dir, "trader.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0600))
	return path, dir
}

func execute(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfg, "--env", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// TestSignalCommands tests the offline signal workflow against a file store
func TestSignalCommands(t *testing.T) {
	cfg, _ := writeConfig(t)

	out, err := execute(t, cfg, "signals", "submit", "--symbol", "ethusdt", "--side", "sell", "--confidence", "91", "--entry", "2000")
	require.NoError(t, err)
	assert.Contains(t, out, "SELL ETHUSDT entry 2000 stop 2040 target 1920")

	_, err = execute(t, cfg, "signals", "submit", "--symbol", "BTCUSDT", "--side", "BUY", "--confidence", "50", "--entry", "60000")
	assert.Error(t, err)

	out, err = execute(t, cfg, "signals", "list", "--status", "pending", "--json")
	require.NoError(t, err)
	var signals []types.Signal
	require.NoError(t, json.Unmarshal([]byte(out), &signals))
	require.Len(t, signals, 1)

	out, err = execute(t, cfg, "signals", "approve", signals[0].ID, "--by", "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "is now APPROVED")

	_, err = execute(t, cfg, "signals", "reject", signals[0].ID)
	assert.Error(t, err)

	out, err = execute(t, cfg, "signals", "show", signals[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, `"approved_by": "ops"`)
}

// TestSignalSubmitFromFile tests reading a signal from YAML
func TestSignalSubmitFromFile(t *testing.T) {
	cfg, dir := writeConfig(t)
	file := filepath.Join(dir, "signal.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
symbol: BTCUSDT
signal_type: BUY
confidence: 95
entry_price: 60000
stop_loss_price: 58800
take_profit_price: 63000
analysis_summary: breakout
`), 0600))

	out, err := execute(t, cfg, "signals", "submit", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "BUY BTCUSDT entry 60000 stop 58800 target 63000")
}

// TestExportAndTrades tests the journal commands on an empty store
func TestExportAndTrades(t *testing.T) {
	cfg, dir := writeConfig(t)

	out, err := execute(t, cfg, "trades")
	require.NoError(t, err)
	assert.Contains(t, out, "SUMMARY")

	target := filepath.Join(dir, "out", "journal.json")
	out, err = execute(t, cfg, "export", "--out", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 0 trade(s)")
	assert.FileExists(t, target)

	_, err = execute(t, cfg, "export", "--format", "pdf", "--dir", dir)
	assert.Error(t, err)
}

// TestRunNeedsCredentials tests that trading commands refuse to start without keys
func TestRunNeedsCredentials(t *testing.T) {
	cfg, _ := writeConfig(t)
	t.Setenv("BYBIT_API_KEY", "")
	t.Setenv("BYBIT_API_SECRET", "")

	_, err := execute(t, cfg, "cycle")
	assert.Error(t, err)
}
