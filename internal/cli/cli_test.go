package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stateDoc = `{
  "1001": {
    "http_rpc": "https://rpc.example.com",
    "ws_rpc": "",
    "silent": true,
    "subs": {
      "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU": {
        "alias": "whale",
        "added_at": "2025-02-01T10:00:00Z",
        "launchonly": true,
        "seen_mints": ["EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"],
        "min_sol": 0.5
      }
    }
  }
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TRACKER_STORE_BACKEND", "file")
	t.Setenv("SOLANA_RPC", "https://rpc.example.com")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestImportExportList(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "doc.json")
	statePath := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(docPath, []byte(stateDoc), 0o644))

	out, err := run(t, "--store", statePath, "import", docPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 subscribers")

	out, err = run(t, "--store", statePath, "export")
	require.NoError(t, err)
	assert.Contains(t, out, `"alias": "whale"`)
	assert.Contains(t, out, `"launchonly": true`)
	assert.Contains(t, out, `"min_sol": 0.5`)

	out, err = run(t, "--store", statePath, "list", "1001")
	require.NoError(t, err)
	assert.Contains(t, out, "https://solscan.io/address/7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU")

	out, err = run(t, "--store", statePath, "list", "1001", "--detail")
	require.NoError(t, err)
	assert.Contains(t, out, "whale")
	assert.Contains(t, out, "2025-02-01")
	assert.Contains(t, out, "🚀")

	out, err = run(t, "--store", statePath, "list", "2002")
	require.NoError(t, err)
	assert.Equal(t, "no wallets watched", strings.TrimSpace(out))
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "export.json")

	_, err := run(t, "--backend", "memory", "export", "-o", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestImport_BadDocument(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(docPath, []byte("not json"), 0o644))

	_, err := run(t, "--store", filepath.Join(dir, "state.json"), "import", docPath)
	assert.Error(t, err)
}

func TestMigrate_RequiresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("CLICKHOUSE_DSN", "")
	_, err := run(t, "--backend", "memory", "migrate")
	assert.Error(t, err)
}
