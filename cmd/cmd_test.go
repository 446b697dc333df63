package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		ledgerOpts.window, ledgerOpts.format, ledgerOpts.output, ledgerOpts.at = "", "csv", "-", ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestHashPassword(t *testing.T) {
	out, err := execute(t, "", "hash-password", "s3cret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("s3cret")))

	out, err = execute(t, "from-stdin\n", "hash-password")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("from-stdin")))

	_, err = execute(t, "", "hash-password")
	assert.Error(t, err)
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	data := "timestamp,consumption_kW,production_kW\n" +
		"2024-01-01T00:00:00Z,2,1\n" +
		"2024-01-01T01:00:00Z,3,1\n" +
		"2024-01-01T02:00:00Z,1,1\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "house.csv"), []byte(data), 0o644))
	cfg := "log:\n  level: error\n" +
		"source:\n  type: csv\n  conf:\n    dir: " + dir + "\n" +
		"ledger:\n  sample_cadence_seconds: 3600\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func TestLedgerCommand(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "", "ledger", "-c", cfg, "--meter", "house", "--window", "year")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "timestamp,"))
	assert.True(t, strings.HasSuffix(lines[2], ",-1"))
	assert.True(t, strings.HasSuffix(lines[3], ",1"))

	pdf := filepath.Join(t.TempDir(), "report.pdf")
	_, err = execute(t, "", "ledger", "-c", cfg, "--meter", "house", "--format", "pdf", "--output", pdf)
	require.NoError(t, err)
	body, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))

	_, err = execute(t, "", "ledger", "-c", cfg, "--meter", "house", "--format", "docx")
	assert.Error(t, err)
	_, err = execute(t, "", "ledger", "-c", cfg, "--meter", "house", "--window", "fortnight")
	assert.Error(t, err)
}
