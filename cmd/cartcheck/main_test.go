package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mixedCart = `[
	{"id": 1, "name": "Product A", "price": 10.00, "quantity": 2, "stock": 20},
	{"id": 2, "name": "Product B", "price": 25.50, "quantity": 1, "stock": 15},
	{"id": 3, "name": "Product C", "price": 7.99, "quantity": 3, "stock": 30}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunPrintsHealthyReport(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(nil, strings.NewReader(mixedCart), &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	out := stdout.String()
	assert.Contains(t, out, "Subtotal:  $69.47")
	assert.Contains(t, out, "Tax (10%): $6.95")
	assert.Contains(t, out, "Total:     $76.42")
	assert.Contains(t, out, "Status:      HEALTHY")
}

func TestRunVerifiesExpectedTotals(t *testing.T) {
	cartPath := writeFile(t, "cart.json", mixedCart)
	good := writeFile(t, "good.json", `{"subtotal": "69.47", "tax": "6.947", "shipping": 0, "total": "76.417", "totalItems": 6}`)
	bad := writeFile(t, "bad.json", `{"subtotal": "70.00", "tax": "6.95", "shipping": 0, "total": "76.42", "totalItems": 6}`)

	var stdout bytes.Buffer
	assert.Equal(t, exitOK, run([]string{"-file", cartPath, "-expect", good}, nil, &stdout, &bytes.Buffer{}))
	assert.Contains(t, stdout.String(), "PASSED")

	stdout.Reset()
	assert.Equal(t, exitProblems, run([]string{"-file", cartPath, "-expect", bad}, nil, &stdout, &bytes.Buffer{}))
	assert.Contains(t, stdout.String(), "subtotal: got 69.47, expected 70")
}

func TestRunReadsPersistedRecordAsJSON(t *testing.T) {
	record := `{"state": {"items": [{"id": "a", "name": "Lamp", "price": "5", "quantity": 9, "stock": 2}]}}`

	var stdout bytes.Buffer
	code := run([]string{"-json"}, strings.NewReader(record), &stdout, &bytes.Buffer{})

	assert.Equal(t, exitProblems, code)
	var rep struct {
		Health struct {
			IsHealthy bool     `json:"isHealthy"`
			Errors    []string `json:"errors"`
		} `json:"health"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	assert.False(t, rep.Health.IsHealthy)
	require.NotEmpty(t, rep.Health.Errors)
	assert.Contains(t, rep.Health.Errors[0], "exceeds available stock")
}

func TestRunRejectsNonArray(t *testing.T) {
	var stdout bytes.Buffer
	code := run(nil, strings.NewReader(`"nope"`), &stdout, &bytes.Buffer{})
	assert.Equal(t, exitProblems, code)
	assert.Contains(t, stdout.String(), "Cart items must be an array")
}

func TestRunMissingFile(t *testing.T) {
	var stderr bytes.Buffer
	code := run([]string{"-file", filepath.Join(t.TempDir(), "missing.json")}, nil, &bytes.Buffer{}, &stderr)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), "cartcheck:")
}

func TestRunDefaultsFileFromEnv(t *testing.T) {
	t.Setenv(envFile, writeFile(t, "cart.json", mixedCart))

	var stdout, stderr bytes.Buffer
	code := run(nil, strings.NewReader("not read"), &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), "Total:     $76.42")
}
