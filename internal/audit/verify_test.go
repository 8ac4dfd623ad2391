package audit

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeChain appends n records with distinct actions and closes the logger.
func writeChain(t *testing.T, n int) string {
	t.Helper()
	logger, path := openTestLogger(t)
	for i := 0; i < n; i++ {
		_, err := logger.Record(context.Background(), Event{
			Actor:  "actor",
			Action: []string{"first", "second", "third", "fourth", "fifth"}[i%5],
		})
		require.NoError(t, err)
	}
	require.NoError(t, logger.Close())
	return path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
}

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o640))
}

func requireIntegrityFailure(t *testing.T, path string, wantLine int) {
	t.Helper()
	report, err := VerifyChain(path, testSecret)
	assert.False(t, report.OK)
	assert.Equal(t, wantLine, report.ErrorLine)
	assert.Equal(t, wantLine-1, report.Count)

	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, wantLine, integrity.Line)
}

func TestVerifyDetectsEditedSemanticField(t *testing.T) {
	path := writeChain(t, 3)

	lines := readLines(t, path)
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &obj))
	obj["action"] = "tampered"
	edited, err := json.Marshal(obj)
	require.NoError(t, err)
	lines[1] = string(edited)
	writeLines(t, path, lines)

	requireIntegrityFailure(t, path, 2)
}

func TestVerifyDetectsFlippedChainFields(t *testing.T) {
	for _, field := range []string{"prevHash", "hash", "hmac"} {
		t.Run(field, func(t *testing.T) {
			path := writeChain(t, 3)

			lines := readLines(t, path)
			var obj map[string]any
			require.NoError(t, json.Unmarshal([]byte(lines[2]), &obj))
			stored := obj[field].(string)
			obj[field] = flipHexDigit(stored)
			edited, err := json.Marshal(obj)
			require.NoError(t, err)
			lines[2] = string(edited)
			writeLines(t, path, lines)

			requireIntegrityFailure(t, path, 3)
		})
	}
}

func TestVerifyDetectsReordering(t *testing.T) {
	path := writeChain(t, 3)

	lines := readLines(t, path)
	lines[0], lines[1] = lines[1], lines[0]
	writeLines(t, path, lines)

	// The swapped-in record's prevHash no longer matches GENESIS.
	requireIntegrityFailure(t, path, 1)
}

func TestVerifyDetectsTruncation(t *testing.T) {
	path := writeChain(t, 3)

	lines := readLines(t, path)
	writeLines(t, path, []string{lines[0], lines[2]})

	requireIntegrityFailure(t, path, 2)
}

func TestVerifyWrongSecret(t *testing.T) {
	path := writeChain(t, 2)

	report, err := VerifyChain(path, "not-the-secret")
	assert.False(t, report.OK)
	assert.Equal(t, 1, report.ErrorLine)
	var integrity *IntegrityError
	assert.ErrorAs(t, err, &integrity)
}

func TestVerifyToleratesTrailingPartialLine(t *testing.T) {
	path := writeChain(t, 2)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o640)
	require.NoError(t, err)
	_, err = f.WriteString(`{"id":"in-progress","ts":123`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	report, err := VerifyChain(path, testSecret)
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.Equal(t, 2, report.Count)
}

func TestVerifySkipsBlankLines(t *testing.T) {
	path := writeChain(t, 2)

	lines := readLines(t, path)
	writeLines(t, path, []string{lines[0], "", lines[1]})

	report, err := VerifyChain(path, testSecret)
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.Equal(t, 2, report.Count)
}

func TestVerifyEmptyLog(t *testing.T) {
	logger, path := openTestLogger(t)
	require.NoError(t, logger.Close())

	report, err := VerifyChain(path, testSecret)
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.Equal(t, 0, report.Count)
}

func TestVerifyMissingFile(t *testing.T) {
	_, err := VerifyChain("does/not/exist.log", testSecret)
	assert.Error(t, err)
	var integrity *IntegrityError
	assert.False(t, errors.As(err, &integrity))
}

func flipHexDigit(s string) string {
	b := []byte(s)
	if b[0] == 'a' {
		b[0] = 'b'
	} else {
		b[0] = 'a'
	}
	return string(b)
}
