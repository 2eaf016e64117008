package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docquiz/internal/extract"
	"docquiz/internal/llm"
	"docquiz/internal/models"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, c := range append([]*cobra.Command{rootCmd}, rootCmd.Commands()...) {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), err
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func useMockProvider(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", llm.ProviderMock)
	t.Setenv("LOG_LEVEL", "error")
}

func TestExtractCommand(t *testing.T) {
	doc := writeDoc(t, "notes.txt", "Goroutines are cheap threads managed by the Go runtime.")

	out, err := execute(t, "extract", "--file", doc)
	require.NoError(t, err)
	assert.Equal(t, "Goroutines are cheap threads managed by the Go runtime.\n", out)

	out, err = execute(t, "extract", "--file", doc, "--preview", "10")
	require.NoError(t, err)
	assert.Equal(t, "Goroutines...\n", out)
}

func TestExtractCommandUnsupported(t *testing.T) {
	doc := writeDoc(t, "notes.doc", "text")
	_, err := execute(t, "extract", "--file", doc)
	assert.ErrorIs(t, err, extract.ErrUnsupportedFormat)
}

func TestGenerateCommandCSV(t *testing.T) {
	useMockProvider(t)
	doc := writeDoc(t, "notes.txt", "Channels connect goroutines.")
	out := filepath.Join(t.TempDir(), "quiz.csv")

	_, err := execute(t, "generate", "--file", doc, "--count", "2", "--out", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\uFEFF"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "No", rows[0][0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "2", rows[2][0])
}

func TestGenerateCommandJSONToStdout(t *testing.T) {
	useMockProvider(t)
	doc := writeDoc(t, "notes.txt", "Select waits on several channel operations.")

	out, err := execute(t, "generate", "--file", doc, "--count", "3", "--out", "-", "--json")
	require.NoError(t, err)

	var items []models.QuizItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 3)
	for _, it := range items {
		assert.Empty(t, it.Problems())
	}
}

func TestGenerateCommandMissingKey(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", llm.ProviderGemini)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("LOG_LEVEL", "error")
	doc := writeDoc(t, "notes.txt", "material")

	_, err := execute(t, "generate", "--file", doc, "--out", "-")
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)
}

func TestGenerateCommandRequiresFile(t *testing.T) {
	_, err := execute(t, "generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "file" not set`)
}
