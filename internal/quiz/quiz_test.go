package quiz

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docquiz/internal/models"
)

func sampleItems() []models.QuizItem {
	return []models.QuizItem{
		{Question: "Q1", Options: []string{"a", "b", "c", "d"}, Answer: "a", Explanation: "e1"},
		{Question: "Q2", Options: []string{"e", "f", "g", "h"}, Answer: "g", Explanation: "e2"},
		{Question: "Q3", Options: []string{"i", "j", "k", "l"}, Answer: "l", Explanation: "e3"},
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 10, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"cut", "abcdef", 3, "abc"},
		{"hangul", "가나다라마", 2, "가나"},
		{"zero", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.n))
		})
	}
}

func TestBuildPromptTruncatesMaterial(t *testing.T) {
	text := strings.Repeat("가", PromptTextLimit) + "TAIL"
	p := BuildPrompt(text, 7, PromptOptions{})

	assert.Contains(t, p, "write 7 multiple-choice")
	assert.Contains(t, p, "in Korean")
	assert.Contains(t, p, `"questions"`)
	assert.NotContains(t, p, "TAIL")
	assert.Contains(t, p, strings.Repeat("가", PromptTextLimit))
}

func TestBuildPromptLanguageAndLimit(t *testing.T) {
	p := BuildPrompt("abcdefghij", 3, PromptOptions{Language: "English", TextLimit: 4})
	assert.Contains(t, p, "in English")
	assert.Contains(t, p, "abcd\n")
	assert.NotContains(t, p, "abcde")
}

func TestBuildRegenPrompt(t *testing.T) {
	text := strings.Repeat("x", RegenTextLimit) + "TAIL"
	p := BuildRegenPrompt(text, PromptOptions{Existing: []string{" What is Go? ", "Who made it?"}})

	assert.Contains(t, p, "1 new multiple-choice")
	assert.Contains(t, p, "- What is Go?\n")
	assert.Contains(t, p, "- Who made it?\n")
	assert.NotContains(t, p, "TAIL")
}

func TestBuildRegenPromptWithoutExisting(t *testing.T) {
	p := BuildRegenPrompt("material", PromptOptions{})
	assert.NotContains(t, p, "Existing questions")
	assert.Contains(t, p, "material")
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `[1]`, StripCodeFence("```\n[1]\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence("  {\"a\":1}  "))
	assert.Equal(t, `[1]`, StripCodeFence("```json```[1]```"))
}

func TestParseItems(t *testing.T) {
	item := `{"question":"Q","options":["a","b","c","d"],"answer":"a","explanation":"x"}`

	tests := []struct {
		name  string
		raw   string
		count int
	}{
		{"list", "[" + item + "," + item + "]", 2},
		{"fenced list", "```json\n[" + item + "]\n```", 1},
		{"wrapped", `{"questions":[` + item + `]}`, 1},
		{"single object", item, 1},
		{"empty list", "[]", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := ParseItems(tt.raw)
			require.NoError(t, err)
			assert.Len(t, items, tt.count)
			for _, it := range items {
				assert.Equal(t, "Q", it.Question)
				assert.Equal(t, []string{"a", "b", "c", "d"}, it.Options)
			}
		})
	}
}

func TestParseItemsMalformed(t *testing.T) {
	for _, raw := range []string{"", "not json", `[{"question":`, `"just a string"`, `{"questions": 3}`} {
		items, err := ParseItems(raw)
		assert.ErrorIs(t, err, ErrMalformedResponse, "input %q", raw)
		assert.Nil(t, items)
	}
}

func TestParseItem(t *testing.T) {
	it, err := ParseItem(`[{"question":"first"},{"question":"second"}]`)
	require.NoError(t, err)
	assert.Equal(t, "first", it.Question)

	it, err = ParseItem(`{"question":"only"}`)
	require.NoError(t, err)
	assert.Equal(t, "only", it.Question)

	_, err = ParseItem(`[]`)
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestDelete(t *testing.T) {
	items := sampleItems()
	out, err := Delete(items, 1)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Q1", out[0].Question)
	assert.Equal(t, "Q3", out[1].Question)
	assert.Len(t, items, 3, "input is untouched")
	assert.Equal(t, "Q2", items[1].Question)
}

func TestReplace(t *testing.T) {
	items := sampleItems()
	out, err := Replace(items, 2, models.QuizItem{Question: "new"})
	require.NoError(t, err)
	assert.Equal(t, "new", out[2].Question)
	assert.Equal(t, "Q3", items[2].Question)
}

func TestIndexOutOfRange(t *testing.T) {
	items := sampleItems()
	for _, i := range []int{-1, 3, 10} {
		_, err := Delete(items, i)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
		_, err = Replace(items, i, models.QuizItem{})
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	}
	_, err := Delete(nil, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestQuestions(t *testing.T) {
	assert.Equal(t, []string{"Q1", "Q2", "Q3"}, Questions(sampleItems()))
	assert.Empty(t, Questions(nil))
}

func TestWriteCSV(t *testing.T) {
	items := sampleItems()[:1]
	items = append(items,
		models.QuizItem{Question: "short, with comma", Options: []string{"only"}, Answer: "only"},
		models.QuizItem{Question: "long", Options: []string{"1", "2", "3", "4", "5"}, Answer: "5"},
	)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, items))

	raw := buf.Bytes()
	require.True(t, bytes.HasPrefix(raw, utf8BOM))

	rows, err := csv.NewReader(bytes.NewReader(raw[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, ExportHeader, rows[0])
	assert.Equal(t, []string{"1", "Q1", "a", "b", "c", "d", "a", "e1"}, rows[1])
	assert.Equal(t, []string{"2", "short, with comma", "only", "", "", "", "only", ""}, rows[2])
	assert.Equal(t, []string{"3", "long", "1", "2", "3", "4", "5", ""}, rows[3])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes()[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
