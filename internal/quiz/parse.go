package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"docquiz/internal/llm"
	"docquiz/internal/models"
)

var (
	ErrMalformedResponse = errors.New("malformed quiz response")
	ErrNoItems           = errors.New("response contained no quiz items")
)

// StripCodeFence removes a leading "```json" or "```" and a trailing "```".
func StripCodeFence(s string) string {
	return llm.CleanJSON(s)
}

// ParseItems decodes a model response into quiz items. It accepts a JSON
// list of items, an object with a "questions" list, or a single item. On
// malformed input it returns nil and an error wrapping ErrMalformedResponse.
func ParseItems(raw string) ([]models.QuizItem, error) {
	data := []byte(StripCodeFence(raw))
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	switch data[0] {
	case '[':
		var items []models.QuizItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return items, nil
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(data, &probe); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if qs, ok := probe["questions"]; ok {
			var items []models.QuizItem
			if err := json.Unmarshal(qs, &items); err != nil {
				return nil, fmt.Errorf("%w: questions: %v", ErrMalformedResponse, err)
			}
			return items, nil
		}
		var item models.QuizItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return []models.QuizItem{item}, nil
	}

	// Not JSON at all; surface the decoder's own message.
	var v any
	err := json.Unmarshal(data, &v)
	if err == nil {
		err = fmt.Errorf("unexpected JSON value %s", truncateBytes(data, 40))
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
}

// ParseItem decodes a single regenerated item. A list yields its first
// element; an empty list is ErrNoItems.
func ParseItem(raw string) (models.QuizItem, error) {
	items, err := ParseItems(raw)
	if err != nil {
		return models.QuizItem{}, err
	}
	if len(items) == 0 {
		return models.QuizItem{}, ErrNoItems
	}
	return items[0], nil
}

func truncateBytes(b []byte, n int) []byte {
	b = bytes.TrimSpace(b)
	if len(b) > n {
		return append(b[:n:n], "..."...)
	}
	return b
}
