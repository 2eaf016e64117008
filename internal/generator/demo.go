package generator

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"docquiz/internal/llm"
	"docquiz/internal/models"
)

var demoSeq atomic.Int64

// DemoFallback answers requests for the mock provider so the UI can be
// tried without an API key. Full generations get three questions, single
// regenerations get one.
func DemoFallback(req llm.Request) llm.MockResponse {
	if req.Schema != nil && req.Schema.Name == ItemSchema.Name {
		return demoResponse(demoItem(int(demoSeq.Add(1))))
	}
	items := make([]models.QuizItem, 3)
	for i := range items {
		items[i] = demoItem(int(demoSeq.Add(1)))
	}
	return demoResponse(models.QuizResponse{Questions: items})
}

func demoItem(n int) models.QuizItem {
	options := []string{"Option A", "Option B", "Option C", "Option D"}
	return models.QuizItem{
		Question:    fmt.Sprintf("Demo question #%d", n),
		Options:     options,
		Answer:      options[n%len(options)],
		Explanation: "Generated by the offline demo provider.",
	}
}

func demoResponse(v any) llm.MockResponse {
	data, err := json.Marshal(v)
	if err != nil {
		return llm.MockResponse{Err: err}
	}
	return llm.MockResponse{Content: data}
}
