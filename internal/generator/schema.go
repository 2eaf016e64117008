package generator

import "docquiz/internal/llm"

func itemDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{"type": "string"},
			"options": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"answer":      map[string]any{"type": "string"},
			"explanation": map[string]any{"type": "string"},
		},
		"required":             []any{"question", "options", "answer", "explanation"},
		"additionalProperties": false,
	}
}

// lenientItem is what a returned item must look like to be kept. Missing
// answers or explanations and extra keys are reported as warnings later.
func lenientItem() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{"type": "string"},
			"options": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"answer":      map[string]any{"type": "string"},
			"explanation": map[string]any{"type": "string"},
		},
		"required": []any{"question", "options"},
	}
}

func lenientList() map[string]any {
	return map[string]any{"type": "array", "items": lenientItem()}
}

// QuizSchema is requested for a full generation: an object wrapping the
// question list.
var QuizSchema = &llm.Schema{
	Name:        "quiz-items",
	Description: "A list of four-option multiple-choice quiz questions",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":  "array",
				"items": itemDefinition(),
			},
		},
		"required":             []any{"questions"},
		"additionalProperties": false,
	},
	// quiz.ParseItems also takes a bare list or a single question.
	Validation: map[string]any{
		"oneOf": []any{
			map[string]any{
				"type":       "object",
				"properties": map[string]any{"questions": lenientList()},
				"required":   []any{"questions"},
			},
			lenientList(),
			lenientItem(),
		},
	},
}

// ItemSchema is requested when a single question is regenerated.
var ItemSchema = &llm.Schema{
	Name:        "quiz-item",
	Description: "One four-option multiple-choice quiz question",
	Definition:  itemDefinition(),
	// quiz.ParseItem takes the first element of a list.
	Validation: map[string]any{
		"oneOf": []any{lenientItem(), lenientList()},
	},
}
