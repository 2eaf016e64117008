package quiz

import (
	"errors"
	"fmt"

	"docquiz/internal/models"
)

var ErrIndexOutOfRange = errors.New("quiz item index out of range")

// Delete returns a new list without item i. The remaining items keep
// their order.
func Delete(items []models.QuizItem, i int) ([]models.QuizItem, error) {
	if err := checkIndex(items, i); err != nil {
		return nil, err
	}
	out := make([]models.QuizItem, 0, len(items)-1)
	out = append(out, items[:i]...)
	out = append(out, items[i+1:]...)
	return out, nil
}

// Replace returns a new list with item i swapped for item.
func Replace(items []models.QuizItem, i int, item models.QuizItem) ([]models.QuizItem, error) {
	if err := checkIndex(items, i); err != nil {
		return nil, err
	}
	out := make([]models.QuizItem, len(items))
	copy(out, items)
	out[i] = item
	return out, nil
}

// Questions returns the question text of every item.
func Questions(items []models.QuizItem) []string {
	qs := make([]string, len(items))
	for i, it := range items {
		qs[i] = it.Question
	}
	return qs
}

func checkIndex(items []models.QuizItem, i int) error {
	if i < 0 || i >= len(items) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, i, len(items))
	}
	return nil
}
