package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pyhabit/internal/models"
)

func TestAggregateOrdersByCategoryThenLine(t *testing.T) {
	native := []models.Finding{
		{Line: 9, Message: "habit", Category: models.CategoryBadHabit, Source: models.SourceAST},
		{Line: 4, Message: "loop", Category: models.CategoryFatalError, Source: models.SourceAST},
		{Line: 2, Message: "default", Category: models.CategoryRuntimeError, Source: models.SourceAST},
	}
	bridged := []models.Finding{
		{Line: 1, Message: "undefined", Category: models.CategoryRuntimeError, Source: models.SourcePylint},
		{Line: 0, Message: "Failed to parse pylint output", Category: models.CategoryRuntimeError, Source: models.SourceSystem},
	}

	got := Aggregate(native, bridged)

	var messages []string
	for _, f := range got {
		messages = append(messages, f.Message)
	}
	assert.Equal(t, []string{"loop", "Failed to parse pylint output", "undefined", "default", "habit"}, messages)
}

func TestAggregateKeepsDuplicatesInInputOrder(t *testing.T) {
	native := []models.Finding{{Line: 3, Message: "ast", Category: models.CategoryRuntimeError, Source: models.SourceAST}}
	bridged := []models.Finding{{Line: 3, Message: "pylint", Category: models.CategoryRuntimeError, Source: models.SourcePylint}}

	got := Aggregate(native, bridged)
	if assert.Len(t, got, 2) {
		assert.Equal(t, "ast", got[0].Message)
		assert.Equal(t, "pylint", got[1].Message)
	}
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, Aggregate(nil, nil))
}

func TestAggregateUnknownCategorySortsLast(t *testing.T) {
	got := Aggregate([]models.Finding{
		{Line: 1, Message: "odd", Category: models.Category(42)},
		{Line: 5, Message: "habit", Category: models.CategoryBadHabit},
	}, nil)
	assert.Equal(t, "habit", got[0].Message)
	assert.Equal(t, "odd", got[1].Message)
}
