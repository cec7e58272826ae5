package repository

import (
	"testing"

	"skillpath_miniapp/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGroupChallengeRows(t *testing.T) {
	monQ1 := uuid.New()
	monQ2 := uuid.New()
	friQ1 := uuid.New()

	rows := []challengeQuestionRow{
		{QuestionID: monQ1, Weekday: "monday", Position: 0, Prompt: "first", Lives: 3},
		{QuestionID: monQ2, Weekday: "monday", Position: 1, Prompt: "second", Lives: 3},
		{QuestionID: friQ1, Weekday: "friday", Position: 0, Prompt: "other", Lives: 5},
	}

	challenges := groupChallengeRows(rows)
	assert.Len(t, challenges, 2)

	monday := challenges[model.Monday]
	assert.Equal(t, 3, monday.Lives)
	assert.Len(t, monday.Questions, 2)
	assert.Equal(t, monQ1, monday.Questions[0].ID)
	assert.Equal(t, monQ2, monday.Questions[1].ID)

	friday := challenges[model.Friday]
	assert.Equal(t, 5, friday.Lives)
	assert.Len(t, friday.Questions, 1)
	assert.Equal(t, friQ1, friday.Questions[0].ID)

	assert.Empty(t, groupChallengeRows(nil))
}
