package model

import (
	"time"

	"github.com/google/uuid"
)

type ChallengeQuestion struct {
	ID            uuid.UUID
	Prompt        string
	Options       []string
	CorrectOption int
	Explanation   string
}

// DayChallenge is the authored content for one weekday: a lives budget
// and an ordered question sequence.
type DayChallenge struct {
	Weekday   Weekday
	Lives     int
	Questions []ChallengeQuestion
	CreatedAt time.Time
}

func (c *DayChallenge) QuestionAt(index int) (*ChallengeQuestion, bool) {
	if index < 0 || index >= len(c.Questions) {
		return nil, false
	}
	return &c.Questions[index], true
}

func (c *DayChallenge) FindQuestion(id uuid.UUID) (int, bool) {
	for i := range c.Questions {
		if c.Questions[i].ID == id {
			return i, true
		}
	}
	return 0, false
}
