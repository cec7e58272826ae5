package model

import "time"

type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
)

// QuestWeekdays lists the playable days in week order.
var QuestWeekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

type DayStatus string

const (
	DayNotStarted      DayStatus = "not_started"
	DayInProgress      DayStatus = "in_progress"
	DayCompleted       DayStatus = "completed"
	DayFailed          DayStatus = "failed"
	DayMissed          DayStatus = "missed"
	DayUnlockedViaPass DayStatus = "unlocked_via_pass"

	// DayLocked only appears in projections, for days strictly after
	// the current weekday. It is never stored.
	DayLocked DayStatus = "locked"
)

type QuestDayState struct {
	Status               DayStatus `json:"status"`
	LivesRemaining       int       `json:"lives_remaining"`
	CurrentQuestionIndex int       `json:"current_question_index"`
	Score                int       `json:"score"`
	EverFailed           bool      `json:"ever_failed"`

	// UnlockedViaPass marks a day rescued with a duty pass. It outlives
	// the unlocked_via_pass status: once play starts the status moves
	// through in_progress like any other day, and this flag is what
	// keeps the past-date day playable instead of falling back to
	// missed.
	UnlockedViaPass bool `json:"unlocked_via_pass,omitempty"`
}

type WeeklyProgress struct {
	CompletedDays        []Weekday
	TotalQuestsCompleted int
	RewardClaimed        bool
	RewardXP             int
	ClaimedAt            *time.Time
}

// QuestWeekState is the single current-week row for a user. Version is
// the optimistic-lock counter; every successful save increments it.
type QuestWeekState struct {
	UserTelegramID        int64
	WeekStartDate         time.Time
	DayStates             map[Weekday]*QuestDayState
	CurrentStreak         int
	LongestStreak         int
	DutyPasses            int
	LastDutyPassClaimWeek *time.Time
	Progress              WeeklyProgress
	Version               int64
}

func (s *QuestWeekState) Day(d Weekday) *QuestDayState {
	ds, ok := s.DayStates[d]
	if !ok {
		ds = &QuestDayState{Status: DayNotStarted}
		s.DayStates[d] = ds
	}
	return ds
}

func (s *QuestWeekState) HasCompleted(d Weekday) bool {
	for _, c := range s.Progress.CompletedDays {
		if c == d {
			return true
		}
	}
	return false
}

type AnswerResult struct {
	IsCorrect      bool
	CorrectOption  int
	Explanation    string
	LivesRemaining int
	Score          int
	IsCompleted    bool
	IsFailed       bool
}

type RewardChest struct {
	IsLocked    bool
	IsReady     bool
	IsClaimed   bool
	PotentialXP int
	CanClaim    bool
}

type DayStatusView struct {
	Day                  Weekday
	Status               DayStatus
	CanAccess            bool
	IsMissed             bool
	NeedsDutyPass        bool
	LivesRemaining       int
	CurrentQuestionIndex int
	Score                int
	QuestionCount        int
}

type QuestStatus struct {
	UserTelegramID int64
	WeekStartDate  time.Time
	CurrentDay     string
	IsWeekend      bool
	Days           []DayStatusView
	DutyPasses     int
	CurrentStreak  int
	LongestStreak  int
	Progress       WeeklyProgress
	RewardChest    RewardChest
}

type QuestEvent struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

const (
	EventDayCompleted  = "day_completed"
	EventRewardClaimed = "reward_claimed"
)
