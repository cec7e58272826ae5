package service

import (
	"context"
	"errors"
	"time"

	"skillpath_miniapp/internal/model"
	"skillpath_miniapp/internal/repository"

	"github.com/google/uuid"
)

// casRetryLimit bounds how often an operation re-runs after losing the
// optimistic-lock race before surfacing ErrConcurrentUpdate.
const casRetryLimit = 3

type QuestConfig struct {
	RewardBaseXP       int
	PerfectWeekBonusXP int
}

type WeeklyQuestService struct {
	repo       WeeklyQuestRepository
	challenges ChallengeRepository
	users      UserRepository
	events     *QuestNotifier
	rewardBot  *RewardBot
	cfg        QuestConfig

	now func() time.Time
}

func NewWeeklyQuestService(
	repo WeeklyQuestRepository,
	challenges ChallengeRepository,
	users UserRepository,
	events *QuestNotifier,
	rewardBot *RewardBot,
	cfg QuestConfig,
) *WeeklyQuestService {
	return &WeeklyQuestService{
		repo:       repo,
		challenges: challenges,
		users:      users,
		events:     events,
		rewardBot:  rewardBot,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type persistFunc func(ctx context.Context, state *model.QuestWeekState) error

// mutate is the single write path: load the user's week row, apply the
// rollover and missed-day classification, run the operation, persist
// with the version check. A lost race reloads and replays the whole
// sequence so the operation always sees calendar-consistent state.
func (s *WeeklyQuestService) mutate(
	ctx context.Context,
	telegramID int64,
	op func(state *model.QuestWeekState, cal Calendar) (persistFunc, error),
) (*model.QuestWeekState, Calendar, error) {
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		state, err := s.loadState(ctx, telegramID)
		if err != nil {
			return nil, Calendar{}, err
		}

		cal := ResolveCalendar(s.now(), state.WeekStartDate)
		s.advanceCalendar(state, &cal)

		persist, err := op(state, cal)
		if err != nil {
			return nil, Calendar{}, err
		}
		if persist == nil {
			persist = s.repo.UpdateQuestWeekState
		}

		err = persist(ctx, state)
		if err == nil {
			return state, cal, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, Calendar{}, err
		}
	}

	return nil, Calendar{}, ErrConcurrentUpdate
}

func (s *WeeklyQuestService) loadState(ctx context.Context, telegramID int64) (*model.QuestWeekState, error) {
	state, err := s.repo.GetQuestWeekState(ctx, telegramID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if _, err := s.users.GetUserByTelegramID(ctx, telegramID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	state = newWeekState(telegramID, WeekStart(s.now()))
	err = s.repo.CreateQuestWeekState(ctx, state)
	if err == nil {
		return state, nil
	}
	if errors.Is(err, repository.ErrVersionConflict) {
		// Lost the creation race; the row exists now.
		return s.repo.GetQuestWeekState(ctx, telegramID)
	}
	return nil, err
}

func newWeekState(telegramID int64, weekStart time.Time) *model.QuestWeekState {
	return &model.QuestWeekState{
		UserTelegramID: telegramID,
		WeekStartDate:  weekStart,
		DayStates:      freshDayStates(),
		Progress:       model.WeeklyProgress{CompletedDays: []model.Weekday{}},
	}
}

func freshDayStates() map[model.Weekday]*model.QuestDayState {
	states := make(map[model.Weekday]*model.QuestDayState, len(model.QuestWeekdays))
	for _, day := range model.QuestWeekdays {
		states[day] = &model.QuestDayState{Status: model.DayNotStarted}
	}
	return states
}

// advanceCalendar performs the idempotent rollover and marks days whose
// date has passed. Returns true when the state changed.
func (s *WeeklyQuestService) advanceCalendar(state *model.QuestWeekState, cal *Calendar) bool {
	changed := false

	if cal.WeeksElapsed >= 1 {
		s.rollover(state, *cal)
		cal.WeeksElapsed = 0
		changed = true
	}

	if markMissedDays(state, *cal) {
		changed = true
	}

	return changed
}

func (s *WeeklyQuestService) rollover(state *model.QuestWeekState, cal Calendar) {
	// A fully completed week carries the streak into the new week.
	// Anything less, or skipping whole weeks, breaks it; duty passes
	// only rescue single days inside an active week.
	if cal.WeeksElapsed > 1 || state.Progress.TotalQuestsCompleted < len(model.QuestWeekdays) {
		state.CurrentStreak = 0
	}

	state.WeekStartDate = WeekStart(s.now())
	state.DayStates = freshDayStates()
	state.Progress = model.WeeklyProgress{CompletedDays: []model.Weekday{}}
}

func markMissedDays(state *model.QuestWeekState, cal Calendar) bool {
	changed := false
	today := cal.todayIndex()
	for i, day := range model.QuestWeekdays {
		if i >= today {
			break
		}
		ds := state.Day(day)
		if ds.UnlockedViaPass {
			continue
		}
		if ds.Status == model.DayNotStarted || ds.Status == model.DayInProgress {
			ds.Status = model.DayMissed
			changed = true
		}
	}
	return changed
}

func canPlay(ds *model.QuestDayState, day model.Weekday, cal Calendar) bool {
	if ds.Status == model.DayUnlockedViaPass {
		return true
	}
	playable := ds.Status == model.DayNotStarted || ds.Status == model.DayInProgress
	if ds.UnlockedViaPass {
		// A rescued day stays playable on any later date.
		return playable
	}
	return cal.CurrentDay == day && playable
}

func (s *WeeklyQuestService) SubmitAnswer(
	ctx context.Context,
	telegramID int64,
	day model.Weekday,
	questionID uuid.UUID,
	selectedOption int,
) (*model.AnswerResult, error) {
	if DayIndex(day) < 0 {
		return nil, ErrNotFound
	}

	var result *model.AnswerResult
	var completedDay bool

	state, _, err := s.mutate(ctx, telegramID, func(state *model.QuestWeekState, cal Calendar) (persistFunc, error) {
		result = nil
		completedDay = false

		ds := state.Day(day)
		if !canPlay(ds, day, cal) {
			return nil, ErrInvalidState
		}

		challenge, err := s.challenges.GetDayChallenge(ctx, day)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}

		if ds.Status != model.DayInProgress {
			if ds.Status == model.DayUnlockedViaPass {
				ds.UnlockedViaPass = true
			}
			ds.Status = model.DayInProgress
			ds.LivesRemaining = challenge.Lives
			ds.CurrentQuestionIndex = 0
			ds.Score = 0
		}

		question, ok := challenge.QuestionAt(ds.CurrentQuestionIndex)
		if !ok {
			return nil, ErrInvalidState
		}
		if question.ID != questionID {
			if _, known := challenge.FindQuestion(questionID); !known {
				return nil, ErrNotFound
			}
			// Known question submitted out of order.
			return nil, ErrInvalidState
		}

		correct := selectedOption == question.CorrectOption
		if correct {
			ds.Score++
		} else {
			ds.LivesRemaining--
		}
		ds.CurrentQuestionIndex++

		switch {
		case ds.LivesRemaining <= 0:
			ds.Status = model.DayFailed
			ds.EverFailed = true
		case ds.CurrentQuestionIndex >= len(challenge.Questions):
			ds.Status = model.DayCompleted
			s.recordCompletion(state, day)
			completedDay = true
		}

		result = &model.AnswerResult{
			IsCorrect:      correct,
			CorrectOption:  question.CorrectOption,
			Explanation:    question.Explanation,
			LivesRemaining: ds.LivesRemaining,
			Score:          ds.Score,
			IsCompleted:    ds.Status == model.DayCompleted,
			IsFailed:       ds.Status == model.DayFailed,
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	if completedDay {
		s.events.Publish(telegramID, model.QuestEvent{
			Type: model.EventDayCompleted,
			Payload: map[string]any{
				"day":            string(day),
				"completed_days": state.Progress.TotalQuestsCompleted,
				"current_streak": state.CurrentStreak,
			},
		})
	}

	return result, nil
}

func (s *WeeklyQuestService) recordCompletion(state *model.QuestWeekState, day model.Weekday) {
	if state.HasCompleted(day) {
		return
	}
	state.Progress.CompletedDays = append(state.Progress.CompletedDays, day)
	state.Progress.TotalQuestsCompleted = len(state.Progress.CompletedDays)
	state.CurrentStreak++
	if state.CurrentStreak > state.LongestStreak {
		state.LongestStreak = state.CurrentStreak
	}
}

func (s *WeeklyQuestService) ResetDay(ctx context.Context, telegramID int64, day model.Weekday) (*model.DayStatusView, error) {
	if DayIndex(day) < 0 {
		return nil, ErrNotFound
	}

	var questionCount int

	state, cal, err := s.mutate(ctx, telegramID, func(state *model.QuestWeekState, cal Calendar) (persistFunc, error) {
		ds := state.Day(day)
		if ds.Status != model.DayFailed {
			return nil, ErrInvalidState
		}

		challenge, err := s.challenges.GetDayChallenge(ctx, day)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		questionCount = len(challenge.Questions)

		ds.Status = model.DayNotStarted
		ds.LivesRemaining = challenge.Lives
		ds.CurrentQuestionIndex = 0
		ds.Score = 0
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	view := buildDayView(state, day, cal, questionCount)
	return &view, nil
}

func (s *WeeklyQuestService) ClaimDutyPass(ctx context.Context, telegramID int64) (int, error) {
	state, _, err := s.mutate(ctx, telegramID, func(state *model.QuestWeekState, cal Calendar) (persistFunc, error) {
		if !cal.IsWeekend {
			return nil, ErrInvalidState
		}
		if state.LastDutyPassClaimWeek != nil && state.LastDutyPassClaimWeek.Equal(state.WeekStartDate) {
			return nil, ErrAlreadyClaimed
		}

		state.DutyPasses++
		claimWeek := state.WeekStartDate
		state.LastDutyPassClaimWeek = &claimWeek
		return s.repo.SaveWithDutyPassClaim, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyClaimed) {
			return 0, ErrAlreadyClaimed
		}
		return 0, err
	}

	return state.DutyPasses, nil
}

func (s *WeeklyQuestService) UseDutyPass(ctx context.Context, telegramID int64, day model.Weekday) (*model.QuestStatus, error) {
	if DayIndex(day) < 0 {
		return nil, ErrNotFound
	}

	state, cal, err := s.mutate(ctx, telegramID, func(state *model.QuestWeekState, cal Calendar) (persistFunc, error) {
		ds := state.Day(day)
		if ds.Status != model.DayMissed {
			return nil, ErrNotMissed
		}
		if state.DutyPasses <= 0 {
			return nil, ErrInsufficientPasses
		}

		state.DutyPasses--
		ds.Status = model.DayUnlockedViaPass
		ds.UnlockedViaPass = true
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	challenges, err := s.challenges.GetWeekChallenges(ctx)
	if err != nil {
		return nil, err
	}
	return s.project(state, cal, challenges), nil
}

func (s *WeeklyQuestService) ClaimReward(ctx context.Context, telegramID int64) (int, error) {
	var xp int

	_, _, err := s.mutate(ctx, telegramID, func(state *model.QuestWeekState, cal Calendar) (persistFunc, error) {
		if state.Progress.RewardClaimed {
			return nil, ErrAlreadyClaimed
		}
		if state.Progress.TotalQuestsCompleted < len(model.QuestWeekdays) {
			return nil, ErrNotReady
		}

		xp = s.cfg.RewardBaseXP
		if perfectWeek(state) {
			xp += s.cfg.PerfectWeekBonusXP
		}

		now := s.now()
		state.Progress.RewardClaimed = true
		state.Progress.RewardXP = xp
		state.Progress.ClaimedAt = &now

		grant := xp
		return func(ctx context.Context, state *model.QuestWeekState) error {
			return s.repo.SaveWithXPGrant(ctx, state, grant)
		}, nil
	})
	if err != nil {
		return 0, err
	}

	s.events.Publish(telegramID, model.QuestEvent{
		Type:    model.EventRewardClaimed,
		Payload: map[string]any{"reward_xp": xp},
	})
	s.rewardBot.NotifyRewardClaimed(telegramID, xp)

	return xp, nil
}

func perfectWeek(state *model.QuestWeekState) bool {
	for _, day := range model.QuestWeekdays {
		if state.Day(day).EverFailed {
			return false
		}
	}
	return true
}

func (s *WeeklyQuestService) GetStatus(ctx context.Context, telegramID int64) (*model.QuestStatus, error) {
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		state, err := s.loadState(ctx, telegramID)
		if err != nil {
			return nil, err
		}

		cal := ResolveCalendar(s.now(), state.WeekStartDate)
		if s.advanceCalendar(state, &cal) {
			err = s.repo.UpdateQuestWeekState(ctx, state)
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			if err != nil {
				return nil, err
			}
		}

		challenges, err := s.challenges.GetWeekChallenges(ctx)
		if err != nil {
			return nil, err
		}
		return s.project(state, cal, challenges), nil
	}

	return nil, ErrConcurrentUpdate
}

func (s *WeeklyQuestService) project(
	state *model.QuestWeekState,
	cal Calendar,
	challenges map[model.Weekday]*model.DayChallenge,
) *model.QuestStatus {
	status := &model.QuestStatus{
		UserTelegramID: state.UserTelegramID,
		WeekStartDate:  state.WeekStartDate,
		IsWeekend:      cal.IsWeekend,
		DutyPasses:     state.DutyPasses,
		CurrentStreak:  state.CurrentStreak,
		LongestStreak:  state.LongestStreak,
		Progress:       state.Progress,
	}
	if cal.IsWeekend {
		status.CurrentDay = "weekend"
	} else {
		status.CurrentDay = string(cal.CurrentDay)
	}

	status.Days = make([]model.DayStatusView, 0, len(model.QuestWeekdays))
	for _, day := range model.QuestWeekdays {
		questionCount := 0
		if challenge, ok := challenges[day]; ok {
			questionCount = len(challenge.Questions)
		}
		status.Days = append(status.Days, buildDayView(state, day, cal, questionCount))
	}

	potential := s.cfg.RewardBaseXP
	if perfectWeek(state) {
		potential += s.cfg.PerfectWeekBonusXP
	}
	ready := state.Progress.TotalQuestsCompleted >= len(model.QuestWeekdays)
	status.RewardChest = model.RewardChest{
		IsLocked:    !ready,
		IsReady:     ready && !state.Progress.RewardClaimed,
		IsClaimed:   state.Progress.RewardClaimed,
		PotentialXP: potential,
		CanClaim:    ready && !state.Progress.RewardClaimed,
	}

	return status
}

func buildDayView(state *model.QuestWeekState, day model.Weekday, cal Calendar, questionCount int) model.DayStatusView {
	ds := state.Day(day)
	view := model.DayStatusView{
		Day:                  day,
		Status:               ds.Status,
		LivesRemaining:       ds.LivesRemaining,
		CurrentQuestionIndex: ds.CurrentQuestionIndex,
		Score:                ds.Score,
		QuestionCount:        questionCount,
	}

	// Days strictly after today project as locked.
	if DayIndex(day) > cal.todayIndex() && ds.Status == model.DayNotStarted {
		view.Status = model.DayLocked
		return view
	}

	view.CanAccess = canPlay(ds, day, cal)
	view.IsMissed = ds.Status == model.DayMissed
	view.NeedsDutyPass = view.IsMissed
	return view
}
