package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"skillpath_miniapp/internal/model"
	"skillpath_miniapp/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQuestStore mimics the Postgres repository, including the
// version check on writes, so the CAS retry path is exercised for
// real. forcedConflicts injects lost races.
type fakeQuestStore struct {
	mu              sync.Mutex
	states          map[int64]*model.QuestWeekState
	users           map[int64]*model.User
	challenges      map[model.Weekday]*model.DayChallenge
	claims          map[string]bool
	xpGrants        []int
	forcedConflicts int
}

func newFakeQuestStore() *fakeQuestStore {
	return &fakeQuestStore{
		states:     make(map[int64]*model.QuestWeekState),
		users:      make(map[int64]*model.User),
		challenges: make(map[model.Weekday]*model.DayChallenge),
		claims:     make(map[string]bool),
	}
}

func cloneState(st *model.QuestWeekState) *model.QuestWeekState {
	c := *st
	c.DayStates = make(map[model.Weekday]*model.QuestDayState, len(st.DayStates))
	for d, ds := range st.DayStates {
		dup := *ds
		c.DayStates[d] = &dup
	}
	c.Progress.CompletedDays = append([]model.Weekday(nil), st.Progress.CompletedDays...)
	if st.LastDutyPassClaimWeek != nil {
		t := *st.LastDutyPassClaimWeek
		c.LastDutyPassClaimWeek = &t
	}
	if st.Progress.ClaimedAt != nil {
		t := *st.Progress.ClaimedAt
		c.Progress.ClaimedAt = &t
	}
	return &c
}

func (f *fakeQuestStore) GetQuestWeekState(ctx context.Context, telegramID int64) (*model.QuestWeekState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.states[telegramID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneState(st), nil
}

func (f *fakeQuestStore) CreateQuestWeekState(ctx context.Context, state *model.QuestWeekState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[state.UserTelegramID]; ok {
		return repository.ErrVersionConflict
	}
	state.Version = 1
	f.states[state.UserTelegramID] = cloneState(state)
	return nil
}

func (f *fakeQuestStore) UpdateQuestWeekState(ctx context.Context, state *model.QuestWeekState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updateLocked(state)
}

func (f *fakeQuestStore) updateLocked(state *model.QuestWeekState) error {
	if f.forcedConflicts > 0 {
		f.forcedConflicts--
		return repository.ErrVersionConflict
	}
	stored, ok := f.states[state.UserTelegramID]
	if !ok || stored.Version != state.Version {
		return repository.ErrVersionConflict
	}
	state.Version++
	f.states[state.UserTelegramID] = cloneState(state)
	return nil
}

func (f *fakeQuestStore) SaveWithDutyPassClaim(ctx context.Context, state *model.QuestWeekState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%d/%s", state.UserTelegramID, state.WeekStartDate.Format("2006-01-02"))
	if f.claims[key] {
		return repository.ErrAlreadyClaimed
	}
	if err := f.updateLocked(state); err != nil {
		return err
	}
	f.claims[key] = true
	return nil
}

func (f *fakeQuestStore) SaveWithXPGrant(ctx context.Context, state *model.QuestWeekState, xp int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateLocked(state); err != nil {
		return err
	}
	f.xpGrants = append(f.xpGrants, xp)
	if user, ok := f.users[state.UserTelegramID]; ok {
		user.XP += xp
	}
	return nil
}

func (f *fakeQuestStore) CreateUser(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.TelegramID] = user
	return nil
}

func (f *fakeQuestStore) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[telegramID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func (f *fakeQuestStore) GetDayChallenge(ctx context.Context, day model.Weekday) (*model.DayChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.challenges[day]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ch, nil
}

func (f *fakeQuestStore) GetWeekChallenges(ctx context.Context) (map[model.Weekday]*model.DayChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[model.Weekday]*model.DayChallenge, len(f.challenges))
	for d, ch := range f.challenges {
		out[d] = ch
	}
	return out, nil
}

func (f *fakeQuestStore) UpsertDayChallenge(ctx context.Context, challenge *model.DayChallenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenges[challenge.Weekday] = challenge
	return nil
}

func buildChallenge(day model.Weekday, lives, questions int) *model.DayChallenge {
	ch := &model.DayChallenge{
		Weekday:   day,
		Lives:     lives,
		Questions: make([]model.ChallengeQuestion, questions),
	}
	for i := range ch.Questions {
		ch.Questions[i] = model.ChallengeQuestion{
			ID:            uuid.New(),
			Prompt:        fmt.Sprintf("%s question %d", day, i+1),
			Options:       []string{"first", "second", "third"},
			CorrectOption: 0,
			Explanation:   "the first option is always right here",
		}
	}
	return ch
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

var (
	testMonday    = time.Date(2024, 11, 4, 9, 0, 0, 0, time.UTC)
	testWednesday = time.Date(2024, 11, 6, 9, 0, 0, 0, time.UTC)
	testSaturday  = time.Date(2024, 11, 9, 12, 0, 0, 0, time.UTC)
	testWeekStart = time.Date(2024, 11, 4, 0, 0, 0, 0, time.UTC)
)

const testUserID int64 = 42

func newTestService(store *fakeQuestStore, clock *fakeClock, events *QuestNotifier) *WeeklyQuestService {
	if events == nil {
		events = NewQuestNotifier()
	}
	svc := NewWeeklyQuestService(store, store, store, events, nil, QuestConfig{
		RewardBaseXP:       500,
		PerfectWeekBonusXP: 150,
	})
	svc.now = clock.Now
	return svc
}

func seedStore(store *fakeQuestStore, weekStart time.Time, mutate func(st *model.QuestWeekState)) {
	store.users[testUserID] = &model.User{TelegramID: testUserID, Username: "learner"}
	st := newWeekState(testUserID, weekStart)
	st.Version = 1
	if mutate != nil {
		mutate(st)
	}
	store.states[testUserID] = st
}

func TestSubmitAnswer_LivesAndFailure(t *testing.T) {
	store := newFakeQuestStore()
	store.users[testUserID] = &model.User{TelegramID: testUserID}
	ch := buildChallenge(model.Monday, 3, 4)
	store.challenges[model.Monday] = ch

	clock := &fakeClock{t: testMonday}
	svc := newTestService(store, clock, nil)
	ctx := context.Background()

	submit := func(i, option int) *model.AnswerResult {
		res, err := svc.SubmitAnswer(ctx, testUserID, model.Monday, ch.Questions[i].ID, option)
		require.NoError(t, err)
		return res
	}

	res := submit(0, 0)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, 3, res.LivesRemaining)
	assert.Equal(t, 1, res.Score)

	res = submit(1, 2)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, 2, res.LivesRemaining)

	res = submit(2, 2)
	assert.Equal(t, 1, res.LivesRemaining)
	assert.False(t, res.IsFailed)

	res = submit(3, 2)
	assert.Equal(t, 0, res.LivesRemaining)
	assert.True(t, res.IsFailed)
	assert.False(t, res.IsCompleted)

	st := store.states[testUserID]
	assert.Equal(t, model.DayFailed, st.DayStates[model.Monday].Status)
	assert.True(t, st.DayStates[model.Monday].EverFailed)
	assert.Empty(t, st.Progress.CompletedDays)
	assert.Equal(t, 0, st.CurrentStreak)

	// The day ended; further answers are rejected.
	_, err := svc.SubmitAnswer(ctx, testUserID, model.Monday, ch.Questions[3].ID, 0)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSubmitAnswer_CompletesDay(t *testing.T) {
	store := newFakeQuestStore()
	store.users[testUserID] = &model.User{TelegramID: testUserID}
	ch := buildChallenge(model.Monday, 3, 3)
	store.challenges[model.Monday] = ch

	clock := &fakeClock{t: testMonday}
	events := NewQuestNotifier()
	svc := newTestService(store, clock, events)
	sub := events.Subscribe(testUserID)
	ctx := context.Background()

	var res *model.AnswerResult
	var err error
	for i := range ch.Questions {
		res, err = svc.SubmitAnswer(ctx, testUserID, model.Monday, ch.Questions[i].ID, 0)
		require.NoError(t, err)
	}

	assert.True(t, res.IsCompleted)
	assert.False(t, res.IsFailed)
	assert.Equal(t, 3, res.Score)

	st := store.states[testUserID]
	assert.Equal(t, model.DayCompleted, st.DayStates[model.Monday].Status)
	assert.Equal(t, []model.Weekday{model.Monday}, st.Progress.CompletedDays)
	assert.Equal(t, 1, st.Progress.TotalQuestsCompleted)
	assert.Equal(t, 1, st.CurrentStreak)
	assert.Equal(t, 1, st.LongestStreak)

	select {
	case event := <-sub:
		assert.Equal(t, model.EventDayCompleted, event.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a day_completed event")
	}
}

func TestSubmitAnswer_QuestionOrdering(t *testing.T) {
	store := newFakeQuestStore()
	store.users[testUserID] = &model.User{TelegramID: testUserID}
	ch := buildChallenge(model.Monday, 3, 3)
	store.challenges[model.Monday] = ch

	svc := newTestService(store, &fakeClock{t: testMonday}, nil)
	ctx := context.Background()

	// Second question submitted before the first.
	_, err := svc.SubmitAnswer(ctx, testUserID, model.Monday, ch.Questions[1].ID, 0)
	assert.ErrorIs(t, err, ErrInvalidState)

	// A question id the day has never heard of.
	_, err = svc.SubmitAnswer(ctx, testUserID, model.Monday, uuid.New(), 0)
	assert.ErrorIs(t, err, ErrNotFound)

	// A day outside the quest week.
	_, err = svc.SubmitAnswer(ctx, testUserID, model.Weekday("sunday"), ch.Questions[0].ID, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGating_Projection(t *testing.T) {
	store := newFakeQuestStore()
	seedStore(store, testWeekStart, nil)
	for _, day := range model.QuestWeekdays {
		store.challenges[day] = buildChallenge(day, 3, 3)
	}

	svc := newTestService(store, &fakeClock{t: testWednesday}, nil)

	status, err := svc.GetStatus(context.Background(), testUserID)
	require.NoError(t, err)

	byDay := make(map[model.Weekday]model.DayStatusView)
	for _, d := range status.Days {
		byDay[d.Day] = d
	}

	assert.Equal(t, model.DayMissed, byDay[model.Monday].Status)
	assert.True(t, byDay[model.Monday].NeedsDutyPass)
	assert.False(t, byDay[model.Monday].CanAccess)

	assert.Equal(t, model.DayMissed, byDay[model.Tuesday].Status)

	assert.Equal(t, model.DayNotStarted, byDay[model.Wednesday].Status)
	assert.True(t, byDay[model.Wednesday].CanAccess)

	assert.Equal(t, model.DayLocked, byDay[model.Thursday].Status)
	assert.False(t, byDay[model.Thursday].CanAccess)
	assert.Equal(t, model.DayLocked, byDay[model.Friday].Status)
	assert.False(t, byDay[model.Friday].CanAccess)

	// The missed classification was persisted, not just projected.
	st := store.states[testUserID]
	assert.Equal(t, model.DayMissed, st.DayStates[model.Monday].Status)
}

func TestClaimDutyPass(t *testing.T) {
	store := newFakeQuestStore()
	seedStore(store, testWeekStart, nil)

	clock := &fakeClock{t: testWednesday}
	svc := newTestService(store, clock, nil)
	ctx := context.Background()

	// Weekday: the claim window is closed.
	_, err := svc.ClaimDutyPass(ctx, testUserID)
	assert.ErrorIs(t, err, ErrInvalidState)

	clock.Set(testSaturday)
	passes, err := svc.ClaimDutyPass(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, 1, passes)

	// Second claim in the same week is rejected, count stays put.
	_, err = svc.ClaimDutyPass(ctx, testUserID)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.Equal(t, 1, store.states[testUserID].DutyPasses)
}

func TestUseDutyPass(t *testing.T) {
	store := newFakeQuestStore()
	seedStore(store, testWeekStart, func(st *model.QuestWeekState) {
		st.DutyPasses = 1
	})
	for _, day := range model.QuestWeekdays {
		store.challenges[day] = buildChallenge(day, 3, 3)
	}

	svc := newTestService(store, &fakeClock{t: testWednesday}, nil)
	ctx := context.Background()

	// Wednesday is not missed.
	_, err := svc.UseDutyPass(ctx, testUserID, model.Wednesday)
	assert.ErrorIs(t, err, ErrNotMissed)

	status, err := svc.UseDutyPass(ctx, testUserID, model.Tuesday)
	require.NoError(t, err)
	assert.Equal(t, 0, status.DutyPasses)

	var tuesday model.DayStatusView
	for _, d := range status.Days {
		if d.Day == model.Tuesday {
			tuesday = d
		}
	}
	assert.Equal(t, model.DayUnlockedViaPass, tuesday.Status)
	assert.True(t, tuesday.CanAccess)

	// Monday is still missed but the passes are spent.
	_, err = svc.UseDutyPass(ctx, testUserID, model.Monday)
	assert.ErrorIs(t, err, ErrInsufficientPasses)
	assert.Equal(t, 0, store.states[testUserID].DutyPasses)
}

func TestUnlockedDayPlaysLikeFresh(t *testing.T) {
	store := newFakeQuestStore()
	seedStore(store, testWeekStart, func(st *model.QuestWeekState) {
		st.DutyPasses = 1
	})
	ch := buildChallenge(model.Tuesday, 3, 2)
	store.challenges[model.Tuesday] = ch

	svc := newTestService(store, &fakeClock{t: testWednesday}, nil)
	ctx := context.Background()

	_, err := svc.UseDutyPass(ctx, testUserID, model.Tuesday)
	require.NoError(t, err)

	// Each answer is its own request, with a status read in between:
	// the unlock must survive reloads once the day is in progress.
	_, err = svc.SubmitAnswer(ctx, testUserID, model.Tuesday, ch.Questions[0].ID, 0)
	require.NoError(t, err)

	status, err := svc.GetStatus(ctx, testUserID)
	require.NoError(t, err)
	for _, d := range status.Days {
		if d.Day == model.Tuesday {
			assert.Equal(t, model.DayInProgress, d.Status)
			assert.True(t, d.CanAccess)
		}
	}

	res, err := svc.SubmitAnswer(ctx, testUserID, model.Tuesday, ch.Questions[1].ID, 0)
	require.NoError(t, err)
	assert.True(t, res.IsCompleted)

	st := store.states[testUserID]
	assert.Equal(t, model.DayCompleted, st.DayStates[model.Tuesday].Status)
	assert.Equal(t, 1, st.Progress.TotalQuestsCompleted)
	assert.Equal(t, 1, st.CurrentStreak)
}

func TestUnlockedDayFailureAndReset(t *testing.T) {
	store := newFakeQuestStore()
	seedStore(store, testWeekStart, func(st *model.QuestWeekState) {
		st.DutyPasses = 1
	})
	ch := buildChallenge(model.Monday, 1, 2)
	store.challenges[model.Monday] = ch

	svc := newTestService(store, &fakeClock{t: testWednesday}, nil)
	ctx := context.Background()

	_, err := svc.UseDutyPass(ctx, testUserID, model.Monday)
	require.NoError(t, err)

	res, err := svc.SubmitAnswer(ctx, testUserID, model.Monday, ch.Questions[0].ID, 1)
	require.NoError(t, err)
	assert.True(t, res.IsFailed)

	// A failed rescued day resets and stays playable on its later date.
	view, err := svc.ResetDay(ctx, testUserID, model.Monday)
	require.NoError(t, err)
	assert.True(t, view.CanAccess)

	for i := range ch.Questions {
		_, err = svc.SubmitAnswer(ctx, testUserID, model.Monday, ch.Questions[i].ID, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, model.DayCompleted, store.states[testUserID].DayStates[model.Monday].Status)
}

func TestResetDay(t *testing.T) {
	store := newFakeQuestStore()
	seedStore(store, testWeekStart, func(st *model.QuestWeekState) {
		ds := st.Day(model.Wednesday)
		ds.Status = model.DayFailed
		ds.LivesRemaining = 0
		ds.CurrentQuestionIndex = 2
		ds.Score = 1
		ds.EverFailed = true
	})
	store.challenges[model.Wednesday] = buildChallenge(model.Wednesday, 3, 4)

	svc := newTestService(store, &fakeClock{t: testWednesday}, nil)
	ctx := context.Background()

	view, err := svc.ResetDay(ctx, testUserID, model.Wednesday)
	require.NoError(t, err)
	assert.Equal(t, model.DayNotStarted, view.Status)
	assert.Equal(t, 3, view.LivesRemaining)
	assert.Equal(t, 0, view.CurrentQuestionIndex)
	assert.Equal(t, 0, view.Score)
	assert.True(t, view.CanAccess)

	// The failure stays on the record for the perfect-week bonus.
	assert.True(t, store.states[testUserID].DayStates[model.Wednesday].EverFailed)

	// Only a failed day can be reset.
	_, err = svc.ResetDay(ctx, testUserID, model.Wednesday)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func completeWeek(st *model.QuestWeekState) {
	for _, day := range model.QuestWeekdays {
		ds := st.Day(day)
		ds.Status = model.DayCompleted
		ds.Score = 3
		ds.LivesRemaining = 3
		st.Progress.CompletedDays = append(st.Progress.CompletedDays, day)
	}
	st.Progress.TotalQuestsCompleted = len(st.Progress.CompletedDays)
	st.CurrentStreak = 5
	st.LongestStreak = 5
}

func TestClaimReward(t *testing.T) {
	store := newFakeQuestStore()
	seedStore(store, testWeekStart, completeWeek)

	svc := newTestService(store, &fakeClock{t: testSaturday}, nil)
	ctx := context.Background()

	xp, err := svc.ClaimReward(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, 650, xp)
	assert.Equal(t, []int{650}, store.xpGrants)

	st := store.states[testUserID]
	assert.True(t, st.Progress.RewardClaimed)
	assert.Equal(t, 650, st.Progress.RewardXP)
	assert.NotNil(t, st.Progress.ClaimedAt)

	// Second claim is rejected and no XP moves.
	_, err = svc.ClaimReward(ctx, testUserID)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	assert.Equal(t, []int{650}, store.xpGrants)
}

func TestClaimReward_FlatWhenWeekHadFailures(t *testing.T) {
	store := newFakeQuestStore()
	seedStore(store, testWeekStart, func(st *model.QuestWeekState) {
		completeWeek(st)
		st.Day(model.Tuesday).EverFailed = true
	})

	svc := newTestService(store, &fakeClock{t: testSaturday}, nil)

	xp, err := svc.ClaimReward(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 500, xp)
}

func TestClaimReward_NotReady(t *testing.T) {
	store := newFakeQuestStore()
	seedStore(store, testWeekStart, func(st *model.QuestWeekState) {
		st.Progress.CompletedDays = []model.Weekday{model.Monday, model.Tuesday, model.Wednesday}
		st.Progress.TotalQuestsCompleted = 3
	})

	svc := newTestService(store, &fakeClock{t: testSaturday}, nil)

	_, err := svc.ClaimReward(context.Background(), testUserID)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Empty(t, store.xpGrants)
}

func TestRollover(t *testing.T) {
	priorWeek := time.Date(2024, 10, 28, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		seed           func(st *model.QuestWeekState)
		now            time.Time
		expectedStreak int
	}{
		{
			name:           "Full week carries the streak",
			seed:           completeWeek,
			now:            testMonday,
			expectedStreak: 5,
		},
		{
			name: "Partial week breaks the streak",
			seed: func(st *model.QuestWeekState) {
				st.Progress.CompletedDays = []model.Weekday{model.Monday, model.Tuesday, model.Wednesday}
				st.Progress.TotalQuestsCompleted = 3
				st.CurrentStreak = 3
				st.LongestStreak = 8
			},
			now:            testMonday,
			expectedStreak: 0,
		},
		{
			name: "Skipping whole weeks breaks the streak even after a full week",
			seed: completeWeek,
			// Two weeks after the seeded week start.
			now:            time.Date(2024, 11, 13, 9, 0, 0, 0, time.UTC),
			expectedStreak: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeQuestStore()
			seedStore(store, priorWeek, func(st *model.QuestWeekState) {
				tt.seed(st)
				st.DutyPasses = 2
				claimWeek := priorWeek
				st.LastDutyPassClaimWeek = &claimWeek
			})

			svc := newTestService(store, &fakeClock{t: tt.now}, nil)

			status, err := svc.GetStatus(context.Background(), testUserID)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedStreak, status.CurrentStreak)
			assert.Equal(t, WeekStart(tt.now), status.WeekStartDate)
			assert.Empty(t, status.Progress.CompletedDays)
			assert.False(t, status.Progress.RewardClaimed)

			// Duty passes and the claim marker survive the rollover.
			st := store.states[testUserID]
			assert.Equal(t, 2, st.DutyPasses)
			require.NotNil(t, st.LastDutyPassClaimWeek)
			assert.True(t, st.LastDutyPassClaimWeek.Equal(priorWeek))

			for _, day := range model.QuestWeekdays {
				assert.NotEqual(t, model.DayCompleted, st.Day(day).Status)
			}
		})
	}
}

func TestLongestStreakNeverDecreases(t *testing.T) {
	store := newFakeQuestStore()
	seedStore(store, time.Date(2024, 10, 28, 0, 0, 0, 0, time.UTC), func(st *model.QuestWeekState) {
		st.CurrentStreak = 3
		st.LongestStreak = 9
		st.Progress.CompletedDays = []model.Weekday{model.Monday, model.Tuesday, model.Wednesday}
		st.Progress.TotalQuestsCompleted = 3
	})
	store.challenges[model.Monday] = buildChallenge(model.Monday, 3, 1)
	ch := store.challenges[model.Monday]

	svc := newTestService(store, &fakeClock{t: testMonday}, nil)
	ctx := context.Background()

	status, err := svc.GetStatus(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, 0, status.CurrentStreak)
	assert.Equal(t, 9, status.LongestStreak)

	_, err = svc.SubmitAnswer(ctx, testUserID, model.Monday, ch.Questions[0].ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 9, store.states[testUserID].LongestStreak)
	assert.Equal(t, 1, store.states[testUserID].CurrentStreak)
}

func TestConcurrentUpdate(t *testing.T) {
	store := newFakeQuestStore()
	seedStore(store, testWeekStart, completeWeek)
	store.forcedConflicts = casRetryLimit

	svc := newTestService(store, &fakeClock{t: testSaturday}, nil)

	_, err := svc.ClaimReward(context.Background(), testUserID)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.Empty(t, store.xpGrants)

	// One lost race is absorbed by the retry loop.
	store.forcedConflicts = 1
	xp, err := svc.ClaimReward(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 650, xp)
	assert.Equal(t, []int{650}, store.xpGrants)
}

func TestFirstAccessCreatesWeekState(t *testing.T) {
	store := newFakeQuestStore()
	store.users[testUserID] = &model.User{TelegramID: testUserID}

	svc := newTestService(store, &fakeClock{t: testMonday}, nil)

	status, err := svc.GetStatus(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, testWeekStart, status.WeekStartDate)
	assert.Equal(t, 0, status.DutyPasses)
	assert.True(t, status.RewardChest.IsLocked)

	// An unregistered user never gets a quest week.
	_, err = svc.GetStatus(context.Background(), int64(777))
	assert.ErrorIs(t, err, ErrUserNotFound)
}
