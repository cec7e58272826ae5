package mocks

import (
	"context"

	"skillpath_miniapp/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

type MockChallengeRepository struct {
	mock.Mock
}

func (m *MockChallengeRepository) GetDayChallenge(ctx context.Context, day model.Weekday) (*model.DayChallenge, error) {
	args := m.Called(ctx, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DayChallenge), args.Error(1)
}

func (m *MockChallengeRepository) GetWeekChallenges(ctx context.Context) (map[model.Weekday]*model.DayChallenge, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[model.Weekday]*model.DayChallenge), args.Error(1)
}

func (m *MockChallengeRepository) UpsertDayChallenge(ctx context.Context, challenge *model.DayChallenge) error {
	args := m.Called(ctx, challenge)
	return args.Error(0)
}

type MockWeeklyQuestRepository struct {
	mock.Mock
}

func (m *MockWeeklyQuestRepository) GetQuestWeekState(ctx context.Context, telegramID int64) (*model.QuestWeekState, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QuestWeekState), args.Error(1)
}

func (m *MockWeeklyQuestRepository) CreateQuestWeekState(ctx context.Context, state *model.QuestWeekState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockWeeklyQuestRepository) UpdateQuestWeekState(ctx context.Context, state *model.QuestWeekState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockWeeklyQuestRepository) SaveWithDutyPassClaim(ctx context.Context, state *model.QuestWeekState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockWeeklyQuestRepository) SaveWithXPGrant(ctx context.Context, state *model.QuestWeekState, xp int) error {
	args := m.Called(ctx, state, xp)
	return args.Error(0)
}
