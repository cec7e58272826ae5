package service

import (
	"context"
	"errors"

	"skillpath_miniapp/internal/model"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrNotFound     = errors.New("unknown day or question")

	// ErrInvalidState covers every operation attempted against a day
	// in the wrong state: answering a locked, missed, completed or
	// failed day, resetting a day that has not failed, claiming a
	// duty pass outside the weekend window.
	ErrInvalidState = errors.New("operation not allowed in current state")

	ErrAlreadyClaimed     = errors.New("already claimed this week")
	ErrInsufficientPasses = errors.New("no duty passes available")
	ErrNotMissed          = errors.New("day is not missed")
	ErrNotReady           = errors.New("reward chest is not ready")

	// ErrConcurrentUpdate is the only retryable outcome: the per-user
	// optimistic lock kept conflicting past the retry bound.
	ErrConcurrentUpdate = errors.New("concurrent update, retry")
)

type Service struct {
	*UserService
	*WeeklyQuestService
}

func NewService(userService *UserService, weeklyQuestService *WeeklyQuestService) *Service {
	return &Service{
		UserService:        userService,
		WeeklyQuestService: weeklyQuestService,
	}
}

type UserServiceI interface {
	RegisterUser(ctx context.Context, user *model.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
}

type WeeklyQuestServiceI interface {
	GetStatus(ctx context.Context, telegramID int64) (*model.QuestStatus, error)
	SubmitAnswer(ctx context.Context, telegramID int64, day model.Weekday, questionID uuid.UUID, selectedOption int) (*model.AnswerResult, error)
	ResetDay(ctx context.Context, telegramID int64, day model.Weekday) (*model.DayStatusView, error)
	ClaimDutyPass(ctx context.Context, telegramID int64) (int, error)
	UseDutyPass(ctx context.Context, telegramID int64, day model.Weekday) (*model.QuestStatus, error)
	ClaimReward(ctx context.Context, telegramID int64) (int, error)
}

type WeeklyQuestRepository interface {
	GetQuestWeekState(ctx context.Context, telegramID int64) (*model.QuestWeekState, error)
	CreateQuestWeekState(ctx context.Context, state *model.QuestWeekState) error
	UpdateQuestWeekState(ctx context.Context, state *model.QuestWeekState) error
	SaveWithDutyPassClaim(ctx context.Context, state *model.QuestWeekState) error
	SaveWithXPGrant(ctx context.Context, state *model.QuestWeekState, xp int) error
}

type ChallengeRepository interface {
	GetDayChallenge(ctx context.Context, day model.Weekday) (*model.DayChallenge, error)
	GetWeekChallenges(ctx context.Context) (map[model.Weekday]*model.DayChallenge, error)
	UpsertDayChallenge(ctx context.Context, challenge *model.DayChallenge) error
}
