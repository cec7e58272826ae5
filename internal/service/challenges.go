package service

import (
	"context"
	"errors"
	"fmt"

	"skillpath_miniapp/internal/model"
	"skillpath_miniapp/internal/repository"
)

var ErrInvalidChallenge = errors.New("invalid challenge definition")

type ChallengeServiceI interface {
	GetDayChallenge(ctx context.Context, day model.Weekday) (*model.DayChallenge, error)
	UpsertDayChallenge(ctx context.Context, challenge *model.DayChallenge) error
}

type ChallengeService struct {
	repo ChallengeRepository
}

func NewChallengeService(repo ChallengeRepository) *ChallengeService {
	return &ChallengeService{
		repo: repo,
	}
}

func (s *ChallengeService) GetDayChallenge(ctx context.Context, day model.Weekday) (*model.DayChallenge, error) {
	challenge, err := s.repo.GetDayChallenge(ctx, day)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get day challenge: %w", err)
	}
	return challenge, nil
}

func (s *ChallengeService) UpsertDayChallenge(ctx context.Context, challenge *model.DayChallenge) error {
	if DayIndex(challenge.Weekday) < 0 {
		return ErrNotFound
	}
	if challenge.Lives <= 0 || len(challenge.Questions) == 0 {
		return ErrInvalidChallenge
	}
	for _, q := range challenge.Questions {
		if len(q.Options) < 2 || q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
			return ErrInvalidChallenge
		}
	}

	if err := s.repo.UpsertDayChallenge(ctx, challenge); err != nil {
		return fmt.Errorf("failed to upsert day challenge: %w", err)
	}
	return nil
}
