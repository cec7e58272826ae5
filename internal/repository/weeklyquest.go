package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"skillpath_miniapp/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type questWeekRow struct {
	UserTelegramID        int64          `db:"user_telegram_id"`
	WeekStartDate         time.Time      `db:"week_start_date"`
	DayStates             []byte         `db:"day_states"`
	CurrentStreak         int            `db:"current_streak"`
	LongestStreak         int            `db:"longest_streak"`
	DutyPasses            int            `db:"duty_passes"`
	LastDutyPassClaimWeek *time.Time     `db:"last_duty_pass_claim_week"`
	CompletedDays         pq.StringArray `db:"completed_days"`
	TotalQuestsCompleted  int            `db:"total_quests_completed"`
	RewardClaimed         bool           `db:"reward_claimed"`
	RewardXP              int            `db:"reward_xp"`
	ClaimedAt             *time.Time     `db:"claimed_at"`
	Version               int64          `db:"version"`
}

var questWeekColumns = []string{
	"user_telegram_id",
	"week_start_date",
	"day_states",
	"current_streak",
	"longest_streak",
	"duty_passes",
	"last_duty_pass_claim_week",
	"completed_days",
	"total_quests_completed",
	"reward_claimed",
	"reward_xp",
	"claimed_at",
	"version",
}

func (row *questWeekRow) toModel() (*model.QuestWeekState, error) {
	dayStates := make(map[model.Weekday]*model.QuestDayState)
	if len(row.DayStates) > 0 {
		if err := json.Unmarshal(row.DayStates, &dayStates); err != nil {
			return nil, fmt.Errorf("failed to decode day states: %w", err)
		}
	}

	completed := make([]model.Weekday, len(row.CompletedDays))
	for i, d := range row.CompletedDays {
		completed[i] = model.Weekday(d)
	}

	return &model.QuestWeekState{
		UserTelegramID:        row.UserTelegramID,
		WeekStartDate:         row.WeekStartDate,
		DayStates:             dayStates,
		CurrentStreak:         row.CurrentStreak,
		LongestStreak:         row.LongestStreak,
		DutyPasses:            row.DutyPasses,
		LastDutyPassClaimWeek: row.LastDutyPassClaimWeek,
		Progress: model.WeeklyProgress{
			CompletedDays:        completed,
			TotalQuestsCompleted: row.TotalQuestsCompleted,
			RewardClaimed:        row.RewardClaimed,
			RewardXP:             row.RewardXP,
			ClaimedAt:            row.ClaimedAt,
		},
		Version: row.Version,
	}, nil
}

func questWeekValues(state *model.QuestWeekState) (map[string]interface{}, error) {
	dayStates, err := json.Marshal(state.DayStates)
	if err != nil {
		return nil, fmt.Errorf("failed to encode day states: %w", err)
	}

	completed := make(pq.StringArray, len(state.Progress.CompletedDays))
	for i, d := range state.Progress.CompletedDays {
		completed[i] = string(d)
	}

	return map[string]interface{}{
		"week_start_date":           state.WeekStartDate,
		"day_states":                dayStates,
		"current_streak":            state.CurrentStreak,
		"longest_streak":            state.LongestStreak,
		"duty_passes":               state.DutyPasses,
		"last_duty_pass_claim_week": state.LastDutyPassClaimWeek,
		"completed_days":            completed,
		"total_quests_completed":    state.Progress.TotalQuestsCompleted,
		"reward_claimed":            state.Progress.RewardClaimed,
		"reward_xp":                 state.Progress.RewardXP,
		"claimed_at":                state.Progress.ClaimedAt,
	}, nil
}

func (r *Repository) GetQuestWeekState(ctx context.Context, telegramID int64) (*model.QuestWeekState, error) {
	query, args, err := squirrel.
		Select(questWeekColumns...).
		From("quest_weeks").
		Where(squirrel.Eq{"user_telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row questWeekRow
	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return row.toModel()
}

func (r *Repository) CreateQuestWeekState(ctx context.Context, state *model.QuestWeekState) error {
	values, err := questWeekValues(state)
	if err != nil {
		return err
	}
	values["user_telegram_id"] = state.UserTelegramID
	values["version"] = int64(1)

	query, args, err := squirrel.
		Insert("quest_weeks").
		SetMap(values).
		Suffix("ON CONFLICT (user_telegram_id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert quest week: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Another request created the row first.
		return ErrVersionConflict
	}

	state.Version = 1
	return nil
}

// UpdateQuestWeekState performs the optimistic-lock write: the row is
// only updated when its stored version still matches state.Version.
func (r *Repository) UpdateQuestWeekState(ctx context.Context, state *model.QuestWeekState) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		return r.updateQuestWeekStateTx(ctx, tx, state)
	})
}

func (r *Repository) updateQuestWeekStateTx(ctx context.Context, tx *sqlx.Tx, state *model.QuestWeekState) error {
	values, err := questWeekValues(state)
	if err != nil {
		return err
	}
	values["version"] = state.Version + 1

	query, args, err := squirrel.
		Update("quest_weeks").
		SetMap(values).
		Where(squirrel.Eq{
			"user_telegram_id": state.UserTelegramID,
			"version":          state.Version,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update quest week: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrVersionConflict
	}

	state.Version++
	return nil
}

// SaveWithDutyPassClaim commits the week state together with the
// append-only weekly claim record. The unique index on
// duty_pass_claims (user, week) backs up the in-state claim guard.
func (r *Repository) SaveWithDutyPassClaim(ctx context.Context, state *model.QuestWeekState) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.updateQuestWeekStateTx(ctx, tx, state); err != nil {
			return err
		}

		query, args, err := squirrel.
			Insert("duty_pass_claims").
			SetMap(map[string]interface{}{
				"user_telegram_id": state.UserTelegramID,
				"week_start_date":  state.WeekStartDate,
				"claimed_at":       time.Now().UTC(),
			}).
			Suffix("ON CONFLICT (user_telegram_id, week_start_date) DO NOTHING").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to record duty pass claim: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyClaimed
		}

		return nil
	})
}

// SaveWithXPGrant commits the week state and the XP grant atomically,
// so a reward can never be marked claimed without the XP landing (or
// vice versa).
func (r *Repository) SaveWithXPGrant(ctx context.Context, state *model.QuestWeekState, xp int) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.updateQuestWeekStateTx(ctx, tx, state); err != nil {
			return err
		}
		return r.grantXPTx(ctx, tx, state.UserTelegramID, xp)
	})
}
