package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"skillpath_miniapp/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type challengeQuestionRow struct {
	QuestionID    uuid.UUID      `db:"question_id"`
	Weekday       string         `db:"weekday"`
	Position      int            `db:"position"`
	Prompt        string         `db:"prompt"`
	Options       pq.StringArray `db:"options"`
	CorrectOption int            `db:"correct_option"`
	Explanation   string         `db:"explanation"`
	Lives         int            `db:"lives"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r *Repository) GetDayChallenge(ctx context.Context, day model.Weekday) (*model.DayChallenge, error) {
	query, args, err := squirrel.
		Select(
			"qq.question_id",
			"qq.weekday",
			"qq.position",
			"qq.prompt",
			"qq.options",
			"qq.correct_option",
			"qq.explanation",
			"qc.lives",
			"qc.created_at",
		).
		From("quest_questions qq").
		Join("quest_challenges qc ON qc.weekday = qq.weekday").
		Where(squirrel.Eq{"qq.weekday": string(day)}).
		OrderBy("qq.position").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build challenge query: %w", err)
	}

	var rows []challengeQuestionRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	return groupChallengeRows(rows)[day], nil
}

// GetWeekChallenges reads the whole week's content in one query.
func (r *Repository) GetWeekChallenges(ctx context.Context) (map[model.Weekday]*model.DayChallenge, error) {
	query, args, err := squirrel.
		Select(
			"qq.question_id",
			"qq.weekday",
			"qq.position",
			"qq.prompt",
			"qq.options",
			"qq.correct_option",
			"qq.explanation",
			"qc.lives",
			"qc.created_at",
		).
		From("quest_questions qq").
		Join("quest_challenges qc ON qc.weekday = qq.weekday").
		OrderBy("qq.weekday", "qq.position").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build week challenges query: %w", err)
	}

	var rows []challengeQuestionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	return groupChallengeRows(rows), nil
}

// groupChallengeRows folds position-ordered question rows into one
// DayChallenge per weekday.
func groupChallengeRows(rows []challengeQuestionRow) map[model.Weekday]*model.DayChallenge {
	challenges := make(map[model.Weekday]*model.DayChallenge)
	for _, row := range rows {
		day := model.Weekday(row.Weekday)
		challenge, ok := challenges[day]
		if !ok {
			challenge = &model.DayChallenge{
				Weekday:   day,
				Lives:     row.Lives,
				CreatedAt: row.CreatedAt,
			}
			challenges[day] = challenge
		}
		challenge.Questions = append(challenge.Questions, model.ChallengeQuestion{
			ID:            row.QuestionID,
			Prompt:        row.Prompt,
			Options:       row.Options,
			CorrectOption: row.CorrectOption,
			Explanation:   row.Explanation,
		})
	}
	return challenges
}

// UpsertDayChallenge replaces the whole question set for a weekday.
func (r *Repository) UpsertDayChallenge(ctx context.Context, challenge *model.DayChallenge) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		challengeQuery, challengeArgs, err := squirrel.
			Insert("quest_challenges").
			SetMap(map[string]interface{}{
				"weekday":    string(challenge.Weekday),
				"lives":      challenge.Lives,
				"created_at": time.Now().UTC(),
			}).
			Suffix("ON CONFLICT (weekday) DO UPDATE SET lives = EXCLUDED.lives").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build challenge upsert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, challengeQuery, challengeArgs...); err != nil {
			return fmt.Errorf("failed to upsert challenge: %w", err)
		}

		deleteQuery, deleteArgs, err := squirrel.
			Delete("quest_questions").
			Where(squirrel.Eq{"weekday": string(challenge.Weekday)}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, deleteQuery, deleteArgs...); err != nil {
			return fmt.Errorf("failed to clear challenge questions: %w", err)
		}

		if len(challenge.Questions) == 0 {
			return nil
		}

		builder := squirrel.
			Insert("quest_questions").
			Columns("question_id", "weekday", "position", "prompt", "options", "correct_option", "explanation").
			PlaceholderFormat(squirrel.Dollar)

		for i, q := range challenge.Questions {
			id := q.ID
			if id == uuid.Nil {
				id = uuid.New()
			}
			builder = builder.Values(id, string(challenge.Weekday), i, q.Prompt, pq.StringArray(q.Options), q.CorrectOption, q.Explanation)
		}

		query, args, err := builder.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build question insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert challenge questions: %w", err)
		}

		return nil
	})
}
