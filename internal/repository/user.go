package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"skillpath_miniapp/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type userRow struct {
	TelegramID       int64        `db:"telegram_id"`
	Handle           string       `db:"handle"`
	Username         string       `db:"username"`
	XP               int          `db:"xp"`
	IsAdmin          bool         `db:"is_admin"`
	RegistrationDate sql.NullTime `db:"registration_date"`
	AuthDate         sql.NullTime `db:"last_auth_date"`
}

func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query, args, err := squirrel.
		Insert("users").
		SetMap(map[string]interface{}{
			"telegram_id":       user.TelegramID,
			"handle":            user.Handle,
			"username":          user.Username,
			"xp":                user.XP,
			"is_admin":          user.IsAdmin,
			"registration_date": user.RegistrationDate,
			"last_auth_date":    user.AuthDate,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build user insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

func (r *Repository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user userRow
	query, args, err := squirrel.
		Select("telegram_id", "handle", "username", "xp", "is_admin", "registration_date", "last_auth_date").
		From("users").
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &user, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &model.User{
		TelegramID:       user.TelegramID,
		Handle:           user.Handle,
		Username:         user.Username,
		XP:               user.XP,
		IsAdmin:          user.IsAdmin,
		RegistrationDate: user.RegistrationDate.Time,
		AuthDate:         user.AuthDate.Time,
	}, nil
}

// GrantXP adds XP outside of any quest-week transaction. The reward
// chest path uses SaveWithXPGrant instead so the grant commits with
// the claim flag.
func (r *Repository) GrantXP(ctx context.Context, telegramID int64, xp int) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		return r.grantXPTx(ctx, tx, telegramID, xp)
	})
}

func (r *Repository) grantXPTx(ctx context.Context, tx *sqlx.Tx, telegramID int64, xp int) error {
	query, args, err := squirrel.
		Update("users").
		Set("xp", squirrel.Expr("xp + ?", xp)).
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to grant xp: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
