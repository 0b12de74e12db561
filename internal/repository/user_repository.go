package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/festival-boxoffice/internal/model"
	"github.com/iliyamo/festival-boxoffice/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userCols = "id,festival_id,email,password_hash,role,is_active,created_at,updated_at"

// Create inserts a user for a festival and returns its ID.  A basket row is
// created alongside so online users always have one.
func (r *UserRepo) Create(ctx context.Context, festivalID uint64, email, password, role string, cost int) (uint64, error) {
	email = normalizeEmail(email)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	var id uint64
	err = WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO users (festival_id, email, password_hash, role) VALUES (?,?,?,?)",
			festivalID, email, hash, role)
		if err != nil {
			if duplicate(err) {
				return ErrEmailExists
			}
			return err
		}
		n, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = uint64(n)
		_, err = tx.ExecContext(ctx, "INSERT INTO baskets (user_id) VALUES (?)", id)
		return err
	})
	return id, err
}

// GetByEmail fetches a festival user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, festivalID uint64, email string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE festival_id=? AND email=? LIMIT 1",
		festivalID, normalizeEmail(email)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
}

func scanUser(row scanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.FestivalID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
