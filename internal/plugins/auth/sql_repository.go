package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/keyxmakerx/gatehouse/internal/apperror"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// sqlUserRepository implements UserRepository with hand-written MariaDB
// queries.
type sqlUserRepository struct {
	db *sql.DB
}

// NewSQLUserRepository creates a user repository backed by the given DB pool.
func NewSQLUserRepository(db *sql.DB) UserRepository {
	return &sqlUserRepository{db: db}
}

// FindByEmail retrieves a user by exact email. The users table uses a binary
// collation, so the match is case-sensitive.
func (r *sqlUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT id, email, password_hash, reset_token, reset_token_expires, created_at
	          FROM users WHERE email = ?`

	user := &User{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.ResetToken,
		&user.ResetTokenExpiry,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}

	if err := user.validateResetPair(); err != nil {
		return nil, err
	}
	return user, nil
}

// Create inserts a new user row.
func (r *sqlUserRepository) Create(ctx context.Context, user *User) error {
	query := `INSERT INTO users (id, email, password_hash, reset_token, reset_token_expires, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.ResetToken,
		user.ResetTokenExpiry,
		user.CreatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}
