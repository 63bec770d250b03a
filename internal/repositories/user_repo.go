package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"userhub/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Database is the subset of pgxpool.Pool the repositories use. pgxmock
// satisfies it as well, so repository tests run against the same SQL.
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	// ErrNotFound is returned when no user row matches.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when an insert or update trips the
	// unique constraint on users.email. Uniqueness is enforced by the
	// constraint, not by pre-checks, so concurrent writers cannot race
	// past each other.
	ErrDuplicateEmail = errors.New("email already in use")
)

const uniqueViolation = "23505"

// ListFilter is the fixed set of query capabilities the store exposes:
// role equality, substring search, a whitelisted sort key/direction and
// offset pagination.
type ListFilter struct {
	Role          string // "" means any role
	Search        string // case-insensitive substring
	MatchFullName bool   // also match against "first last" concatenation
	SortBy        string // name, email, created_at, last_login
	SortOrder     string // asc or desc
	Limit         int
	Offset        int
}

// UserCounts holds the raw aggregates behind the statistics report.
type UserCounts struct {
	Total  int
	Admins int
	Users  int
	Recent int
	Active int
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateRole(ctx context.Context, id uuid.UUID, role string) error
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	EmailInUse(ctx context.Context, email string, excludeID uuid.UUID) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]*models.User, int, error)
	ListByRole(ctx context.Context, role string) ([]*models.User, error)
	BulkUpdateRole(ctx context.Context, ids []uuid.UUID, role string) (int, error)
	Counts(ctx context.Context, recentSince, activeSince time.Time) (*UserCounts, error)
	MostRecentlyActive(ctx context.Context, limit int) ([]*models.User, error)
}

type userRepo struct {
	db Database
}

func NewUserRepo(db Database) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, first_name, last_name, email, password_hash, role, first_login, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.FirstName, &user.LastName, &user.Email, &user.PasswordHash,
		&user.Role, &user.FirstLogin, &user.LastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, first_name, last_name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, user.ID, user.FirstName, user.LastName, user.Email, user.PasswordHash, user.Role)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET first_name = $1, last_name = $2, email = $3, password_hash = $4, role = $5, updated_at = NOW()
		WHERE id = $6
	`
	tag, err := r.db.Exec(ctx, query, user.FirstName, user.LastName, user.Email, user.PasswordHash, user.Role, user.ID)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	query := `UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, role, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordLogin sets first_login exactly once and always advances
// last_login, in one statement so concurrent logins cannot interleave
// the two fields inconsistently.
func (r *userRepo) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE users
		SET first_login = COALESCE(first_login, $1), last_login = $1, updated_at = NOW()
		WHERE id = $2
	`
	tag, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM users WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// EmailInUse reports whether another user already holds the email.
// excludeID skips the target's own row so self-updates do not collide
// with themselves. This is a friendly pre-check only; the unique
// constraint remains the authority.
func (r *userRepo) EmailInUse(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	query := `SELECT COUNT(*) FROM users WHERE email = $1 AND id <> $2`
	var count int
	if err := r.db.QueryRow(ctx, query, email, excludeID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func buildUserFilter(f ListFilter) (string, []any) {
	clauses := []string{}
	args := []any{}

	if f.Role != "" {
		args = append(args, f.Role)
		clauses = append(clauses, fmt.Sprintf("role = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		search := fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d", n, n, n)
		if f.MatchFullName {
			search += fmt.Sprintf(" OR first_name || ' ' || last_name ILIKE $%d", n)
		}
		search += ")"
		clauses = append(clauses, search)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderClause(sortBy, sortOrder string) string {
	dir := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		dir = "ASC"
	}
	// Whitelisted sort keys only; anything else falls back to created_at.
	switch sortBy {
	case "name":
		return fmt.Sprintf(" ORDER BY first_name %s, last_name %s", dir, dir)
	case "email":
		return fmt.Sprintf(" ORDER BY email %s", dir)
	case "last_login":
		return fmt.Sprintf(" ORDER BY last_login %s NULLS LAST", dir)
	default:
		return fmt.Sprintf(" ORDER BY created_at %s", dir)
	}
}

func (r *userRepo) List(ctx context.Context, f ListFilter) ([]*models.User, int, error) {
	where, args := buildUserFilter(f)

	var total int
	countQuery := `SELECT COUNT(*) FROM users` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users` + where + orderClause(f.SortBy, f.SortOrder)
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users, err := collectUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepo) ListByRole(ctx context.Context, role string) ([]*models.User, error) {
	where, args := buildUserFilter(ListFilter{Role: role})
	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// BulkUpdateRole updates every existing id in the list and reports how
// many rows actually changed; unknown ids are skipped, not rolled back.
func (r *userRepo) BulkUpdateRole(ctx context.Context, ids []uuid.UUID, role string) (int, error) {
	query := `UPDATE users SET role = $1, updated_at = NOW() WHERE id = ANY($2)`
	tag, err := r.db.Exec(ctx, query, role, ids)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *userRepo) Counts(ctx context.Context, recentSince, activeSince time.Time) (*UserCounts, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE role = 'admin'),
			COUNT(*) FILTER (WHERE role = 'user'),
			COUNT(*) FILTER (WHERE created_at >= $1),
			COUNT(*) FILTER (WHERE last_login >= $2)
		FROM users
	`
	counts := &UserCounts{}
	err := r.db.QueryRow(ctx, query, recentSince, activeSince).
		Scan(&counts.Total, &counts.Admins, &counts.Users, &counts.Recent, &counts.Active)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// MostRecentlyActive returns users ordered by last_login descending;
// users who never logged in sort last.
func (r *userRepo) MostRecentlyActive(ctx context.Context, limit int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY last_login DESC NULLS LAST LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]*models.User, error) {
	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
