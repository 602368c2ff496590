package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"flock/internal/domain"
	"flock/internal/repository"
)

const createUsersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	full_name TEXT NOT NULL DEFAULT '',
	bio TEXT NOT NULL DEFAULT '',
	link TEXT NOT NULL DEFAULT '',
	profile_image TEXT NOT NULL DEFAULT '',
	cover_image TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS user_followers (
	user_id INTEGER NOT NULL,
	follower_id INTEGER NOT NULL,
	PRIMARY KEY (user_id, follower_id)
);

CREATE TABLE IF NOT EXISTS user_following (
	user_id INTEGER NOT NULL,
	following_id INTEGER NOT NULL,
	PRIMARY KEY (user_id, following_id)
);
`

const userColumns = `id, username, email, password_hash, full_name, bio, link, profile_image, cover_image, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersSchema); err != nil {
		return fmt.Errorf("create users schema: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, email, password_hash, full_name, bio, link, profile_image, cover_image, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.Bio,
		user.Link,
		user.ProfileImage,
		user.CoverImage,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert user: %w", repository.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return r.scanWithRelations(ctx, row)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return r.scanWithRelations(ctx, row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return r.scanWithRelations(ctx, row)
}

func (r *UserRepository) UpdateFields(ctx context.Context, id int64, patch domain.UserPatch) error {
	sets := make([]string, 0, 9)
	args := make([]any, 0, 10)

	add := func(column, value string) {
		if value == "" {
			return
		}
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	add("full_name", patch.FullName)
	add("username", patch.Username)
	add("email", patch.Email)
	add("bio", patch.Bio)
	add("link", patch.Link)
	add("password_hash", patch.PasswordHash)
	add("profile_image", patch.ProfileImage)
	add("cover_image", patch.CoverImage)

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update user %d: %w", id, repository.ErrDuplicate)
		}
		return fmt.Errorf("update user %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update user %d: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) AddToSet(ctx context.Context, id int64, field repository.RelationField, value int64) error {
	table, column, err := relationTable(field)
	if err != nil {
		return err
	}
	// INSERT OR IGNORE keeps the relation a true set; double-adds are no-ops.
	_, err = r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO `+table+` (user_id, `+column+`) VALUES (?, ?)`, id, value)
	if err != nil {
		return fmt.Errorf("add %d to %s of user %d: %w", value, field, id, err)
	}
	return nil
}

func (r *UserRepository) RemoveFromSet(ctx context.Context, id int64, field repository.RelationField, value int64) error {
	table, column, err := relationTable(field)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE user_id = ? AND `+column+` = ?`, id, value)
	if err != nil {
		return fmt.Errorf("remove %d from %s of user %d: %w", value, field, id, err)
	}
	return nil
}

func (r *UserRepository) SampleExcluding(ctx context.Context, excludeID int64, n int) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id != ? ORDER BY RANDOM() LIMIT ?`, excludeID, n)
	if err != nil {
		return nil, fmt.Errorf("sample users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sample users: %w", err)
	}

	for i := range users {
		if err := r.loadRelations(ctx, &users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (r *UserRepository) scanWithRelations(ctx context.Context, row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadRelations(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) loadRelations(ctx context.Context, user *domain.User) error {
	var err error
	if user.Followers, err = r.relationIDs(ctx, "user_followers", "follower_id", user.ID); err != nil {
		return err
	}
	if user.Following, err = r.relationIDs(ctx, "user_following", "following_id", user.ID); err != nil {
		return err
	}
	return nil
}

func (r *UserRepository) relationIDs(ctx context.Context, table, column string, userID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+column+` FROM `+table+` WHERE user_id = ? ORDER BY `+column, userID)
	if err != nil {
		return nil, fmt.Errorf("load %s of user %d: %w", table, userID, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s of user %d: %w", table, userID, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %s of user %d: %w", table, userID, err)
	}
	return ids, nil
}

func relationTable(field repository.RelationField) (table, column string, err error) {
	switch field {
	case repository.RelationFollowers:
		return "user_followers", "follower_id", nil
	case repository.RelationFollowing:
		return "user_following", "following_id", nil
	default:
		return "", "", fmt.Errorf("unknown relation field %q", field)
	}
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.Bio,
		&user.Link,
		&user.ProfileImage,
		&user.CoverImage,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
