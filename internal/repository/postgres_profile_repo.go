package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/collegeconnect/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	profile := &model.Profile{}
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, full_name, role, created_at FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&profile.UserID, &profile.FullName, &role, &profile.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	profile.Role = model.ParseRole(role)
	return profile, nil
}

// UpdateRoleByEmail はメールアドレスで特定したユーザーのロールを更新する。
// 該当ユーザーがいない場合はnilを返す。
func (r *PostgresProfileRepo) UpdateRoleByEmail(ctx context.Context, email string, role model.Role) (*model.Profile, error) {
	profile := &model.Profile{}
	var storedRole string
	err := r.db.QueryRowContext(ctx,
		`UPDATE profiles p SET role = $2
		 FROM users u
		 WHERE p.user_id = u.id AND lower(u.email) = lower($1)
		 RETURNING p.user_id, p.full_name, p.role, p.created_at`,
		email, string(role),
	).Scan(&profile.UserID, &profile.FullName, &storedRole, &profile.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile role: %w", err)
	}

	profile.Role = model.ParseRole(storedRole)
	return profile, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
