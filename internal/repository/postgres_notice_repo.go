package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/collegeconnect/internal/model"
)

// PostgresNoticeRepo はPostgreSQLを使用したお知らせリポジトリ。
type PostgresNoticeRepo struct {
	db *sql.DB
}

// NewPostgresNoticeRepo はPostgresNoticeRepoを生成する。
func NewPostgresNoticeRepo(db *sql.DB) *PostgresNoticeRepo {
	return &PostgresNoticeRepo{db: db}
}

// ListNewestFirst は全お知らせをcreated_at降順で返す。
// 未知のカテゴリを持つ行はエラーにする。
func (r *PostgresNoticeRepo) ListNewestFirst(ctx context.Context) ([]*model.Notice, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, content, category, created_by, created_at
		 FROM notices
		 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notices: %w", err)
	}
	defer rows.Close()

	var notices []*model.Notice
	for rows.Next() {
		n := &model.Notice{}
		var category string
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &category, &n.CreatedBy, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notice: %w", err)
		}
		n.Category, err = model.ParseNoticeCategory(category)
		if err != nil {
			return nil, fmt.Errorf("notice %s: %w", n.ID, err)
		}
		notices = append(notices, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notices: %w", err)
	}

	return notices, nil
}

// Create はお知らせを作成する。created_atはストアの現在時刻になる。
func (r *PostgresNoticeRepo) Create(ctx context.Context, notice *model.Notice) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO notices (id, title, content, category, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		notice.ID, notice.Title, notice.Content, string(notice.Category), notice.CreatedBy,
	).Scan(&notice.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notice: %w", err)
	}
	return nil
}

// CreateImported はsource_key付きでお知らせを作成する。
// 同じsource_keyが存在する場合は挿入せずfalseを返す。
func (r *PostgresNoticeRepo) CreateImported(ctx context.Context, notice *model.Notice, sourceKey string) (bool, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO notices (id, title, content, category, created_by, source_key)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (source_key) DO NOTHING
		 RETURNING created_at`,
		notice.ID, notice.Title, notice.Content, string(notice.Category), notice.CreatedBy, sourceKey,
	).Scan(&notice.CreatedAt)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to import notice: %w", err)
	}
	return true, nil
}

// compile-time interface check
var _ NoticeRepository = (*PostgresNoticeRepo)(nil)
