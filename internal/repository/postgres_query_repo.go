package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/collegeconnect/internal/model"
)

const queryColumns = `id, student_id, question, status, response, responded_by, responded_at, created_at`

// PostgresQueryRepo はPostgreSQLを使用した質問リポジトリ。
type PostgresQueryRepo struct {
	db *sql.DB
}

// NewPostgresQueryRepo はPostgresQueryRepoを生成する。
func NewPostgresQueryRepo(db *sql.DB) *PostgresQueryRepo {
	return &PostgresQueryRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanQuery は1行を質問に変換する。未知のステータスはエラーにする。
func scanQuery(s rowScanner) (*model.Query, error) {
	q := &model.Query{}
	var (
		status      string
		response    sql.NullString
		respondedBy sql.NullString
		respondedAt sql.NullTime
	)
	if err := s.Scan(&q.ID, &q.StudentID, &q.Question, &status, &response, &respondedBy, &respondedAt, &q.CreatedAt); err != nil {
		return nil, err
	}

	st, err := model.ParseQueryStatus(status)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.ID, err)
	}
	q.Status = st

	if response.Valid {
		q.Response = &response.String
	}
	if respondedBy.Valid {
		q.RespondedBy = &respondedBy.String
	}
	if respondedAt.Valid {
		q.RespondedAt = &respondedAt.Time
	}
	return q, nil
}

// Create は質問を作成する。statusはストアの既定値になり、戻り値で補完される。
func (r *PostgresQueryRepo) Create(ctx context.Context, query *model.Query) error {
	var status string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO queries (id, student_id, question)
		 VALUES ($1, $2, $3)
		 RETURNING status, created_at`,
		query.ID, query.StudentID, query.Question,
	).Scan(&status, &query.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create query: %w", err)
	}

	query.Status, err = model.ParseQueryStatus(status)
	if err != nil {
		return fmt.Errorf("query %s: %w", query.ID, err)
	}
	return nil
}

// FindByID は指定IDの質問を取得する。見つからない場合はnilを返す。
func (r *PostgresQueryRepo) FindByID(ctx context.Context, id string) (*model.Query, error) {
	q, err := scanQuery(r.db.QueryRowContext(ctx,
		`SELECT `+queryColumns+` FROM queries WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find query: %w", err)
	}
	return q, nil
}

// ListByStudent は指定学生の質問をcreated_at降順で返す。
func (r *PostgresQueryRepo) ListByStudent(ctx context.Context, studentID string) ([]*model.Query, error) {
	return r.list(ctx,
		`SELECT `+queryColumns+` FROM queries WHERE student_id = $1 ORDER BY created_at DESC, id DESC`,
		studentID,
	)
}

// ListAll は全質問をcreated_at降順で返す。
func (r *PostgresQueryRepo) ListAll(ctx context.Context) ([]*model.Query, error) {
	return r.list(ctx,
		`SELECT ` + queryColumns + ` FROM queries ORDER BY created_at DESC, id DESC`,
	)
}

func (r *PostgresQueryRepo) list(ctx context.Context, query string, args ...any) ([]*model.Query, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	var queries []*model.Query
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queries: %w", err)
	}
	return queries, nil
}

// Respond は回答、ステータス、回答者、回答日時を1回のUPDATEで設定する。
// 該当する質問がない場合はnilを返す。
func (r *PostgresQueryRepo) Respond(ctx context.Context, id, adminID, response string, status model.QueryStatus) (*model.Query, error) {
	q, err := scanQuery(r.db.QueryRowContext(ctx,
		`UPDATE queries
		 SET response = $2, status = $3, responded_by = $4, responded_at = now()
		 WHERE id = $1
		 RETURNING `+queryColumns,
		id, response, string(status), adminID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to respond to query: %w", err)
	}
	return q, nil
}

// compile-time interface check
var _ QueryRepository = (*PostgresQueryRepo)(nil)
