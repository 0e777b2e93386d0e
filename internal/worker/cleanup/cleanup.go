// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// PostgreSQLセッションストア使用時、有効期限を猶予時間以上過ぎたセッションを
// 日次バッチで削除する。Redisセッションストアはキーの有効期限で消えるため対象外。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SessionCleanupJob は期限切れセッションの削除ジョブ。
// 冪等で、削除対象がなくてもエラーにならない。
type SessionCleanupJob struct {
	db         Executor
	logger     *slog.Logger
	GraceHours int // 有効期限切れ後に残しておく時間（デフォルト: 24）
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。
func NewSessionCleanupJob(db Executor, logger *slog.Logger) *SessionCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionCleanupJob{
		db:         db,
		logger:     logger,
		GraceHours: 24,
	}
}

// Run はexpires_atがGraceHours時間以上前のセッションを削除する。
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	grace := fmt.Sprintf("%d hours", j.GraceHours)

	query := `DELETE FROM sessions WHERE expires_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, grace)
	if err != nil {
		j.logger.Error("session cleanup failed",
			slog.String("error", err.Error()),
			slog.Int("grace_hours", j.GraceHours),
		)
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("failed to read deleted session count",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to read deleted session count: %w", err)
	}

	j.logger.Info("session cleanup completed",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("grace_hours", j.GraceHours),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start はinterval間隔でRunを実行する。起動直後にも1回実行する。
// 失敗はログに残して次回に持ち越す。コンテキストがキャンセルされるまで戻らない。
func (j *SessionCleanupJob) Start(ctx context.Context, interval time.Duration) {
	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
