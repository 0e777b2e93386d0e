// Package query は学生の質問の投稿と管理者による回答のドメインロジックを提供する。
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/collegeconnect/internal/inflight"
	"github.com/hitoshi/collegeconnect/internal/metrics"
	"github.com/hitoshi/collegeconnect/internal/model"
	"github.com/hitoshi/collegeconnect/internal/repository"
	"github.com/hitoshi/collegeconnect/internal/validation"
)

// ErrSubmissionInFlight は同じ学生の投稿、または同じ質問への回答が処理中であることを表す。
var ErrSubmissionInFlight = model.NewSubmissionInFlightError()

// Service は質問のサービス層。
type Service struct {
	repo       repository.QueryRepository
	policy     model.TransitionPolicy
	submitting *inflight.Guard // 学生ID単位
	responding *inflight.Guard // 質問ID単位
	metrics    metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// policyがnilの場合はOpenTransitionsを使う。
func NewService(repo repository.QueryRepository, policy model.TransitionPolicy, collector metrics.MetricsCollector) *Service {
	if policy == nil {
		policy = model.OpenTransitions
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		repo:       repo,
		policy:     policy,
		submitting: inflight.New(),
		responding: inflight.New(),
		metrics:    collector,
	}
}

// Policy は現在のステータス遷移ポリシーを返す。
func (s *Service) Policy() model.TransitionPolicy {
	return s.policy
}

// ListFor は利用者が閲覧できる質問を新しい順に返す。
// 管理者は全件、それ以外は自分の質問のみ。
func (s *Service) ListFor(ctx context.Context, viewer *model.Viewer) ([]*model.Query, error) {
	if viewer == nil {
		return nil, model.NewUnauthorizedError()
	}

	var (
		queries []*model.Query
		err     error
	)
	if viewer.IsAdmin() {
		queries, err = s.repo.ListAll(ctx)
	} else {
		queries, err = s.repo.ListByStudent(ctx, viewer.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("質問一覧の取得に失敗しました: %w", err)
	}
	return queries, nil
}

// Submit は学生として質問を投稿する。
// 質問文は前後の空白を除去してから検証する。ステータスはストアの既定値になる。
// 同じ学生の投稿が処理中の場合はErrSubmissionInFlightを返し、挿入しない。
func (s *Service) Submit(ctx context.Context, student *model.Viewer, question string) (*model.Query, error) {
	if student == nil {
		return nil, model.NewUnauthorizedError()
	}
	if student.IsAdmin() {
		return nil, model.NewForbiddenError()
	}

	in := model.QueryInput{Question: strings.TrimSpace(question)}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	release, ok := s.submitting.TryAcquire(student.UserID)
	if !ok {
		return nil, ErrSubmissionInFlight
	}
	defer release()

	q := &model.Query{
		ID:        uuid.New().String(),
		StudentID: student.UserID,
		Question:  in.Question,
	}
	if err := s.repo.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("質問の投稿に失敗しました: %w", err)
	}

	s.metrics.RecordQuerySubmitted()
	slog.Info("query submitted",
		slog.String("query_id", q.ID),
		slog.String("user_id", student.UserID),
	)
	return q, nil
}

// Respond は管理者として質問に回答し、ステータスを設定する。
// 回答、ステータス、回答者、回答日時は1回の更新でまとめて書き込まれる。
// ステータス遷移はポリシーで検証する。同じ質問への回答が処理中の場合はErrSubmissionInFlightを返す。
func (s *Service) Respond(ctx context.Context, responder *model.Viewer, queryID string, in model.RespondInput) (*model.Query, error) {
	if !responder.IsAdmin() {
		return nil, model.NewForbiddenError()
	}

	in.Response = strings.TrimSpace(in.Response)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	target, err := model.ParseQueryStatus(in.Status)
	if err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	// queries.id はUUID列。形式外のIDはストアに渡さず未検出として扱う
	if _, err := uuid.Parse(queryID); err != nil {
		return nil, model.NewQueryNotFoundError(queryID)
	}

	release, ok := s.responding.TryAcquire(queryID)
	if !ok {
		return nil, ErrSubmissionInFlight
	}
	defer release()

	current, err := s.repo.FindByID(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("質問の取得に失敗しました: %w", err)
	}
	if current == nil {
		return nil, model.NewQueryNotFoundError(queryID)
	}
	if !s.policy.Allowed(current.Status, target) {
		return nil, model.NewInvalidTransitionError(current.Status, target)
	}

	updated, err := s.repo.Respond(ctx, queryID, responder.UserID, in.Response, target)
	if err != nil {
		return nil, fmt.Errorf("回答の保存に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewQueryNotFoundError(queryID)
	}

	s.metrics.RecordQueryResponded(string(target))
	slog.Info("query responded",
		slog.String("query_id", queryID),
		slog.String("from_status", string(current.Status)),
		slog.String("to_status", string(target)),
		slog.String("user_id", responder.UserID),
	)
	return updated, nil
}
