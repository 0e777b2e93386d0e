// Package notice はお知らせの一覧・検索・作成のドメインロジックを提供する。
package notice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/collegeconnect/internal/metrics"
	"github.com/hitoshi/collegeconnect/internal/model"
	"github.com/hitoshi/collegeconnect/internal/repository"
	"github.com/hitoshi/collegeconnect/internal/validation"
)

// Service はお知らせのサービス層。
type Service struct {
	repo    repository.NoticeRepository
	metrics metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.NoticeRepository, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{repo: repo, metrics: collector}
}

// List は全お知らせを新しい順に返す。
func (s *Service) List(ctx context.Context) ([]*model.Notice, error) {
	notices, err := s.repo.ListNewestFirst(ctx)
	if err != nil {
		return nil, fmt.Errorf("お知らせ一覧の取得に失敗しました: %w", err)
	}
	return notices, nil
}

// Search は全お知らせを取得し、termで絞り込んで返す。
func (s *Service) Search(ctx context.Context, term string) ([]*model.Notice, error) {
	notices, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(notices, term), nil
}

// Create は管理者としてお知らせを作成する。
// カテゴリが空の場合はgeneralになる。作成者は常にauthor自身。
func (s *Service) Create(ctx context.Context, author *model.Viewer, in model.NoticeInput) (*model.Notice, error) {
	if !author.IsAdmin() {
		return nil, model.NewForbiddenError()
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	category := model.CategoryGeneral
	if in.Category != "" {
		c, err := model.ParseNoticeCategory(in.Category)
		if err != nil {
			return nil, model.NewValidationError(err.Error())
		}
		category = c
	}

	n := &model.Notice{
		ID:        uuid.New().String(),
		Title:     in.Title,
		Content:   in.Content,
		Category:  category,
		CreatedBy: author.UserID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("お知らせの作成に失敗しました: %w", err)
	}

	s.metrics.RecordNoticeCreated("admin")
	slog.Info("notice created",
		slog.String("notice_id", n.ID),
		slog.String("category", string(n.Category)),
		slog.String("user_id", author.UserID),
	)
	return n, nil
}

// Filter はタイトルまたは本文にtermを含むお知らせだけを返す。
// 大文字小文字は区別しない。termが空の場合は全件を返す。入力の順序は保たれる。
func Filter(notices []*model.Notice, term string) []*model.Notice {
	if term == "" {
		return notices
	}

	needle := strings.ToLower(term)
	out := make([]*model.Notice, 0, len(notices))
	for _, n := range notices {
		if strings.Contains(strings.ToLower(n.Title), needle) ||
			strings.Contains(strings.ToLower(n.Content), needle) {
			out = append(out, n)
		}
	}
	return out
}
