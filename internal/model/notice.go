package model

import (
	"fmt"
	"time"
)

// NoticeCategory はお知らせのカテゴリ。
type NoticeCategory string

const (
	CategoryGeneral  NoticeCategory = "general"
	CategoryAcademic NoticeCategory = "academic"
	CategoryExam     NoticeCategory = "exam"
	CategoryEvent    NoticeCategory = "event"
	CategoryUrgent   NoticeCategory = "urgent"
)

// AllNoticeCategories はフォームの選択肢の表示順。
var AllNoticeCategories = []NoticeCategory{
	CategoryGeneral,
	CategoryAcademic,
	CategoryExam,
	CategoryEvent,
	CategoryUrgent,
}

// ParseNoticeCategory は文字列を既知のカテゴリに変換する。
// 未知の値はエラーを返す。ストア境界でのレコード検証に使用する。
func ParseNoticeCategory(s string) (NoticeCategory, error) {
	for _, c := range AllNoticeCategories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown notice category: %q", s)
}

// Notice は管理者が公開するお知らせ。作成後は更新・削除されない。
type Notice struct {
	ID        string
	Title     string
	Content   string
	Category  NoticeCategory
	CreatedBy string
	CreatedAt time.Time
}

// NoticeInput はお知らせ作成フォームの入力。
type NoticeInput struct {
	Title    string `json:"title" validate:"required"`
	Content  string `json:"content" validate:"required"`
	Category string `json:"category" validate:"omitempty,oneof=general academic exam event urgent"`
}
