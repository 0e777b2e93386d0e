// Package view はお知らせと質問をカード表示用の値に変換する。
// 入力が未知のカテゴリやステータスでも失敗せず、既定のバッジにフォールバックする。
package view

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/hitoshi/collegeconnect/internal/model"
)

// Badge はバッジの配色。CSSクラス名のサフィックスとして使う。
type Badge string

const (
	BadgeDefault     Badge = "default"
	BadgeDestructive Badge = "destructive"
	BadgeWarning     Badge = "warning"
	BadgeSuccess     Badge = "success"
	BadgeInfo        Badge = "info"
)

const (
	dateLayout     = "Jan 02, 2006"
	dateTimeLayout = "Jan 02, 2006 at 15:04"
)

var categoryBadges = map[model.NoticeCategory]Badge{
	model.CategoryUrgent:   BadgeDestructive,
	model.CategoryExam:     BadgeWarning,
	model.CategoryAcademic: BadgeInfo,
	model.CategoryEvent:    BadgeSuccess,
	model.CategoryGeneral:  BadgeDefault,
}

type statusStyle struct {
	badge Badge
	label string
}

var statusStyles = map[model.QueryStatus]statusStyle{
	model.StatusPending:    {BadgeWarning, "Pending"},
	model.StatusInProgress: {BadgeInfo, "In Progress"},
	model.StatusResolved:   {BadgeSuccess, "Resolved"},
}

// NoticeCardView はお知らせカード1枚分の表示値。
type NoticeCardView struct {
	ID       string
	Title    string
	Content  string
	Category string
	Badge    Badge
	Date     string
}

// QueryCardView は質問カード1枚分の表示値。
// Responseが空の場合、回答欄は表示しない。
type QueryCardView struct {
	ID          string
	Question    string
	Status      string
	StatusLabel string
	Badge       Badge
	AskedOn     string
	Response    string
	RespondedOn string
}

// HasResponse は回答欄を表示するかどうかを返す。
func (v QueryCardView) HasResponse() bool {
	return v.Response != ""
}

// CategoryBadge はカテゴリのバッジ配色を返す。未知のカテゴリはBadgeDefault。
func CategoryBadge(c model.NoticeCategory) Badge {
	if b, ok := categoryBadges[c]; ok {
		return b
	}
	return BadgeDefault
}

// StatusBadge はステータスのバッジ配色と表示ラベルを返す。
// 未知のステータスはBadgeDefaultと、値を読みやすくしたラベルを返す。
func StatusBadge(s model.QueryStatus) (Badge, string) {
	if st, ok := statusStyles[s]; ok {
		return st.badge, st.label
	}
	return BadgeDefault, humanize(string(s))
}

// NoticeCard はお知らせをカード表示値に変換する。
func NoticeCard(n *model.Notice) NoticeCardView {
	return NoticeCardView{
		ID:       n.ID,
		Title:    n.Title,
		Content:  n.Content,
		Category: string(n.Category),
		Badge:    CategoryBadge(n.Category),
		Date:     FormatDate(n.CreatedAt),
	}
}

// QueryCard は質問をカード表示値に変換する。
func QueryCard(q *model.Query) QueryCardView {
	badge, label := StatusBadge(q.Status)
	v := QueryCardView{
		ID:          q.ID,
		Question:    q.Question,
		Status:      string(q.Status),
		StatusLabel: label,
		Badge:       badge,
		AskedOn:     FormatDate(q.CreatedAt),
	}
	if q.Response != nil {
		v.Response = *q.Response
	}
	if q.RespondedAt != nil {
		v.RespondedOn = FormatDateTime(*q.RespondedAt)
	}
	return v
}

// NoticeCards はNoticeCardを一覧に適用する。
func NoticeCards(notices []*model.Notice) []NoticeCardView {
	out := make([]NoticeCardView, 0, len(notices))
	for _, n := range notices {
		out = append(out, NoticeCard(n))
	}
	return out
}

// QueryCards はQueryCardを一覧に適用する。
func QueryCards(queries []*model.Query) []QueryCardView {
	out := make([]QueryCardView, 0, len(queries))
	for _, q := range queries {
		out = append(out, QueryCard(q))
	}
	return out
}

// FormatDate は日付を "Jan 02, 2006" 形式で返す。ゼロ値は空文字。
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// FormatDateTime は日時を "Jan 02, 2006 at 15:04" 形式で返す。ゼロ値は空文字。
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateTimeLayout)
}

// humanize は "on_hold" を "On Hold" のように変換する。
func humanize(raw string) string {
	words := strings.FieldsFunc(raw, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
