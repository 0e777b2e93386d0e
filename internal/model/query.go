package model

import (
	"fmt"
	"time"
)

// QueryStatus は質問の対応状況。
type QueryStatus string

const (
	StatusPending    QueryStatus = "pending"
	StatusInProgress QueryStatus = "in_progress"
	StatusResolved   QueryStatus = "resolved"
)

// AllQueryStatuses は選択肢の表示順。
var AllQueryStatuses = []QueryStatus{
	StatusPending,
	StatusInProgress,
	StatusResolved,
}

// ParseQueryStatus は文字列を既知のステータスに変換する。未知の値はエラー。
func ParseQueryStatus(s string) (QueryStatus, error) {
	for _, st := range AllQueryStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown query status: %q", s)
}

// rank は前進のみポリシーで使う順序。
func (s QueryStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusResolved:
		return 2
	default:
		return -1
	}
}

// Query は学生が投稿した質問。
// Response、RespondedBy、RespondedAtは管理者の回答時に同時に設定される。
type Query struct {
	ID          string
	StudentID   string
	Question    string
	Status      QueryStatus
	Response    *string
	RespondedBy *string
	RespondedAt *time.Time
	CreatedAt   time.Time
}

// IsAnswered は回答済みかどうかを返す。
func (q *Query) IsAnswered() bool {
	return q.Response != nil && q.RespondedAt != nil && q.RespondedBy != nil
}

// RespondInput は管理者の回答フォームの入力。
type RespondInput struct {
	Response string `json:"response" validate:"required"`
	Status   string `json:"status" validate:"required,oneof=pending in_progress resolved"`
}

// QueryInput は質問投稿フォームの入力。
type QueryInput struct {
	Question string `json:"question" validate:"required"`
}

// TransitionPolicy はステータス遷移の許可ルール。
type TransitionPolicy interface {
	Name() string
	Allowed(from, to QueryStatus) bool
}

type openTransitions struct{}

func (openTransitions) Name() string { return "open" }

func (openTransitions) Allowed(from, to QueryStatus) bool {
	return to.rank() >= 0
}

type forwardOnlyTransitions struct{}

func (forwardOnlyTransitions) Name() string { return "forward" }

func (forwardOnlyTransitions) Allowed(from, to QueryStatus) bool {
	if to.rank() < 0 {
		return false
	}
	return to.rank() >= from.rank()
}

var (
	// OpenTransitions は任意の状態から任意の状態への遷移を許可する（既定）。
	// resolvedからpendingへの差し戻しも可能。
	OpenTransitions TransitionPolicy = openTransitions{}

	// ForwardOnlyTransitions は pending → in_progress → resolved の前進と
	// 同一状態の再設定のみを許可する。
	ForwardOnlyTransitions TransitionPolicy = forwardOnlyTransitions{}
)

// TransitionPolicyByName は設定値からポリシーを返す。未知の値はエラー。
func TransitionPolicyByName(name string) (TransitionPolicy, error) {
	switch name {
	case "", "open":
		return OpenTransitions, nil
	case "forward":
		return ForwardOnlyTransitions, nil
	default:
		return nil, fmt.Errorf("unknown query status policy: %q", name)
	}
}
