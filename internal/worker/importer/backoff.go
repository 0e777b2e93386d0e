package importer

import (
	"fmt"
	"net/http"
	"time"
)

// FetchResult はHTTPステータスコードに基づく取得結果の分類。
type FetchResult int

const (
	// FetchResultOK は取得成功（200）。
	FetchResultOK FetchResult = iota
	// FetchResultNotModified は前回から未変更（304）。
	FetchResultNotModified
	// FetchResultStop は以降の取得を止めるべきステータス（404/410/401/403）。
	FetchResultStop
	// FetchResultBackoff は間隔を空けて再試行すべきステータス（429/5xx）。
	FetchResultBackoff
	// FetchResultUnknown は上記以外。
	FetchResultUnknown
)

const (
	initialBackoff        = 30 * time.Minute
	maxBackoff            = 12 * time.Hour
	parseFailureThreshold = 10
)

// ClassifyHTTPStatus はHTTPステータスコードを取得結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode == http.StatusOK:
		return FetchResultOK
	case statusCode == http.StatusNotModified:
		return FetchResultNotModified
	case statusCode == http.StatusNotFound, statusCode == http.StatusGone,
		statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return FetchResultStop
	case statusCode == http.StatusTooManyRequests, statusCode >= 500:
		return FetchResultBackoff
	default:
		return FetchResultUnknown
	}
}

// CalculateBackoff は連続エラー回数から次回試行までの待ち時間を返す。
// 初回30分から2倍ずつ増え、12時間で頭打ちになる。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// feedState は取り込み元フィードごとの取得状態。プロセス内でのみ保持する。
type feedState struct {
	// ResolvedURL はHTMLページから検出したフィードURL。空なら設定値をそのまま使う。
	ResolvedURL string

	ETag         string
	LastModified string

	ConsecutiveErrors int
	NextAttemptAt     time.Time
	Stopped           bool
	LastError         string
}

// due はnow時点で取得してよいかを返す。
func (s *feedState) due(now time.Time) bool {
	return !s.Stopped && !now.Before(s.NextAttemptAt)
}

func (s *feedState) applyStop(reason string) {
	s.Stopped = true
	s.LastError = reason
}

func (s *feedState) applyBackoff(now time.Time, reason string) {
	s.ConsecutiveErrors++
	s.LastError = reason
	s.NextAttemptAt = now.Add(CalculateBackoff(s.ConsecutiveErrors - 1))
}

func (s *feedState) applySuccess() {
	s.ConsecutiveErrors = 0
	s.LastError = ""
	s.NextAttemptAt = time.Time{}
}

// applyParseFailure はパース失敗を数え、閾値に達したら取得を止める。
func (s *feedState) applyParseFailure(reason string) {
	s.ConsecutiveErrors++
	s.LastError = fmt.Sprintf("parse failed (%d in a row): %s", s.ConsecutiveErrors, reason)
	if s.ConsecutiveErrors >= parseFailureThreshold {
		s.applyStop(fmt.Sprintf("stopped after %d consecutive parse failures: %s", s.ConsecutiveErrors, reason))
	}
}
