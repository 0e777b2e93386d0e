// Package importer は学内ニュースのRSS/Atomフィードをお知らせとして取り込むバックグラウンド処理を提供する。
// 取得先のSSRF検証、条件付きGET、HTMLページからのフィード検出、バックオフを含む。
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/collegeconnect/internal/metrics"
	"github.com/hitoshi/collegeconnect/internal/model"
)

const userAgent = "CollegeConnect/1.0 notice importer"

// NoticeStore は取り込んだお知らせの保存先。
type NoticeStore interface {
	CreateImported(ctx context.Context, notice *model.Notice, sourceKey string) (bool, error)
}

// SSRFValidator は取得先URLの検証と安全なHTTPクライアントを提供する。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// TextExtractor は外部HTMLをプレーンテキストに変換する。
type TextExtractor interface {
	PlainText(rawHTML string) string
}

// Config は取り込みの設定。
type Config struct {
	Feeds          []string
	Category       model.NoticeCategory
	AuthorID       string
	Timeout        time.Duration
	MaxBodySize    int64
	MaxConcurrency int
}

// errNotAFeed は取得したページがフィードでもフィードへのリンクを含むHTMLでもないことを表す。
var errNotAFeed = errors.New("response is not a feed")

// Importer は設定されたフィードを巡回してお知らせを作成する。
type Importer struct {
	store   NoticeStore
	guard   SSRFValidator
	text    TextExtractor
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	config  Config
	now     func() time.Time

	mu     sync.Mutex
	states map[string]*feedState
}

// New はImporterを生成する。
// Categoryが空の場合はgeneral、MaxConcurrencyが0以下の場合は4を使う。
func New(store NoticeStore, guard SSRFValidator, text TextExtractor, collector metrics.MetricsCollector, logger *slog.Logger, config Config) *Importer {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Category == "" {
		config.Category = model.CategoryGeneral
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = 5 << 20
	}
	return &Importer{
		store:   store,
		guard:   guard,
		text:    text,
		metrics: collector,
		logger:  logger,
		config:  config,
		now:     time.Now,
		states:  make(map[string]*feedState, len(config.Feeds)),
	}
}

// Enabled は取り込み対象のフィードが設定されているかを返す。
func (im *Importer) Enabled() bool {
	return len(im.config.Feeds) > 0
}

// Start はinterval間隔で取り込みを実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで戻らない。
func (im *Importer) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	im.logger.Info("notice importer started",
		slog.Duration("interval", interval),
		slog.Int("feeds", len(im.config.Feeds)),
	)

	im.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			im.logger.Info("notice importer stopped")
			return
		case <-ticker.C:
			im.RunOnce(ctx)
		}
	}
}

// RunOnce は取得時期に達した全フィードを並列に取り込み、作成したお知らせの件数を返す。
// 個々のフィードの失敗はログとメトリクスに記録し、他のフィードの処理は続ける。
func (im *Importer) RunOnce(ctx context.Context) int {
	start := time.Now()
	now := im.now()

	sem := make(chan struct{}, im.config.MaxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0

	for _, feedURL := range im.config.Feeds {
		state := im.stateFor(feedURL)
		if !state.due(now) {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(feedURL string, state *feedState) {
			defer wg.Done()
			defer func() { <-sem }()

			feedStart := time.Now()
			n, err := im.importFeed(ctx, feedURL, state)
			im.metrics.RecordImportLatency(time.Since(feedStart))
			if err != nil {
				im.logger.Error("notice import failed",
					slog.String("feed_url", feedURL),
					slog.Int("consecutive_errors", state.ConsecutiveErrors),
					slog.String("error", err.Error()),
				)
			}

			mu.Lock()
			total += n
			mu.Unlock()
		}(feedURL, state)
	}
	wg.Wait()

	im.metrics.RecordNoticesImported(total)
	im.logger.Info("notice import cycle completed",
		slog.Int("imported", total),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return total
}

func (im *Importer) stateFor(feedURL string) *feedState {
	im.mu.Lock()
	defer im.mu.Unlock()
	s, ok := im.states[feedURL]
	if !ok {
		s = &feedState{}
		im.states[feedURL] = s
	}
	return s
}

// importFeed は1フィードを取得して新しい項目をお知らせとして保存する。
// 状態（条件付きGETのヘッダー、バックオフ）はstateに反映する。
func (im *Importer) importFeed(ctx context.Context, feedURL string, state *feedState) (int, error) {
	target := feedURL
	if state.ResolvedURL != "" {
		target = state.ResolvedURL
	}

	if err := im.guard.ValidateURL(target); err != nil {
		im.metrics.RecordImportFailure("ssrf")
		state.applyStop(fmt.Sprintf("ssrf validation failed: %v", err))
		return 0, fmt.Errorf("ssrf validation failed: %w", err)
	}

	resp, err := im.get(ctx, target, state)
	if err != nil {
		im.metrics.RecordImportFailure("http")
		state.applyBackoff(im.now(), err.Error())
		return 0, err
	}
	defer resp.Body.Close()

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case FetchResultOK:
	case FetchResultNotModified:
		state.applySuccess()
		return 0, nil
	case FetchResultStop:
		im.metrics.RecordImportFailure("status")
		state.applyStop(fmt.Sprintf("stopped by HTTP status %d", resp.StatusCode))
		return 0, fmt.Errorf("feed returned HTTP %d, import stopped", resp.StatusCode)
	default:
		im.metrics.RecordImportFailure("status")
		state.applyBackoff(im.now(), fmt.Sprintf("HTTP status %d", resp.StatusCode))
		return 0, fmt.Errorf("feed returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, im.config.MaxBodySize))
	if err != nil {
		im.metrics.RecordImportFailure("http")
		state.applyBackoff(im.now(), err.Error())
		return 0, fmt.Errorf("failed to read feed body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isDirectFeed(contentType, body) && isHTML(contentType) {
		// 設定値がニュースページの場合はheadのフィードリンクを採用し、次回から直接取得する
		best, ok := selectBestFeed(feedLinksFromHTML(body, target), target)
		if !ok || state.ResolvedURL != "" {
			im.metrics.RecordImportFailure("not_feed")
			state.applyParseFailure(errNotAFeed.Error())
			return 0, errNotAFeed
		}
		im.logger.Info("feed link discovered",
			slog.String("page_url", feedURL),
			slog.String("feed_url", best.URL),
		)
		state.ResolvedURL = best.URL
		return im.importFeed(ctx, feedURL, state)
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		state.ETag = etag
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		state.LastModified = lm
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		im.metrics.RecordImportFailure("parse")
		state.applyParseFailure(err.Error())
		return 0, fmt.Errorf("failed to parse feed: %w", err)
	}

	inserted, err := im.save(ctx, feedURL, parsed.Items)
	if err != nil {
		im.metrics.RecordImportFailure("store")
		state.applyBackoff(im.now(), err.Error())
		return inserted, err
	}

	state.applySuccess()
	im.logger.Info("feed imported",
		slog.String("feed_url", feedURL),
		slog.Int("items_total", len(parsed.Items)),
		slog.Int("items_inserted", inserted),
	)
	return inserted, nil
}

func (im *Importer) get(ctx context.Context, target string, state *feedState) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.5, */*;q=0.1")
	if state.ETag != "" {
		req.Header.Set("If-None-Match", state.ETag)
	}
	if state.LastModified != "" {
		req.Header.Set("If-Modified-Since", state.LastModified)
	}

	resp, err := im.guard.NewSafeClient(im.config.Timeout).Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// save は変換済みの項目を保存する。重複（同じ取り込みキー）は数えない。
// 重複判定キーはフィードの設定URLで作るため、検出したフィードURLが変わっても重複しない。
func (im *Importer) save(ctx context.Context, feedURL string, items []*gofeed.Item) (int, error) {
	inserted := 0
	for _, n := range convertItems(feedURL, items, im.text) {
		notice := n.toNotice(uuid.New().String(), im.config.AuthorID, im.config.Category)
		created, err := im.store.CreateImported(ctx, notice, n.SourceKey)
		if err != nil {
			return inserted, fmt.Errorf("failed to save imported notice: %w", err)
		}
		if created {
			inserted++
			im.metrics.RecordNoticeCreated("import")
		}
	}
	return inserted, nil
}
