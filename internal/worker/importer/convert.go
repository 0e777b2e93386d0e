package importer

import (
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/collegeconnect/internal/model"
)

// importedNotice は保存前の取り込み済みお知らせ。
type importedNotice struct {
	Title     string
	Content   string
	SourceKey string
}

// sourceKey はフィード項目の重複判定キーを返す。
// フィードURLにGUID（なければリンク）を連結する。どちらもなければ空文字。
func sourceKey(feedURL string, item *gofeed.Item) string {
	id := strings.TrimSpace(item.GUID)
	if id == "" {
		id = strings.TrimSpace(item.Link)
	}
	if id == "" {
		return ""
	}
	return feedURL + "#" + id
}

// convertItems はgofeedの項目をお知らせに変換する。
// 重複判定キーを作れない項目と、タイトルも本文もない項目は除く。
func convertItems(feedURL string, items []*gofeed.Item, text TextExtractor) []importedNotice {
	out := make([]importedNotice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		key := sourceKey(feedURL, item)
		if key == "" {
			continue
		}

		body := item.Content
		if strings.TrimSpace(body) == "" {
			body = item.Description
		}
		content := text.PlainText(body)
		title := strings.Join(strings.Fields(text.PlainText(item.Title)), " ")

		if title == "" {
			title = firstLine(content)
		}
		if content == "" {
			content = strings.TrimSpace(item.Link)
		}
		if content == "" {
			content = title
		}
		if title == "" {
			continue
		}

		out = append(out, importedNotice{Title: title, Content: content, SourceKey: key})
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// toNotice は取り込み設定を適用してmodel.Noticeを組み立てる。
func (n importedNotice) toNotice(id, authorID string, category model.NoticeCategory) *model.Notice {
	return &model.Notice{
		ID:        id,
		Title:     n.Title,
		Content:   n.Content,
		Category:  category,
		CreatedBy: authorID,
	}
}
