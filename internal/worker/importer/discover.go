package importer

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

var feedContentTypes = []string{"application/rss+xml", "application/atom+xml"}

var xmlContentTypes = []string{"text/xml", "application/xml"}

// feedCandidate はHTMLのhead内で見つかったフィードリンク。
type feedCandidate struct {
	URL  string
	Atom bool
}

// mediaType はContent-Typeからパラメータを除いたメディアタイプを返す。
func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mt)
}

// isDirectFeed はレスポンスがRSS/Atomそのものかを判定する。
// 汎用XMLのContent-Typeの場合はボディ先頭のルート要素で判断する。
func isDirectFeed(contentType string, body []byte) bool {
	mt := mediaType(contentType)
	for _, ct := range feedContentTypes {
		if mt == ct {
			return true
		}
	}

	isXML := false
	for _, ct := range xmlContentTypes {
		if mt == ct {
			isXML = true
			break
		}
	}
	if !isXML || len(body) == 0 {
		return false
	}

	head := body
	if len(head) > 4096 {
		head = head[:4096]
	}
	prefix := strings.ToLower(string(head))
	return strings.Contains(prefix, "<rss") ||
		strings.Contains(prefix, "<rdf:rdf") ||
		(strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom"))
}

// isHTML はレスポンスがHTMLページかを判定する。
func isHTML(contentType string) bool {
	return strings.Contains(mediaType(contentType), "html")
}

// feedLinksFromHTML は <link rel="alternate"> のRSS/Atomリンクを抽出する。
// 相対URLはpageURLを基準に解決する。body開始以降は見ない。
func feedLinksFromHTML(body []byte, pageURL string) []feedCandidate {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var candidates []feedCandidate
	z := html.NewTokenizer(bytes.NewReader(body))
	inHead := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return candidates

		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return candidates
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "head":
				inHead = true
				continue
			case "body":
				return candidates
			case "link":
			default:
				continue
			}
			if !inHead || !hasAttr {
				continue
			}

			var rel, typ, href string
			for more := true; more; {
				var key, val []byte
				key, val, more = z.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					typ = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
			}
			if rel != "alternate" || href == "" {
				continue
			}
			if typ != "application/rss+xml" && typ != "application/atom+xml" {
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			candidates = append(candidates, feedCandidate{
				URL:  base.ResolveReference(ref).String(),
				Atom: typ == "application/atom+xml",
			})
		}
	}
}

// selectBestFeed は同一ホスト、Atom、出現順の優先度で候補を1つ選ぶ。
func selectBestFeed(candidates []feedCandidate, pageURL string) (feedCandidate, bool) {
	if len(candidates) == 0 {
		return feedCandidate{}, false
	}

	pageHost := hostOf(pageURL)
	best, bestScore := 0, -1
	for i, c := range candidates {
		score := 0
		if hostOf(c.URL) == pageHost {
			score += 100
		}
		if c.Atom {
			score += 10
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return candidates[best], true
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
