package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/collegeconnect/internal/model"
	"github.com/hitoshi/collegeconnect/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// pageNames は layout.html と組み合わせて描画するページテンプレート。
var pageNames = []string{"landing", "auth", "student", "admin"}

// Renderer は埋め込みテンプレートからページを描画する。
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer は全ページテンプレートを解析したRendererを返す。
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		// カテゴリ値（model.NoticeCategoryまたはstring）を先頭大文字の表示名にする
		"categoryLabel": func(c any) string {
			s := fmt.Sprint(c)
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		},
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages}, nil
}

// Render はページを描画して書き込む。
// 描画はバッファに対して行い、失敗時に途中までのHTMLを返さない。
func (rd *Renderer) Render(w http.ResponseWriter, status int, name string, data any) {
	t, ok := rd.pages[name]
	if !ok {
		slog.Error("unknown template", slog.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		slog.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// StaticHandler は埋め込みの静的ファイルを /static/ 配下で配信する。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// pageData は全ページ共通のテンプレートデータ。
type pageData struct {
	Title     string
	Viewer    *model.Viewer
	CSRFToken string
	Flash     *Flash
}

// statusOption は回答フォームのステータス選択肢。
type statusOption struct {
	Value string
	Label string
}

func statusOptions() []statusOption {
	opts := make([]statusOption, 0, len(model.AllQueryStatuses))
	for _, s := range model.AllQueryStatuses {
		_, label := view.StatusBadge(s)
		opts = append(opts, statusOption{Value: string(s), Label: label})
	}
	return opts
}
