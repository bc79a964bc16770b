// Package view は画面のHTMLテンプレートを提供する。
package view

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/hitoshi/gatehouse/internal/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

// ページテンプレート名
const (
	PageIndex   = "index.html"
	PageProfile = "profile.html"
	PageChat    = "chat.html"
)

// PageData はテンプレートに渡す値。
type PageData struct {
	Title     string
	Message   string
	CSRFToken string
	Providers []string
	User      *model.User
}

// Renderer は埋め込みテンプレートからページを描画する。
type Renderer struct {
	templates *template.Template
}

// NewRenderer は埋め込みテンプレートを解析してRendererを生成する。
func NewRenderer() (*Renderer, error) {
	t, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{templates: t}, nil
}

// ErrResponseWrite はヘッダー送信後にレスポンス本文の書き込みに失敗したことを表す。
// この場合は応答を差し替えられない。
var ErrResponseWrite = errors.New("failed to write page response")

// Render はページを描画してレスポンスに書き込む。
// 描画に失敗した場合は何も書き込まずにエラーを返す。
// 書き込みの失敗はErrResponseWriteでラップして返す。
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data PageData) error {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, page, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("%w: %w", ErrResponseWrite, err)
	}
	return nil
}
