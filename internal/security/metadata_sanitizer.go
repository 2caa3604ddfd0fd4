// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MetadataSanitizer はOAuthプロバイダーから受け取ったユーザーメタデータを
// user_settingsへ保存する前に無害化する。表示名はbluemondayの
// StrictPolicyで全てのHTMLを除去し、アバターURLはhttp/httpsのみ許可する。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MetadataSanitizerService はユーザーメタデータの無害化インターフェース。
type MetadataSanitizerService interface {
	// SanitizeText はHTMLタグを除去したプレーンテキストを返す。
	SanitizeText(raw string) string
	// SanitizeURL はhttp/httpsの絶対URLのみを返す。それ以外は空文字列。
	SanitizeURL(raw string) string
}

// metadataSanitizer はMetadataSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type metadataSanitizer struct {
	policy *bluemonday.Policy
}

// NewMetadataSanitizer はMetadataSanitizerServiceの新しいインスタンスを生成する。
func NewMetadataSanitizer() *metadataSanitizer {
	return &metadataSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText はHTMLを除去し、エスケープされた実体参照を元の文字に戻す。
func (s *metadataSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// SanitizeURL はhttp/httpsの絶対URLのみを通過させる。
func (s *metadataSanitizer) SanitizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "http", "https":
		return u.String()
	default:
		return ""
	}
}

// compile-time interface check
var _ MetadataSanitizerService = (*metadataSanitizer)(nil)
