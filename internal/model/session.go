package model

import "time"

// Session は外部認証サービスが発行したログインセッションを表す。
// アクセストークンはリフレッシュトークンで更新できる。
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// ExpiresWithin はセッションがd以内に期限切れになるかどうかを返す。
// ExpiresAtが未設定の場合は期限切れとみなさない。
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return time.Unix(s.ExpiresAt, 0).Before(now.Add(d))
}

// UserID はセッションのユーザーIDを返す。ユーザー情報がない場合は空文字列。
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}
