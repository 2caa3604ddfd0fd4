package model

import "time"

// FreeTierVisionAPILimit はVision APIの無料枠の上限回数。
// リモートの値に関わらずこの値を使用する。
const FreeTierVisionAPILimit = 1000

// UserMetadata はOAuthプロバイダーから受け取ったユーザーのメタデータを表す。
// プロバイダーによってfull_name/avatar_urlの代わりにname/pictureが入る。
type UserMetadata struct {
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Name      string `json:"name,omitempty"`
	Picture   string `json:"picture,omitempty"`
}

// User は外部認証サービスが管理するユーザーを表す。
type User struct {
	ID           string       `json:"id"`
	Email        string       `json:"email,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata"`
}

// DisplayName はメタデータから表示名を決定する。
func (u *User) DisplayName() string {
	if u.UserMetadata.FullName != "" {
		return u.UserMetadata.FullName
	}
	return u.UserMetadata.Name
}

// Avatar はメタデータからアバターURLを決定する。
func (u *User) Avatar() string {
	if u.UserMetadata.AvatarURL != "" {
		return u.UserMetadata.AvatarURL
	}
	return u.UserMetadata.Picture
}

// UserSession はサインイン中のユーザーとセッションの組を表す。
// サインアウト時はnilで表現する。
type UserSession struct {
	User    *User
	Session *Session
}

// UserProfile はuser_settingsテーブルの1行をローカル表現に変換したもの。
// リモートが正であり、ローカルはリードスルーキャッシュとして扱う。
type UserProfile struct {
	ID                        string
	Email                     string
	FullName                  string
	AvatarURL                 string
	VisionAPIKey              string
	VisionAPIUsage            int
	VisionAPILimit            int
	DefaultHandwritingRemoval bool
	APIUsageResetDate         string
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// HasVisionAPIKey はVision APIキーが設定済みかどうかを返す。
func (p *UserProfile) HasVisionAPIKey() bool {
	return p != nil && p.VisionAPIKey != ""
}

// UserSettings はリモートのuser_settingsテーブルの行を表す。
// NULL許容のカラムはポインタで保持する。
type UserSettings struct {
	UserID                    string     `json:"user_id"`
	Email                     *string    `json:"email,omitempty"`
	FullName                  *string    `json:"full_name,omitempty"`
	AvatarURL                 *string    `json:"avatar_url,omitempty"`
	VisionAPIKey              *string    `json:"vision_api_key,omitempty"`
	APIUsageCount             *int       `json:"api_usage_count,omitempty"`
	APIUsageResetDate         *string    `json:"api_usage_reset_date,omitempty"`
	DefaultHandwritingRemoval *bool      `json:"default_handwriting_removal,omitempty"`
	CreatedAt                 *time.Time `json:"created_at,omitempty"`
	UpdatedAt                 *time.Time `json:"updated_at,omitempty"`
}

// NewUserSettings はプロフィール新規作成時の行を生成する。
// 利用回数は0、リセット日はnowの日付とする。
func NewUserSettings(userID, email, fullName, avatarURL string, now time.Time) *UserSettings {
	usage := 0
	resetDate := now.Format(time.DateOnly)
	handwriting := false
	return &UserSettings{
		UserID:                    userID,
		Email:                     &email,
		FullName:                  &fullName,
		AvatarURL:                 &avatarURL,
		APIUsageCount:             &usage,
		APIUsageResetDate:         &resetDate,
		DefaultHandwritingRemoval: &handwriting,
	}
}

// ToProfile はリモートの行をUserProfileに変換する。
// 欠落したテキストは空文字列、欠落したタイムスタンプはnowで補完する。
func (s *UserSettings) ToProfile(userID string, now time.Time) *UserProfile {
	p := &UserProfile{
		ID:             userID,
		Email:          deref(s.Email),
		FullName:       deref(s.FullName),
		AvatarURL:      deref(s.AvatarURL),
		VisionAPIKey:   deref(s.VisionAPIKey),
		VisionAPILimit: FreeTierVisionAPILimit,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if s.APIUsageCount != nil {
		p.VisionAPIUsage = *s.APIUsageCount
	}
	if s.APIUsageResetDate != nil {
		p.APIUsageResetDate = *s.APIUsageResetDate
	}
	if s.DefaultHandwritingRemoval != nil {
		p.DefaultHandwritingRemoval = *s.DefaultHandwritingRemoval
	}
	if s.CreatedAt != nil && !s.CreatedAt.IsZero() {
		p.CreatedAt = *s.CreatedAt
	}
	if s.UpdatedAt != nil && !s.UpdatedAt.IsZero() {
		p.UpdatedAt = *s.UpdatedAt
	}
	return p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
