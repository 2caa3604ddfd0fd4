// Package state はアプリケーション全体で共有するリアクティブな状態をまとめる。
package state

import (
	"log/slog"

	"github.com/hitoshi/scurrysheets/internal/model"
	"github.com/hitoshi/scurrysheets/internal/navigation"
	"github.com/hitoshi/scurrysheets/internal/storage"
	"github.com/hitoshi/scurrysheets/internal/store"
)

// AppState はセッション、プロフィール、表示中のパネル、現在のパスを保持する。
// 起動時に1つだけ生成し、利用する側へ明示的に渡す。
type AppState struct {
	// Session はサインイン中のユーザーとセッション。サインアウト中はnil。
	Session *store.Writable[*model.UserSession]
	// Profile はuser_settingsのローカルキャッシュ。未取得またはサインアウト中はnil。
	Profile *store.Writable[*model.UserProfile]
	Panel   *navigation.PanelStore
	Route   *navigation.Router
}

// New はAppStateを生成する。パネルの選択状態はlsから復元する。
func New(ls storage.LocalStorage, logger *slog.Logger) *AppState {
	return &AppState{
		Session: store.NewWritable[*model.UserSession](nil),
		Profile: store.NewWritable[*model.UserProfile](nil),
		Panel:   navigation.NewPanelStore(ls, logger),
		Route:   navigation.NewRouter(),
	}
}

// SignedIn は現在サインイン中かどうかを返す。
func (s *AppState) SignedIn() bool {
	us := s.Session.Get()
	return us != nil && us.User != nil
}
