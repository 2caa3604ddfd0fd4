package navigation

import (
	"log/slog"

	"github.com/hitoshi/scurrysheets/internal/store"
)

// RootPath はアプリケーションのルートパス。
const RootPath = "/"

// Router はアプリ内の現在パスを保持する。UIは購読して画面遷移を反映する。
type Router struct {
	path *store.Writable[string]
}

// NewRouter はルートパスから開始するRouterを生成する。
func NewRouter() *Router {
	return &Router{path: store.NewWritable(RootPath)}
}

// Path は現在のパスを返す。
func (r *Router) Path() string {
	return r.path.Get()
}

// Goto は指定パスへ遷移する。
func (r *Router) Goto(path string) {
	if path == "" {
		path = RootPath
	}
	slog.Debug("navigate", slog.String("path", path))
	r.path.Set(path)
}

// Subscribe は現在のパスを即座に通知し、以降の遷移を通知する。
func (r *Router) Subscribe(fn func(string)) (unsubscribe func()) {
	return r.path.Subscribe(fn)
}
