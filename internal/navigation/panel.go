// Package navigation は画面選択の永続化とアプリ内ナビゲーションを提供する。
package navigation

import (
	"log/slog"

	"github.com/hitoshi/scurrysheets/internal/model"
	"github.com/hitoshi/scurrysheets/internal/storage"
	"github.com/hitoshi/scurrysheets/internal/store"
)

// PanelStorageKey は選択中の画面を保存するストレージキー。
const PanelStorageKey = "activePanel"

// PanelStore は選択中の画面を保持し、変更のたびにストレージへ書き戻す。
// このコンポーネントはエラーを返さない。不正な保存値は既定値に正規化する。
type PanelStore struct {
	storage storage.LocalStorage
	logger  *slog.Logger
	value   *store.Writable[model.PanelType]
}

// NewPanelStore はストレージの保存値から初期値を決定してPanelStoreを生成する。
// 保存値がない、または3種類のいずれでもない場合はdocumentsとする。
func NewPanelStore(s storage.LocalStorage, logger *slog.Logger) *PanelStore {
	if logger == nil {
		logger = slog.Default()
	}

	initial := model.DefaultPanel
	if raw, ok := s.GetItem(PanelStorageKey); ok {
		if p, valid := model.ParsePanel(raw); valid {
			initial = p
		}
	}

	return &PanelStore{
		storage: s,
		logger:  logger,
		value:   store.NewWritable(initial),
	}
}

// Get は選択中の画面を返す。
func (p *PanelStore) Get() model.PanelType {
	return p.value.Get()
}

// Set は選択中の画面を更新し、即座にストレージへ保存する。
// 不正な値は無視し、現在値を維持する。
func (p *PanelStore) Set(panel model.PanelType) {
	if !panel.Valid() {
		p.logger.Warn("ignoring invalid panel selection",
			slog.String("panel", string(panel)),
		)
		return
	}

	p.value.Set(panel)

	if err := p.storage.SetItem(PanelStorageKey, string(panel)); err != nil {
		p.logger.Error("failed to persist panel selection",
			slog.String("panel", string(panel)),
			slog.String("error", err.Error()),
		)
	}
}

// Subscribe は現在値を即座に通知し、以降の変更を通知する。
func (p *PanelStore) Subscribe(fn func(model.PanelType)) (unsubscribe func()) {
	return p.value.Subscribe(fn)
}

// Next は表示順で次の画面に切り替える。
func (p *PanelStore) Next() {
	current := p.Get()
	for i, panel := range model.Panels {
		if panel == current {
			p.Set(model.Panels[(i+1)%len(model.Panels)])
			return
		}
	}
	p.Set(model.DefaultPanel)
}
