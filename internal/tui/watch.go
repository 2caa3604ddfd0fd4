package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hitoshi/scurrysheets/internal/model"
	"github.com/hitoshi/scurrysheets/internal/state"
)

// watch はAppStateの各コンテナを購読し、変更をchに通知する。
// 通知は1件にまとめ、受信側が追いつくまで購読者をブロックしない。
func watch(st *state.AppState) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	notify := func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}

	unsubs := []func(){
		st.Panel.Subscribe(func(model.PanelType) { notify() }),
		st.Session.Subscribe(func(*model.UserSession) { notify() }),
		st.Profile.Subscribe(func(*model.UserProfile) { notify() }),
		st.Route.Subscribe(func(string) { notify() }),
	}
	return ch, func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}
