package model

// PanelType はアプリケーションのトップレベル画面を表す。
type PanelType string

const (
	// PanelUpload はアップロード画面。
	PanelUpload PanelType = "upload"
	// PanelDocuments はドキュメント一覧画面。
	PanelDocuments PanelType = "documents"
	// PanelProfile はプロフィール画面。
	PanelProfile PanelType = "profile"
)

// DefaultPanel は保存値がない場合に表示する画面。
const DefaultPanel = PanelDocuments

// Panels は表示順に並べた全画面。
var Panels = []PanelType{PanelUpload, PanelDocuments, PanelProfile}

// ParsePanel は文字列を画面種別に変換する。3種類以外はfalseを返す。
func ParsePanel(s string) (PanelType, bool) {
	switch PanelType(s) {
	case PanelUpload, PanelDocuments, PanelProfile:
		return PanelType(s), true
	default:
		return "", false
	}
}

// Valid は有効な画面種別かどうかを返す。
func (p PanelType) Valid() bool {
	_, ok := ParsePanel(string(p))
	return ok
}

// Title は画面のタブ表示名を返す。
func (p PanelType) Title() string {
	switch p {
	case PanelUpload:
		return "Upload"
	case PanelDocuments:
		return "Documents"
	case PanelProfile:
		return "Profile"
	default:
		return string(p)
	}
}
