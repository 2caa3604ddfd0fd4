// Package model はドメインモデルを定義する。
package model

import "errors"

// ErrNotAuthenticated はサインイン中のセッションが存在しないことを示す。
var ErrNotAuthenticated = errors.New("Not authenticated")

// Result はユーザー操作の結果を表す。
// 失敗時のみErrorにユーザー向けのメッセージが入る。
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// OK は成功のResultを返す。
func OK() Result {
	return Result{Success: true}
}

// Fail はメッセージ付きの失敗Resultを返す。
func Fail(message string) Result {
	return Result{Success: false, Error: message}
}

// FailErr はerrorから失敗Resultを生成する。
func FailErr(err error) Result {
	return Fail(err.Error())
}

// ConnectivityResult は接続診断の結果を表す。永続化はしない。
type ConnectivityResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}
