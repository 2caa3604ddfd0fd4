package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PostgRESTおよびPostgreSQLのエラーコード。
const (
	// CodeNoRows は単一行取得で0行（または複数行）だったことを示す。
	CodeNoRows = "PGRST116"
	// CodeTableNotFound はスキーマキャッシュにテーブルが存在しないことを示す。
	CodeTableNotFound = "PGRST205"
	// CodeUndefinedTable はPostgreSQLのundefined_tableエラー。
	CodeUndefinedTable = "42P01"
)

// ErrFetchFailed はリモートへのHTTPリクエスト自体が失敗したことを示す。
// DNS解決失敗や接続拒否など、レスポンスを受け取れなかった場合に該当する。
var ErrFetchFailed = errors.New("Failed to fetch")

// FetchError はトランスポート層の失敗を表す。
// errors.Is(err, ErrFetchFailed) で判定できる。
type FetchError struct {
	Op  string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrFetchFailed.Error(), e.Err)
}

// Unwrap はErrFetchFailedと元のエラーの両方を返す。
func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}

// Error はリモートサービスが返したエラーレスポンスを表す。
type Error struct {
	Status  int
	Code    string
	Message string
	Details string
	Hint    string
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

// HasCode はerrがいずれかのコードを持つリモートエラーかどうかを判定する。
func HasCode(err error, codes ...string) bool {
	var remote *Error
	if !errors.As(err, &remote) {
		return false
	}
	for _, c := range codes {
		if remote.Code == c {
			return true
		}
	}
	return false
}

// errorBody はPostgRESTとGoTrueのエラーレスポンスをまとめて受けるための構造体。
// GoTrueはcodeを数値で返すことがあるためRawMessageで受ける。
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Message          string          `json:"message"`
	Msg              string          `json:"msg"`
	ErrorName        string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Details          string          `json:"details"`
	Hint             string          `json:"hint"`
}

// parseError はエラーレスポンスのボディからErrorを組み立てる。
// JSONとして解釈できない場合はボディ全体をメッセージとする。
func parseError(status int, body []byte) *Error {
	e := &Error{Status: status}

	var b errorBody
	if err := json.Unmarshal(body, &b); err != nil {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = fmt.Sprintf("request failed with status %d", status)
		}
		return e
	}

	switch {
	case len(b.Code) > 0 && b.Code[0] == '"':
		_ = json.Unmarshal(b.Code, &e.Code)
	case b.ErrorCode != "":
		e.Code = b.ErrorCode
	case b.ErrorName != "":
		e.Code = b.ErrorName
	}

	for _, m := range []string{b.Message, b.Msg, b.ErrorDescription, b.ErrorName} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("request failed with status %d", status)
	}
	e.Details = b.Details
	e.Hint = b.Hint

	return e
}
