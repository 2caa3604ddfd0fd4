package supabase

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// QueryBuilder はPostgRESTのテーブル操作を組み立てる。
// From → Select/Insert/Update → Eq/Limit/Single → Execute の順に呼び出す。
type QueryBuilder struct {
	client  *Client
	table   string
	method  string
	columns string
	query   url.Values
	body    any
	single  bool
}

// From は指定テーブルへの操作を開始する。
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client: c,
		table:  table,
		method: http.MethodGet,
		query:  url.Values{},
	}
}

// Select は取得するカラムを指定する。Insert/Updateと組み合わせた場合は更新後の行を返す。
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	if columns == "" {
		columns = "*"
	}
	q.columns = columns
	return q
}

// Insert は行の挿入を指定する。rowsは構造体のスライスを想定する。
func (q *QueryBuilder) Insert(rows any) *QueryBuilder {
	q.method = http.MethodPost
	q.body = rows
	return q
}

// Update はフィルタに一致する行の更新を指定する。
func (q *QueryBuilder) Update(values any) *QueryBuilder {
	q.method = http.MethodPatch
	q.body = values
	return q
}

// Eq はカラムの等価条件を追加する。
func (q *QueryBuilder) Eq(column, value string) *QueryBuilder {
	q.query.Add(column, "eq."+value)
	return q
}

// Limit は取得件数の上限を指定する。
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.query.Set("limit", strconv.Itoa(n))
	return q
}

// Single は結果がちょうど1行であることを要求する。
// 0行または複数行の場合はコードPGRST116のエラーになる。
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	return q
}

// Execute はリクエストを実行し、結果をdstにデコードする。dstがnilの場合は結果を読み捨てる。
func (q *QueryBuilder) Execute(ctx context.Context, dst any) error {
	query := url.Values{}
	for k, v := range q.query {
		query[k] = v
	}

	headers := map[string]string{}
	returning := q.columns != ""

	switch q.method {
	case http.MethodGet:
		if q.columns == "" {
			q.columns = "*"
		}
		query.Set("select", q.columns)
	default:
		if returning {
			query.Set("select", q.columns)
			headers["Prefer"] = "return=representation"
		} else {
			headers["Prefer"] = "return=minimal"
		}
	}
	if q.single {
		headers["Accept"] = "application/vnd.pgrst.object+json"
	}

	return q.client.do(ctx, request{
		op:      q.op(),
		method:  q.method,
		url:     q.client.endpoint(restPath+"/"+q.table, query),
		token:   q.client.Auth.accessToken(ctx),
		body:    q.body,
		headers: headers,
	}, dst)
}

// op はメトリクス・ログ用の操作名を返す。
func (q *QueryBuilder) op() string {
	switch q.method {
	case http.MethodPost:
		return "insert:" + q.table
	case http.MethodPatch:
		return "update:" + q.table
	default:
		return "select:" + q.table
	}
}
