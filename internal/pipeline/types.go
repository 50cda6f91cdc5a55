// =============================================================================
// types.go - データ構造定義
// =============================================================================
//
// このファイルはguardian-trendシステム全体で使用するデータ構造（型）を定義します。
//
// 【このファイルで定義している型】
//   - Article:        Guardian APIから取得した記事メタデータ（読み取り専用）
//   - SearchResponse: Guardian API /search のレスポンスエンベロープ
//   - SearchPage:     エンベロープ内の1ページ分の結果
//   - Day:            ISO暦日（YYYY-MM-DD）
//   - CountRow:       日付×セクションごとの記事数（永続化の単位）
//   - DailyTotal:     日付ごとの全セクション合計（チャート用）
//   - Window:         取得期間（両端を含む）
//
// =============================================================================
package pipeline

import (
	"fmt"
	"time"
)

// DateLayout はテーブルとAPIパラメータで使用する日付フォーマット
const DateLayout = "2006-01-02"

// -----------------------------------------------------------------------------
// Article - Guardian APIの記事メタデータ
// -----------------------------------------------------------------------------
//
// 集計に使うのは WebPublicationDate と SectionName のみ。
// それ以外のフィールドはログ出力用に保持している。
//
type Article struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	SectionID          string `json:"sectionId"`
	SectionName        string `json:"sectionName"`
	WebPublicationDate string `json:"webPublicationDate"` // RFC3339（例: "2024-01-05T10:00:00Z"）
	WebTitle           string `json:"webTitle"`
	WebURL             string `json:"webUrl"`
}

// SearchResponse は /search エンドポイントのJSONエンベロープ
//
// 【レスポンス例】
//
//	{"response": {"status": "ok", "total": 412, "currentPage": 1,
//	              "pages": 3, "results": [...]}}
//
// レート制限やゲートウェイのエラーは "response" を含まない
// （例: {"message": "API rate limit exceeded"}）。その場合 Response は nil。
type SearchResponse struct {
	Response *SearchPage `json:"response"`
	Message  string      `json:"message,omitempty"`
}

// SearchPage は1ページ分の検索結果
type SearchPage struct {
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"` // status != "ok" の場合のみ
	Total       int       `json:"total"`
	CurrentPage int       `json:"currentPage"`
	PageSize    int       `json:"pageSize"`
	Pages       int       `json:"pages"`
	Results     []Article `json:"results"`
}

// -----------------------------------------------------------------------------
// Day - ISO暦日
// -----------------------------------------------------------------------------
//
// UTCの0時0分として保持する。時刻・タイムゾーンは意味を持たない。
//
type Day struct {
	time.Time
}

// NewDay は年月日からDayを作成する
func NewDay(year int, month time.Month, day int) Day {
	return Day{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf は時刻 t のローカル日付（tが持つロケーション基準）をDayとして返す
func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

// ParseDay は "YYYY-MM-DD" 形式の文字列をパースする
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Day{t}, nil
}

// String は "YYYY-MM-DD" 形式で返す
func (d Day) String() string {
	return d.Format(DateLayout)
}

// AddDays は n 日後のDayを返す
func (d Day) AddDays(n int) Day {
	return Day{d.AddDate(0, 0, n)}
}

// Before は d が o より前の日付かどうかを返す
func (d Day) Before(o Day) bool {
	return d.Time.Before(o.Time)
}

// After は d が o より後の日付かどうかを返す
func (d Day) After(o Day) bool {
	return d.Time.After(o.Time)
}

// Equal は同じ日付かどうかを返す
func (d Day) Equal(o Day) bool {
	return d.Time.Equal(o.Time)
}

// -----------------------------------------------------------------------------
// CountRow - 日付×セクションの記事数
// -----------------------------------------------------------------------------
//
// テーブルは (Date, Section) ごとに最大1行。Count は0以上。
//
// 【CSVカラム】
//
//	Date,Number of Articles,SectionName
type CountRow struct {
	Date    Day
	Count   int
	Section string
}

// rowKey は重複排除用のキー
type rowKey struct {
	date    string
	section string
}

func (r CountRow) key() rowKey {
	return rowKey{date: r.Date.String(), section: r.Section}
}

// DailyTotal は日付ごとの全セクション合計
type DailyTotal struct {
	Date  Day
	Total int
}

// -----------------------------------------------------------------------------
// Window - 取得期間
// -----------------------------------------------------------------------------

// Window は記事取得の期間（From, To とも含む）
type Window struct {
	From Day
	To   Day
}

// Empty は期間が空（From > To）かどうかを返す
//
// テーブルが既に最新の場合に発生する。
func (w Window) Empty() bool {
	return w.From.After(w.To)
}

// Contains は d が期間内かどうかを返す
func (w Window) Contains(d Day) bool {
	return !d.Before(w.From) && !d.After(w.To)
}

func (w Window) String() string {
	return w.From.String() + ".." + w.To.String()
}
