// =============================================================================
// aggregate.go - 日付×セクション集計
// =============================================================================
//
// 記事リストを (公開日, セクション名) でグループ化して件数を数えます。
// 副作用のない純粋関数で、同じ入力には常に同じ出力を返します。
//
// =============================================================================
package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// AggregateDaily は記事を (公開日, セクション名) ごとに集計する
//
// 公開日はAPIが返したタイムスタンプの日付部分（"T" より前）をそのまま使う。
// 結果は (Date, Section) 昇順でソート済み。
// タイムスタンプが日付として解釈できない記事があればエラーを返す。
func AggregateDaily(articles []Article) ([]CountRow, error) {
	counts := map[rowKey]*CountRow{}

	for _, a := range articles {
		day, err := publicationDay(a.WebPublicationDate)
		if err != nil {
			return nil, fmt.Errorf("article %q: %w", a.ID, err)
		}
		row := CountRow{Date: day, Section: a.SectionName}
		k := row.key()
		if existing, ok := counts[k]; ok {
			existing.Count++
			continue
		}
		row.Count = 1
		counts[k] = &row
	}

	rows := make([]CountRow, 0, len(counts))
	for _, r := range counts {
		rows = append(rows, *r)
	}
	sortRows(rows)
	return rows, nil
}

// publicationDay は "2024-01-05T10:00:00Z" から 2024-01-05 を取り出す
func publicationDay(ts string) (Day, error) {
	datePart, _, _ := strings.Cut(strings.TrimSpace(ts), "T")
	if datePart == "" {
		return Day{}, fmt.Errorf("missing publication date")
	}
	return ParseDay(datePart)
}

// sortRows は (Date, Section) 昇順でソートする
func sortRows(rows []CountRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Section < rows[j].Section
	})
}
