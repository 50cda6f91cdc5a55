// =============================================================================
// merge.go - 差分更新ロジック
// =============================================================================
//
// 永続化済みテーブルと新規集計結果をマージします。
//
// 【マージ方針】
//   - 既存行 + 新規行 を連結
//   - (Date, Section) が重複した場合は新規行（後から追加した値）を残す
//     → 同じ日を再取得した場合、件数は加算ではなく置き換え
//   - (Date, Section) 昇順で再ソート
//
// 【取得期間】
//
//	(テーブルの最終日 + 1日) 〜 今日（ローカル時刻）
//	テーブルが空の場合は起点日（既定 2018-01-01）を最終日とみなす
//
// =============================================================================
package pipeline

import (
	"sort"
	"time"
)

// MergeRows は既存テーブルと新規行をマージする
//
// 入力スライスは変更しない。
func MergeRows(existing, incoming []CountRow) []CountRow {
	index := make(map[rowKey]int, len(existing)+len(incoming))
	merged := make([]CountRow, 0, len(existing)+len(incoming))

	for _, rows := range [][]CountRow{existing, incoming} {
		for _, r := range rows {
			k := r.key()
			if i, ok := index[k]; ok {
				merged[i] = r // last write wins
				continue
			}
			index[k] = len(merged)
			merged = append(merged, r)
		}
	}

	sortRows(merged)
	return merged
}

// LastDate はテーブル内の最大日付を返す
//
// テーブルが空の場合は floor を返す。
func LastDate(rows []CountRow, floor Day) Day {
	if len(rows) == 0 {
		return floor
	}
	last := rows[0].Date
	for _, r := range rows[1:] {
		if r.Date.After(last) {
			last = r.Date
		}
	}
	return last
}

// FetchWindow は最終日の翌日から now のローカル日付までの期間を返す
//
// 最終日が今日以降の場合は空の期間（Empty() == true）になる。
func FetchWindow(last Day, now time.Time) Window {
	return Window{
		From: last.AddDays(1),
		To:   DayOf(now.Local()),
	}
}

// DailyTotals は日付ごとに全セクションの件数を合計する
//
// 結果は日付昇順。
func DailyTotals(rows []CountRow) []DailyTotal {
	var totals []DailyTotal
	index := map[string]int{}

	for _, r := range rows {
		k := r.Date.String()
		if i, ok := index[k]; ok {
			totals[i].Total += r.Count
			continue
		}
		index[k] = len(totals)
		totals = append(totals, DailyTotal{Date: r.Date, Total: r.Count})
	}

	sortTotals(totals)
	return totals
}

// sectionsByDate は日付ごとのセクション別件数（Section昇順）を返す
func sectionsByDate(rows []CountRow) map[string][]CountRow {
	out := map[string][]CountRow{}
	for _, r := range rows {
		k := r.Date.String()
		out[k] = append(out[k], r)
	}
	for k := range out {
		sortRows(out[k])
	}
	return out
}

func sortTotals(totals []DailyTotal) {
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].Date.Before(totals[j].Date)
	})
}
