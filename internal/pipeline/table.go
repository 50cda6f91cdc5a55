// =============================================================================
// table.go - 履歴テーブル（CSV）の読み書き
// =============================================================================
//
// 【CSVフォーマット】
//
//	Date,Number of Articles,SectionName
//	2024-01-05,3,World
//	2024-01-05,1,Politics
//
// 【読み込み時の扱い】
//   - 空ファイル（空白のみを含む）: 空テーブル
//   - ヘッダーのみ:                 空テーブル
//   - カラムはヘッダー名で解決する（列順が違っても読める）
//   - 日付に時刻が付いている場合（"2024-01-05 00:00:00"）は日付部分のみ使用
//   - 件数が "3.0" のような整数値の小数表記でも受け付ける
//
// 【書き込み時の扱い】
//   - 常にヘッダーを出力し、(Date, Section) 昇順で書き出す
//
// =============================================================================
package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// CSVカラム名
const (
	ColumnDate    = "Date"
	ColumnCount   = "Number of Articles"
	ColumnSection = "SectionName"
)

var tableHeader = []string{ColumnDate, ColumnCount, ColumnSection}

// ReadTable はCSVから履歴テーブルを読み込む
func ReadTable(r io.Reader) ([]CountRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read table header: %w", err)
	}
	cols, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var rows []CountRow
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read table line %d: %w", line, err)
		}
		if isBlankRecord(rec) {
			continue
		}
		row, err := parseRecord(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("table line %d: %w", line, err)
		}
		rows = append(rows, row)
	}

	sortRows(rows)
	return rows, nil
}

// WriteTable は履歴テーブルをCSVとして書き出す
func WriteTable(w io.Writer, rows []CountRow) error {
	sorted := append([]CountRow{}, rows...)
	sortRows(sorted)

	cw := csv.NewWriter(w)
	if err := cw.Write(tableHeader); err != nil {
		return fmt.Errorf("write table header: %w", err)
	}
	for _, r := range sorted {
		rec := []string{r.Date.String(), strconv.Itoa(r.Count), r.Section}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write table row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// encodeTable はテーブルをCSVバイト列に変換する
func encodeTable(rows []CountRow) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteTable(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type columnIndex struct {
	date, count, section int
}

func headerIndex(header []string) (columnIndex, error) {
	idx := columnIndex{date: -1, count: -1, section: -1}
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case ColumnDate:
			idx.date = i
		case ColumnCount:
			idx.count = i
		case ColumnSection:
			idx.section = i
		}
	}
	if idx.date < 0 || idx.count < 0 || idx.section < 0 {
		return idx, fmt.Errorf("table header must contain %q, %q and %q, got %q",
			ColumnDate, ColumnCount, ColumnSection, header)
	}
	return idx, nil
}

func parseRecord(rec []string, cols columnIndex) (CountRow, error) {
	field := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	datePart := field(cols.date)
	datePart, _, _ = strings.Cut(datePart, " ")
	datePart, _, _ = strings.Cut(datePart, "T")
	day, err := ParseDay(datePart)
	if err != nil {
		return CountRow{}, err
	}

	count, err := parseCount(field(cols.count))
	if err != nil {
		return CountRow{}, err
	}

	return CountRow{Date: day, Count: count, Section: field(cols.section)}, nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("invalid article count %q", s)
		}
		n = int(f)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative article count %d", n)
	}
	return n, nil
}

func isBlankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
