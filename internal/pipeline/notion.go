// =============================================================================
// notion.go - Notionデータベースへの日別合計の記録
// =============================================================================
//
// 更新があった実行で、新しく集計された日付ごとの合計件数を
// Notionデータベースに1日1ページとして記録します（任意機能）。
//
// 【必要な環境変数】
//   - NOTION_TOKEN:       Notion Integration Token
//   - NOTION_DATABASE_ID: 記録先データベースID
//
// 【データベースのプロパティ】
//   - Date     (title)     : "2024-01-05"
//   - Articles (number)    : 日別合計
//   - Query    (select)    : 検索クエリ
//   - Sections (rich_text) : "Politics=1, World=3"
//
// 1ページの作成に失敗しても残りのページの作成は続ける。
//
// =============================================================================
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
)

// notionTextLimit はrich_textプロパティ1要素あたりの文字数上限
const notionTextLimit = 2000

// Publisher は新規行を外部に記録するインターフェース
type Publisher interface {
	PublishDailyTotals(ctx context.Context, query string, rows []CountRow) (int, error)
}

// NotionPublisher はNotionデータベースにページを作成する
type NotionPublisher struct {
	client *notionapi.Client
	dbID   notionapi.DatabaseID
}

// NewNotionPublisher は新しいNotionPublisherを作成する
func NewNotionPublisher(cfg NotionConfig) (*NotionPublisher, error) {
	if cfg.Token == "" {
		return nil, errors.New("NOTION_TOKEN is required")
	}
	if cfg.DatabaseID == "" {
		return nil, errors.New("NOTION_DATABASE_ID is required")
	}
	return &NotionPublisher{
		client: notionapi.NewClient(notionapi.Token(cfg.Token)),
		dbID:   notionapi.DatabaseID(cfg.DatabaseID),
	}, nil
}

// PublishDailyTotals は rows に含まれる日付ごとに1ページを作成する
//
// 作成できたページ数を返す。1件以上失敗した場合はエラーも返す。
func (np *NotionPublisher) PublishDailyTotals(ctx context.Context, query string, rows []CountRow) (int, error) {
	sections := sectionsByDate(rows)
	created := 0
	var errs []error

	for _, t := range DailyTotals(rows) {
		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: np.dbID,
			},
			Properties: dailyTotalProperties(t, query, sections[t.Date.String()]),
		}
		if _, err := np.client.Page.Create(ctx, req); err != nil {
			warnf("failed to publish %s to Notion: %v", t.Date, err)
			errs = append(errs, fmt.Errorf("publish %s: %w", t.Date, err))
			continue
		}
		created++
	}

	return created, errors.Join(errs...)
}

// dailyTotalProperties は1日分のページプロパティを組み立てる
func dailyTotalProperties(t DailyTotal, query string, rows []CountRow) notionapi.Properties {
	return notionapi.Properties{
		"Date": notionapi.TitleProperty{
			Type: notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{
				{Text: &notionapi.Text{Content: t.Date.String()}},
			},
		},
		"Articles": notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: float64(t.Total),
		},
		"Query": notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: query},
		},
		"Sections": notionapi.RichTextProperty{
			Type: notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{
				{Text: &notionapi.Text{Content: truncateText(sectionSummary(rows), notionTextLimit)}},
			},
		},
	}
}

// sectionSummary は "Politics=1, World=3" 形式の文字列を返す
func sectionSummary(rows []CountRow) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = fmt.Sprintf("%s=%d", r.Section, r.Count)
	}
	return strings.Join(parts, ", ")
}

// truncateText は text を maxLen 文字（rune単位）に切り詰める
func truncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen-3]) + "..."
}
