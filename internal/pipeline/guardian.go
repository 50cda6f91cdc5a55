// =============================================================================
// guardian.go - Guardian Content API 記事取得
// =============================================================================
//
// このファイルはGuardian Content API（/search）から記事メタデータを
// ページングしながら取得する機能を提供します。
//
// =============================================================================
// 【ページングの流れ】
// =============================================================================
//
//  1. page=1 から開始（totalPages は1で初期化）
//  2. レスポンスの status が "ok" なら results を追加し、pages で totalPages を更新
//  3. status が "ok" 以外ならログを出してループを終了（それまでの結果を返す）
//  4. page > totalPages になったら終了
//
// 【エラーの扱い】
//   - status != "ok":           エラーログのみ。途中までの結果を正常として返す
//   - "response" エンベロープなし: エラー（429のレート制限、ゲートウェイの401など）
//   - 通信エラー/JSON不正:      エラーとして呼び出し元に返す（リトライなし）
//
// =============================================================================
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ArticleFetcher は期間内の記事を取得するインターフェース
//
// Job はこのインターフェース経由で取得するため、テストで差し替えられる。
type ArticleFetcher interface {
	FetchArticles(ctx context.Context, query string, window Window) ([]Article, error)
}

// GuardianClient はGuardian Content APIのクライアント
type GuardianClient struct {
	baseURL   string
	apiKey    string
	pageSize  int
	userAgent string
	client    *http.Client
}

// NewGuardianClient は設定からクライアントを作成する
func NewGuardianClient(cfg GuardianConfig) *GuardianClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &GuardianClient{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		pageSize:  cfg.PageSize,
		userAgent: cfg.UserAgent,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// FetchArticles は query に一致する記事を window の期間（両端含む）で全件取得する
//
// 返す記事の順序はAPIの返却順（order-by=newest）で、時系列順は保証しない。
func (gc *GuardianClient) FetchArticles(ctx context.Context, query string, window Window) ([]Article, error) {
	var articles []Article
	currentPage := 1
	totalPages := 1 // ループを開始するため1で初期化

	infof("Fetching articles for %q from %s to %s...", query, window.From, window.To)

	for currentPage <= totalPages {
		var resp SearchResponse
		status, err := httpGetJSON(ctx, gc.client, gc.searchURL(query, window, currentPage), gc.userAgent, &resp)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", currentPage, err)
		}
		if resp.Response == nil {
			return nil, fmt.Errorf("fetch page %d: HTTP %d without response envelope: %s",
				currentPage, status, resp.Message)
		}

		page := resp.Response
		if page.Status != "ok" {
			errorf("Error fetching the data: %s %s", page.Status, page.Message)
			break
		}

		articles = append(articles, page.Results...)
		totalPages = page.Pages
		if currentPage%10 == 0 || currentPage == 1 || currentPage == totalPages {
			infof("Processed page %d of %d.", currentPage, totalPages)
		}
		currentPage++
	}

	infof("Finished fetching articles. Total articles fetched: %d", len(articles))
	return articles, nil
}

// searchURL は /search のリクエストURLを組み立てる
func (gc *GuardianClient) searchURL(query string, window Window, page int) string {
	params := url.Values{}
	params.Set("api-key", gc.apiKey)
	params.Set("q", query)
	params.Set("from-date", window.From.String())
	params.Set("to-date", window.To.String())
	params.Set("page", strconv.Itoa(page))
	params.Set("page-size", strconv.Itoa(gc.pageSize))
	params.Set("order-by", "newest")
	return gc.baseURL + "/search?" + params.Encode()
}
