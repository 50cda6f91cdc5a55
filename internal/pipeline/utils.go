// =============================================================================
// utils.go - ユーティリティ関数
// =============================================================================
//
// このファイルはパッケージ全体で使用する汎用的なヘルパー関数を提供します。
//
// 【このファイルで提供する機能】
//   - ログ出力: 情報・警告・エラー・デバッグメッセージの出力
//   - HTTP操作: User-Agent付きGETリクエストとJSONデコード
//   - 文字列操作: 空白正規化、秘密値のマスク
//
// 【ログ出力先について】
//
//	showコマンドなど標準出力にデータを出すコマンドがあるため、
//	ログメッセージはすべて標準エラー出力（stderr）に出力する
//
// =============================================================================
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// -----------------------------------------------------------------------------
// ログ出力関数
// -----------------------------------------------------------------------------

// logOutput はログの出力先（テストで差し替え可能）
var logOutput io.Writer = os.Stderr

// infof は情報メッセージを書き出す
//
// フォーマット: "INFO: メッセージ\n"
func infof(format string, args ...any) {
	fmt.Fprintf(logOutput, "INFO: "+format+"\n", args...)
}

// warnf は警告メッセージを書き出す
//
// フォーマット: "WARN: メッセージ\n"
func warnf(format string, args ...any) {
	fmt.Fprintf(logOutput, "WARN: "+format+"\n", args...)
}

// errorf はエラーメッセージを書き出す
//
// 【注意】この関数はログ出力のみでプログラムは終了しない
func errorf(format string, args ...any) {
	fmt.Fprintf(logOutput, "ERROR: "+format+"\n", args...)
}

// debugf は DEBUG_TREND が設定されている場合のみメッセージを書き出す
func debugf(format string, args ...any) {
	if os.Getenv("DEBUG_TREND") == "" {
		return
	}
	fmt.Fprintf(logOutput, "[DEBUG] "+format+"\n", args...)
}

// -----------------------------------------------------------------------------
// HTTP操作関数
// -----------------------------------------------------------------------------

// httpGetJSON はHTTP GETリクエストを実行し、JSONレスポンスをデコードする
//
// Guardian APIはエラー時（APIキー不正など）もJSONを返すため、
// HTTPステータスが2xx以外でもボディがJSONとして読めればデコード結果と
// ステータスコードを返す。デコードできない場合のみエラーとする。
//
// 使用例:
//
//	var resp SearchResponse
//	status, err := httpGetJSON(ctx, client, url, "guardian-trend/1.0", &resp)
func httpGetJSON(ctx context.Context, client *http.Client, url, userAgent string, v any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		}
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// -----------------------------------------------------------------------------
// 文字列操作関数
// -----------------------------------------------------------------------------

// normalizeWhitespace は文字列内の連続する空白を単一スペースに正規化する
//
// 使用例:
//
//	normalizeWhitespace("  hello   world  ")  // "hello world"
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// maskSecret は秘密値を表示用にマスクする
//
// 空文字列は "(unset)"、4文字以下は "****"、それ以外は末尾4文字のみ表示
func maskSecret(s string) string {
	switch {
	case s == "":
		return "(unset)"
	case len(s) <= 4:
		return "****"
	default:
		return "****" + s[len(s)-4:]
	}
}
