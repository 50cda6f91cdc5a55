// =============================================================================
// main.go - guardiantrend CLI のエントリーポイント
// =============================================================================
//
// Guardian Content APIから指定クエリの記事を取得し、日付×セクションの件数を
// 履歴テーブルに追記、トレンドチャートを描画してメールで送信するバッチジョブ。
// 外部スケジューラ（cron など）から1日1回起動されることを想定している。
//
// 【コマンド一覧】
//   guardiantrend             ジョブを1回実行（run と同じ）
//   guardiantrend run         ジョブを1回実行（--no-email で送信しない）
//   guardiantrend render      保存済みテーブルからチャートだけ描画し直す
//   guardiantrend show        テーブルの末尾を表形式で表示
//   guardiantrend notify      既存のチャートを送信
//   guardiantrend config      有効な設定を表示（秘密値はマスク）
//
// 【設定】
//
//	既定値 → --config（TOML）→ 環境変数（.env を含む）の順に上書きする。
//	詳細は internal/pipeline/config.go。
//
// =============================================================================
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv" // .env ファイル読み込み
)

func main() {
	// .env ファイルから環境変数を読み込み（存在しなければ環境変数のみ使用）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "WARN: .env file not loaded: %v (using environment variables only)\n", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		}
		os.Exit(1)
	}
}
