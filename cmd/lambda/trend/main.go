// =============================================================================
// Lambda: guardian-trend
// =============================================================================
//
// 1日1回（EventBridgeスケジュール）起動し、履歴テーブルを更新して
// トレンドチャートをメール送信するLambda関数
//
// 環境変数:
//   - GUARDIAN_API_KEY:   Guardian Content API キー (必須)
//   - STORAGE_BUCKET:     履歴テーブルを保存するS3バケット (必須、/tmp は実行ごとに消えるため)
//   - STORAGE_KEY:        S3オブジェクトキー (デフォルト: articles.csv)
//   - EMAIL_FROM:         送信元 (必須)
//   - EMAIL_PASSWORD:     SMTPパスワード (必須)
//   - EMAIL_TO:           送信先（カンマ区切り）(必須)
//   - NOTION_TOKEN:       Notion記録用 (任意)
//   - NOTION_DATABASE_ID: Notion記録用 (任意)
//   - CONFIG_PATH:        TOML設定ファイル (任意)
//
// =============================================================================
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/aws/aws-lambda-go/lambda"

	"guardian-trend/internal/pipeline"
)

// Response はLambdaレスポンス
type Response struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Fetched    int    `json:"fetched"`
	NewRows    int    `json:"newRows"`
	Updated    bool   `json:"updated"`
	Sent       bool   `json:"sent"`
}

// Handler はLambdaのメインハンドラー
func Handler(ctx context.Context, event interface{}) (Response, error) {
	log.Println("Starting guardian-trend Lambda...")

	// 1. 設定を読み込む
	cfg, _, err := pipeline.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return Response{StatusCode: 400, Message: err.Error()}, err
	}
	if err := cfg.ValidateRun(); err != nil {
		return Response{StatusCode: 400, Message: err.Error()}, err
	}
	if cfg.Storage.Bucket == "" {
		err := errors.New("STORAGE_BUCKET is required on Lambda")
		return Response{StatusCode: 400, Message: err.Error()}, err
	}
	useTempDir(cfg)

	log.Printf("Config: query=%q, table=s3://%s/%s, chart=%s",
		cfg.Guardian.Query, cfg.Storage.Bucket, cfg.Storage.Key, cfg.Paths.Chart)

	// 2. ジョブを実行
	job, err := pipeline.NewJobFromConfig(ctx, cfg, true)
	if err != nil {
		log.Printf("Error creating job: %v", err)
		return Response{StatusCode: 500, Message: err.Error()}, err
	}

	report, err := job.Run(ctx, pipeline.RunOptions{})
	resp := Response{
		StatusCode: 200,
		Fetched:    report.Update.Fetched,
		NewRows:    len(report.Update.NewRows),
		Updated:    report.Update.Updated,
		Sent:       report.Sent(),
	}

	// 3. 結果
	var deliveryErr *pipeline.DeliveryError
	switch {
	case errors.As(err, &deliveryErr) && resp.Sent:
		// 一部の受信者にだけ届いた場合はテーブル更新済みなので再実行させない
		log.Printf("WARNING: %v", err)
		resp.Message = err.Error()
		return resp, nil
	case err != nil:
		log.Printf("Error running job: %v", err)
		resp.StatusCode = 500
		resp.Message = err.Error()
		return resp, err
	case !report.Update.Updated:
		resp.Message = "No new articles to update"
	default:
		resp.Message = fmt.Sprintf("Updated table with %d rows from %d articles", resp.NewRows, resp.Fetched)
	}

	log.Printf("Completed: %s", resp.Message)
	return resp, nil
}

// useTempDir は相対パスのチャート・ロックファイルを /tmp 配下に移す
//
// Lambdaで書き込めるのは /tmp のみ。
func useTempDir(cfg *pipeline.Config) {
	tmp := os.TempDir()
	if !filepath.IsAbs(cfg.Paths.Chart) {
		cfg.Paths.Chart = filepath.Join(tmp, cfg.Paths.Chart)
	}
	if !filepath.IsAbs(cfg.Paths.Lock) {
		cfg.Paths.Lock = filepath.Join(tmp, filepath.Base(cfg.Paths.Lock))
	}
}

func main() {
	lambda.Start(Handler)
}
