// =============================================================================
// store_s3.go - S3上の履歴テーブル
// =============================================================================
//
// Lambdaでは /tmp 以外に書き込めず、実行ごとに消えるため、
// 履歴テーブルをS3オブジェクトとして保存する。
//
// 【認証情報】
//
//	AWS SDK の標準チェーン（環境変数、共有設定、Lambda実行ロール）を使用する。
//
// =============================================================================
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Store はS3オブジェクトに保存する
type S3Store struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Store は既定の認証チェーンでS3Storeを作成する
func NewS3Store(ctx context.Context, cfg StorageConfig) (*S3Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Store{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

// Load はS3オブジェクトを読み込む（オブジェクトがなければ空テーブル）
func (s *S3Store) Load(ctx context.Context) ([]CountRow, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", s.Location(), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Location(), err)
	}
	rows, err := ReadTable(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", s.Location(), err)
	}
	return rows, nil
}

// Save はS3オブジェクトを上書きする
func (s *S3Store) Save(ctx context.Context, rows []CountRow) error {
	data, err := encodeTable(rows)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", s.Location(), err)
	}
	return nil
}

// Location は "s3://bucket/key" を返す
func (s *S3Store) Location() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key)
}

// isS3NotFound はオブジェクトが存在しないことを示すエラーかどうかを判定する
func isS3NotFound(err error) bool {
	var noKey *s3types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
