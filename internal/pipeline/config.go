// =============================================================================
// config.go - ジョブ設定
// =============================================================================
//
// このファイルは設定の読み込みと検証を行います。
//
// 【設定の優先順位】（後のものが優先）
//   1. DefaultConfig() の既定値
//   2. TOML設定ファイル（--config または ./guardian-trend.toml）
//   3. 環境変数（.env ファイルの内容を含む）
//
// 【設定グループ】
//   - GuardianConfig: 検索API設定
//   - PathsConfig:    テーブル・チャート・ロックファイルのパス
//   - HistoryConfig:  初回実行時の起点日
//   - StorageConfig:  S3保存設定（空ならローカルファイル）
//   - EmailConfig:    SMTP送信設定
//   - NotionConfig:   Notion連携設定（任意）
//
// 【秘密値について】
//
//	GUARDIAN_API_KEY / EMAIL_PASSWORD / NOTION_TOKEN は環境変数からのみ読み込む。
//	TOML設定ファイルには書けない（toml:"-"）。
//
// =============================================================================
package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// DefaultConfigFile はカレントディレクトリで探す設定ファイル名
const DefaultConfigFile = "guardian-trend.toml"

// =============================================================================
// 設定構造体
// =============================================================================

// Config はジョブの全設定を保持する
type Config struct {
	Guardian GuardianConfig `toml:"guardian"`
	Paths    PathsConfig    `toml:"paths"`
	History  HistoryConfig  `toml:"history"`
	Storage  StorageConfig  `toml:"storage"`
	Email    EmailConfig    `toml:"email"`
	Notion   NotionConfig   `toml:"notion"`
}

// GuardianConfig はGuardian Content APIに関する設定
type GuardianConfig struct {
	BaseURL        string `toml:"base_url" split_words:"true"`
	APIKey         string `toml:"-" split_words:"true"`
	Query          string `toml:"query" split_words:"true"`
	PageSize       int    `toml:"page_size" split_words:"true"` // 最大200（API上限）
	TimeoutSeconds int    `toml:"timeout_seconds" split_words:"true"`
	UserAgent      string `toml:"user_agent" split_words:"true"`
}

// PathsConfig はローカルファイルのパス
type PathsConfig struct {
	Table string `toml:"table" split_words:"true"` // 履歴テーブル（CSV）
	Chart string `toml:"chart" split_words:"true"` // トレンドチャート（PNG）
	Lock  string `toml:"lock" split_words:"true"`  // 空の場合は "<table>.lock"
}

// HistoryConfig は履歴テーブルに関する設定
type HistoryConfig struct {
	// Epoch はテーブルが空の場合の「最終取得日」。取得は翌日から始まる。
	Epoch string `toml:"epoch" split_words:"true"`
}

// StorageConfig はS3保存に関する設定
//
// Bucket が空の場合はローカルファイル（Paths.Table）を使用する。
type StorageConfig struct {
	Bucket       string `toml:"bucket" split_words:"true"`
	Key          string `toml:"key" split_words:"true"`
	Region       string `toml:"region" split_words:"true"`
	UsePathStyle bool   `toml:"use_path_style" split_words:"true"`
}

// EmailConfig はメール送信の設定を保持する
type EmailConfig struct {
	Enabled  bool     `toml:"enabled" split_words:"true"`
	From     string   `toml:"from" split_words:"true"` // 送信元メールアドレス
	Password string   `toml:"-" split_words:"true"`    // SMTP認証パスワード
	To       []string `toml:"to" split_words:"true"`   // 送信先（環境変数ではカンマ区切り）
	SMTPHost string   `toml:"smtp_host" split_words:"true"`
	SMTPPort string   `toml:"smtp_port" split_words:"true"`
	Subject  string   `toml:"subject" split_words:"true"`
	Body     string   `toml:"body" split_words:"true"`
}

// NotionConfig はNotion連携の設定
//
// Token と DatabaseID の両方が設定されている場合のみ有効。
type NotionConfig struct {
	Token      string `toml:"-" split_words:"true"`
	DatabaseID string `toml:"database_id" split_words:"true"`
}

// Enabled はNotion連携が有効かどうかを返す
func (c NotionConfig) Enabled() bool {
	return c.Token != "" && c.DatabaseID != ""
}

// =============================================================================
// 既定値
// =============================================================================

// DefaultConfig は既定値で埋めた設定を返す
func DefaultConfig() *Config {
	return &Config{
		Guardian: GuardianConfig{
			BaseURL:        "https://content.guardianapis.com",
			Query:          "Justin Trudeau",
			PageSize:       200,
			TimeoutSeconds: 30,
			UserAgent:      "guardian-trend/1.0 (+https://example.invalid)",
		},
		Paths: PathsConfig{
			Table: "articles.csv",
			Chart: "articles_trend.png",
		},
		History: HistoryConfig{
			Epoch: "2018-01-01",
		},
		Storage: StorageConfig{
			Key: "articles.csv",
		},
		Email: EmailConfig{
			Enabled:  true,
			SMTPHost: "smtp-mail.outlook.com",
			SMTPPort: "587", // STARTTLS
			Subject:  "Daily Article Plot",
			Body:     "Please find attached the daily plot of articles from The Guardian.",
		},
	}
}

// =============================================================================
// 読み込み
// =============================================================================

// LoadConfig は設定ファイルと環境変数から設定を読み込む
//
// path が空の場合はカレントディレクトリの guardian-trend.toml を探し、
// 存在しなければ既定値と環境変数のみを使用する。
// 明示的に指定された path が存在しない場合はエラー。
//
// 返り値の2番目は実際に読み込んだ設定ファイルのパス（なければ空）。
func LoadConfig(path string) (*Config, string, error) {
	cfg := DefaultConfig()

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}

	if resolved != "" {
		f, err := os.Open(resolved)
		if err != nil {
			return nil, "", fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(cfg); err != nil {
			return nil, "", fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, "", fmt.Errorf("read environment: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("stat config: %w", err)
		}
		return path, nil
	}

	if info, err := os.Stat(DefaultConfigFile); err == nil && !info.IsDir() {
		return DefaultConfigFile, nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("stat config: %w", err)
	}
	return "", nil
}

// normalize は空白の除去と派生値の補完を行う
func (c *Config) normalize() {
	c.Guardian.BaseURL = strings.TrimRight(strings.TrimSpace(c.Guardian.BaseURL), "/")
	c.Guardian.Query = normalizeWhitespace(c.Guardian.Query)
	c.Guardian.APIKey = strings.TrimSpace(c.Guardian.APIKey)

	c.Paths.Table = strings.TrimSpace(c.Paths.Table)
	c.Paths.Chart = strings.TrimSpace(c.Paths.Chart)
	if strings.TrimSpace(c.Paths.Lock) == "" {
		c.Paths.Lock = c.Paths.Table + ".lock"
	}

	to := make([]string, 0, len(c.Email.To))
	for _, addr := range c.Email.To {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			to = append(to, addr)
		}
	}
	c.Email.To = to
	c.Email.From = strings.TrimSpace(c.Email.From)
}

// =============================================================================
// 検証
// =============================================================================

// Validate は全コマンド共通の設定を検証する
//
// APIキーやSMTPパスワードなど、実行時にのみ必要な値は ValidateRun で検証する。
func (c *Config) Validate() error {
	if c.Guardian.BaseURL == "" {
		return errors.New("guardian.base_url is required")
	}
	if c.Guardian.Query == "" {
		return errors.New("guardian.query is required")
	}
	if c.Guardian.PageSize < 1 || c.Guardian.PageSize > 200 {
		return fmt.Errorf("guardian.page_size must be between 1 and 200, got %d", c.Guardian.PageSize)
	}
	if c.Guardian.TimeoutSeconds <= 0 {
		return fmt.Errorf("guardian.timeout_seconds must be positive, got %d", c.Guardian.TimeoutSeconds)
	}
	if c.Paths.Table == "" && c.Storage.Bucket == "" {
		return errors.New("paths.table is required when storage.bucket is empty")
	}
	if c.Paths.Chart == "" {
		return errors.New("paths.chart is required")
	}
	if _, err := ParseDay(c.History.Epoch); err != nil {
		return fmt.Errorf("history.epoch: %w", err)
	}
	if c.Storage.Bucket != "" && c.Storage.Key == "" {
		return errors.New("storage.key is required when storage.bucket is set")
	}
	if c.Email.Enabled {
		if c.Email.SMTPHost == "" || c.Email.SMTPPort == "" {
			return errors.New("email.smtp_host and email.smtp_port are required")
		}
	}
	return nil
}

// ValidateRun はジョブ実行（API取得・メール送信）に必要な値を検証する
func (c *Config) ValidateRun() error {
	if c.Guardian.APIKey == "" {
		return errors.New("GUARDIAN_API_KEY is required")
	}
	if c.Email.Enabled {
		return c.ValidateEmail()
	}
	return nil
}

// ValidateEmail はメール送信に必要な値を検証する
func (c *Config) ValidateEmail() error {
	if c.Email.From == "" {
		return errors.New("EMAIL_FROM is required")
	}
	if c.Email.Password == "" {
		return errors.New("EMAIL_PASSWORD is required")
	}
	if len(c.Email.To) == 0 {
		return errors.New("EMAIL_TO is required")
	}
	return nil
}

// EpochDay は History.Epoch をDayとして返す（Validate済みが前提）
func (c *Config) EpochDay() Day {
	d, err := ParseDay(c.History.Epoch)
	if err != nil {
		return NewDay(2018, 1, 1)
	}
	return d
}

// Summary は秘密値をマスクした設定の一覧を返す（config コマンド用）
func (c *Config) Summary() [][2]string {
	store := "file:" + c.Paths.Table
	if c.Storage.Bucket != "" {
		store = fmt.Sprintf("s3://%s/%s", c.Storage.Bucket, c.Storage.Key)
	}
	return [][2]string{
		{"guardian.base_url", c.Guardian.BaseURL},
		{"guardian.api_key", maskSecret(c.Guardian.APIKey)},
		{"guardian.query", c.Guardian.Query},
		{"guardian.page_size", fmt.Sprint(c.Guardian.PageSize)},
		{"table", store},
		{"paths.chart", c.Paths.Chart},
		{"paths.lock", c.Paths.Lock},
		{"history.epoch", c.History.Epoch},
		{"email.enabled", fmt.Sprint(c.Email.Enabled)},
		{"email.from", c.Email.From},
		{"email.password", maskSecret(c.Email.Password)},
		{"email.to", strings.Join(c.Email.To, ", ")},
		{"email.smtp", c.Email.SMTPHost + ":" + c.Email.SMTPPort},
		{"notion.token", maskSecret(c.Notion.Token)},
		{"notion.database_id", c.Notion.DatabaseID},
	}
}
