// =============================================================================
// job.go - ジョブ全体の制御フロー
// =============================================================================
//
// 【処理フロー】
//
//   ┌─────────────┐    ┌─────────────┐    ┌─────────────┐
//   │ 1. 読み込み │ -> │  2. 取得    │ -> │ 3. マージ   │
//   │ 履歴テーブル│    │ Guardian API│    │ 保存        │
//   └─────────────┘    └─────────────┘    └─────────────┘
//                                                │
//                         更新あり ──────────────┤
//                                                v
//   ┌─────────────┐    ┌─────────────┐    ┌─────────────┐
//   │ 6. 完了     │ <- │ 5. メール   │ <- │ 4. チャート │
//   │             │    │ (+ Notion)  │    │ 描画        │
//   └─────────────┘    └─────────────┘    └─────────────┘
//
//	更新なし（取得期間が空 or 記事0件）の場合は 3 以降を行わず "no update" で終了。
//	テーブル・チャートには一切触れない。
//
// =============================================================================
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// ErrNoChart はチャートファイルが存在しない場合のエラー（notify コマンド用）
var ErrNoChart = errors.New("chart file not found; run the job or render first")

// UpdateResult は差分更新の結果
type UpdateResult struct {
	Updated  bool       // テーブルを書き換えたかどうか
	LastDate Day        // 実行前のテーブル最終日（空なら起点日）
	Window   Window     // 取得期間
	Fetched  int        // 取得した記事数
	NewRows  []CountRow // 今回集計した行
	Table    []CountRow // マージ後（更新なしの場合は既存）のテーブル
}

// RunReport はジョブ1回分の結果
type RunReport struct {
	Update     UpdateResult
	ChartPath  string            // 描画した場合のみ
	Published  int               // Notionに作成したページ数
	Deliveries []RecipientResult // メール送信結果
}

// Sent は1通以上送信に成功したかどうかを返す
func (r RunReport) Sent() bool {
	for _, d := range r.Deliveries {
		if d.Err == nil {
			return true
		}
	}
	return false
}

// RunOptions は Run の動作オプション
type RunOptions struct {
	SkipEmail bool
}

// Job は履歴テーブルの更新・描画・通知を行う
type Job struct {
	cfg       *Config
	fetcher   ArticleFetcher
	store     TableStore
	notifier  Notifier
	publisher Publisher
	now       func() time.Time
}

// JobOption は Job の任意設定
type JobOption func(*Job)

// WithNotifier はメール送信者を設定する
func WithNotifier(n Notifier) JobOption {
	return func(j *Job) { j.notifier = n }
}

// WithPublisher はNotionなどの記録先を設定する
func WithPublisher(p Publisher) JobOption {
	return func(j *Job) { j.publisher = p }
}

// WithClock は「今日」を決める時計を設定する
func WithClock(now func() time.Time) JobOption {
	return func(j *Job) { j.now = now }
}

// NewJob は新しいJobを作成する
func NewJob(cfg *Config, fetcher ArticleFetcher, store TableStore, opts ...JobOption) *Job {
	j := &Job{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// NewJobFromConfig は設定から実際のコンポーネントを組み立ててJobを作成する
//
// withEmail が false、または email.enabled が false の場合は送信者を作らない。
func NewJobFromConfig(ctx context.Context, cfg *Config, withEmail bool) (*Job, error) {
	store, err := NewTableStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create table store: %w", err)
	}

	opts := []JobOption{}
	if withEmail && cfg.Email.Enabled {
		sender, err := NewEmailSender(cfg.Email)
		if err != nil {
			return nil, fmt.Errorf("create email sender: %w", err)
		}
		opts = append(opts, WithNotifier(sender))
	}
	if cfg.Notion.Enabled() {
		publisher, err := NewNotionPublisher(cfg.Notion)
		if err != nil {
			return nil, fmt.Errorf("create Notion publisher: %w", err)
		}
		opts = append(opts, WithPublisher(publisher))
	}

	return NewJob(cfg, NewGuardianClient(cfg.Guardian), store, opts...), nil
}

// =============================================================================
// 差分更新
// =============================================================================

// Update は履歴テーブルを読み込み、新しい記事を取得してマージ・保存する
func (j *Job) Update(ctx context.Context) (UpdateResult, error) {
	existing, err := j.store.Load(ctx)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("load table: %w", err)
	}

	last := LastDate(existing, j.cfg.EpochDay())
	if len(existing) == 0 {
		infof("Created fresh table (%s); starting after %s", j.store.Location(), last)
	} else {
		infof("Got existing table %s with %d rows, last date %s", j.store.Location(), len(existing), last)
	}

	window := FetchWindow(last, j.now())
	res := UpdateResult{LastDate: last, Window: window, Table: existing}

	if window.Empty() {
		infof("Table is already current (last date %s, today %s)", last, window.To)
		infof("No new articles to update.")
		return res, nil
	}

	articles, err := j.fetcher.FetchArticles(ctx, j.cfg.Guardian.Query, window)
	if err != nil {
		return res, fmt.Errorf("fetch articles: %w", err)
	}
	res.Fetched = len(articles)
	if len(articles) == 0 {
		infof("No new articles to update.")
		return res, nil
	}

	newRows, err := AggregateDaily(articles)
	if err != nil {
		return res, fmt.Errorf("aggregate articles: %w", err)
	}
	if outside := countOutside(newRows, window); outside > 0 {
		warnf("%d of %d aggregated rows fall outside %s; merging them anyway", outside, len(newRows), window)
	}
	merged := MergeRows(existing, newRows)

	if err := j.store.Save(ctx, merged); err != nil {
		return res, fmt.Errorf("save table: %w", err)
	}
	infof("Saved %d rows (%d new) to %s", len(merged), len(newRows), j.store.Location())

	res.Updated = true
	res.NewRows = newRows
	res.Table = merged
	return res, nil
}

// countOutside は期間外の日付を持つ行の数を返す
//
// APIは from-date / to-date で絞り込むが、公開日時の日付部分は
// タイムゾーン次第で期間の端から1日ずれることがある。
func countOutside(rows []CountRow, window Window) int {
	n := 0
	for _, r := range rows {
		if !window.Contains(r.Date) {
			n++
		}
	}
	return n
}

// =============================================================================
// ジョブ実行
// =============================================================================

// Run はロックを取得し、更新 → 描画 → 記録 → 送信 を行う
//
// 更新がなければ描画・送信は行わない（エラーではない）。
// メール送信に失敗した受信者がいれば *DeliveryError を返す。
func (j *Job) Run(ctx context.Context, opts RunOptions) (RunReport, error) {
	var report RunReport

	lock := NewRunLock(j.cfg.Paths.Lock)
	if err := lock.Acquire(); err != nil {
		return report, err
	}
	defer lock.Release()

	upd, err := j.Update(ctx)
	report.Update = upd
	if err != nil {
		return report, err
	}
	if !upd.Updated {
		infof("no update; email not sent")
		return report, nil
	}

	if err := RenderTrendChart(upd.Table, j.cfg.Paths.Chart); err != nil {
		return report, err
	}
	report.ChartPath = j.cfg.Paths.Chart

	if j.publisher != nil {
		n, err := j.publisher.PublishDailyTotals(ctx, j.cfg.Guardian.Query, upd.NewRows)
		report.Published = n
		if err != nil {
			warnf("Notion publish incomplete (%d pages created): %v", n, err)
		} else {
			infof("Published %d daily totals to Notion", n)
		}
	}

	if opts.SkipEmail || j.notifier == nil {
		infof("email not sent (disabled)")
		return report, nil
	}

	report.Deliveries = j.notifier.SendChart(ctx, report.ChartPath)
	if err := DeliveryErr(report.Deliveries); err != nil {
		return report, err
	}
	infof("email sent to %d recipient(s)", len(report.Deliveries))
	return report, nil
}

// Render は保存済みテーブルからチャートだけを描画し直す
func (j *Job) Render(ctx context.Context) (string, error) {
	rows, err := j.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load table: %w", err)
	}
	if err := RenderTrendChart(rows, j.cfg.Paths.Chart); err != nil {
		return "", err
	}
	return j.cfg.Paths.Chart, nil
}

// Notify は既存のチャートを送信する
func (j *Job) Notify(ctx context.Context) ([]RecipientResult, error) {
	if j.notifier == nil {
		return nil, errors.New("email is disabled")
	}
	if _, err := os.Stat(j.cfg.Paths.Chart); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoChart
		}
		return nil, fmt.Errorf("stat chart: %w", err)
	}
	results := j.notifier.SendChart(ctx, j.cfg.Paths.Chart)
	return results, DeliveryErr(results)
}

// Table は保存済みテーブルを返す
func (j *Job) Table(ctx context.Context) ([]CountRow, error) {
	rows, err := j.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load table: %w", err)
	}
	return rows, nil
}

// Location は履歴テーブルの保存先を返す
func (j *Job) Location() string {
	return j.store.Location()
}
