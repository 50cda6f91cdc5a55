package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gotest.tools/assert"
)

type fakeFetcher struct {
	articles []Article
	err      error
	calls    int
	window   Window
	query    string
}

func (f *fakeFetcher) FetchArticles(_ context.Context, query string, window Window) ([]Article, error) {
	f.calls++
	f.query = query
	f.window = window
	return f.articles, f.err
}

type fakeNotifier struct {
	paths []string
	fail  map[string]error
	to    []string
}

func (n *fakeNotifier) SendChart(_ context.Context, path string) []RecipientResult {
	n.paths = append(n.paths, path)
	var results []RecipientResult
	for _, to := range n.to {
		results = append(results, RecipientResult{Recipient: to, Err: n.fail[to]})
	}
	return results
}

type fakePublisher struct {
	rows []CountRow
	err  error
}

func (p *fakePublisher) PublishDailyTotals(_ context.Context, _ string, rows []CountRow) (int, error) {
	p.rows = append(p.rows, rows...)
	if p.err != nil {
		return 0, p.err
	}
	return len(DailyTotals(rows)), nil
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Paths.Table = filepath.Join(dir, "articles.csv")
	cfg.Paths.Chart = filepath.Join(dir, "out", "articles_trend.png")
	cfg.Paths.Lock = filepath.Join(dir, "articles.csv.lock")
	return cfg
}

func fixedClock(year int, month time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(year, month, d, 12, 0, 0, 0, time.Local) }
}

func TestUpdateFreshTableStartsAfterEpoch(t *testing.T) {
	cfg := testConfig(t)
	fetcher := &fakeFetcher{articles: []Article{article("a", "2024-01-05T10:00:00Z", "World")}}
	store := NewFileStore(cfg.Paths.Table)
	job := NewJob(cfg, fetcher, store, WithClock(fixedClock(2024, 1, 9)))

	res, err := job.Update(context.Background())
	assert.NilError(t, err)
	assert.Assert(t, res.Updated)
	assert.Equal(t, "2018-01-02..2024-01-09", fetcher.window.String())
	assert.Equal(t, "Justin Trudeau", fetcher.query)
	assert.Equal(t, 1, res.Fetched)

	rows, err := store.Load(context.Background())
	assert.NilError(t, err)
	assert.DeepEqual(t, []CountRow{row(t, "2024-01-05", 1, "World")}, rows)
}

func TestUpdateZeroArticlesLeavesTableUntouched(t *testing.T) {
	cfg := testConfig(t)
	original := "Date,Number of Articles,SectionName\n2024-01-05,2,World\n"
	assert.NilError(t, os.WriteFile(cfg.Paths.Table, []byte(original), 0o644))
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.NilError(t, os.Chtimes(cfg.Paths.Table, past, past))

	fetcher := &fakeFetcher{}
	job := NewJob(cfg, fetcher, NewFileStore(cfg.Paths.Table), WithClock(fixedClock(2024, 1, 9)))

	res, err := job.Update(context.Background())
	assert.NilError(t, err)
	assert.Assert(t, !res.Updated)
	assert.Equal(t, "2024-01-06..2024-01-09", fetcher.window.String())

	data, err := os.ReadFile(cfg.Paths.Table)
	assert.NilError(t, err)
	assert.Equal(t, original, string(data))
	info, err := os.Stat(cfg.Paths.Table)
	assert.NilError(t, err)
	assert.Assert(t, info.ModTime().Equal(past))
}

func TestUpdateCurrentTableSkipsFetch(t *testing.T) {
	cfg := testConfig(t)
	store := NewFileStore(cfg.Paths.Table)
	assert.NilError(t, store.Save(context.Background(), []CountRow{row(t, "2024-01-09", 1, "World")}))

	fetcher := &fakeFetcher{}
	job := NewJob(cfg, fetcher, store, WithClock(fixedClock(2024, 1, 9)))

	res, err := job.Update(context.Background())
	assert.NilError(t, err)
	assert.Assert(t, !res.Updated)
	assert.Assert(t, res.Window.Empty())
	assert.Equal(t, 0, fetcher.calls)
}

func TestUpdateReplacesRefetchedCounts(t *testing.T) {
	cfg := testConfig(t)
	store := NewFileStore(cfg.Paths.Table)
	ctx := context.Background()
	assert.NilError(t, store.Save(ctx, []CountRow{
		row(t, "2024-01-04", 2, "World"),
		row(t, "2024-01-05", 2, "World"),
	}))
	// 取得期間外の日付が返ってきても、同じキーなら置き換える
	fetcher := &fakeFetcher{articles: []Article{
		article("1", "2024-01-05T01:00:00Z", "World"),
		article("2", "2024-01-05T02:00:00Z", "World"),
		article("3", "2024-01-05T03:00:00Z", "World"),
		article("4", "2024-01-06T03:00:00Z", "Politics"),
	}}
	job := NewJob(cfg, fetcher, store, WithClock(fixedClock(2024, 1, 9)))

	res, err := job.Update(ctx)
	assert.NilError(t, err)
	assert.Assert(t, res.Updated)
	assert.DeepEqual(t, []CountRow{
		row(t, "2024-01-04", 2, "World"),
		row(t, "2024-01-05", 3, "World"),
		row(t, "2024-01-06", 1, "Politics"),
	}, res.Table)

	rows, err := store.Load(ctx)
	assert.NilError(t, err)
	assert.DeepEqual(t, res.Table, rows)
}

func TestUpdateFetchErrorKeepsTable(t *testing.T) {
	cfg := testConfig(t)
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	job := NewJob(cfg, fetcher, NewFileStore(cfg.Paths.Table), WithClock(fixedClock(2024, 1, 9)))

	_, err := job.Update(context.Background())
	assert.ErrorContains(t, err, "connection refused")
	_, statErr := os.Stat(cfg.Paths.Table)
	assert.Assert(t, errors.Is(statErr, os.ErrNotExist))
}

func TestRunNoUpdateSendsNothing(t *testing.T) {
	cfg := testConfig(t)
	notifier := &fakeNotifier{to: []string{"a@example.com"}}
	publisher := &fakePublisher{}
	job := NewJob(cfg, &fakeFetcher{}, NewFileStore(cfg.Paths.Table),
		WithClock(fixedClock(2024, 1, 9)), WithNotifier(notifier), WithPublisher(publisher))

	report, err := job.Run(context.Background(), RunOptions{})
	assert.NilError(t, err)
	assert.Assert(t, !report.Update.Updated)
	assert.Equal(t, "", report.ChartPath)
	assert.Equal(t, 0, len(notifier.paths))
	assert.Equal(t, 0, len(publisher.rows))
	assert.Assert(t, !report.Sent())

	_, statErr := os.Stat(cfg.Paths.Chart)
	assert.Assert(t, errors.Is(statErr, os.ErrNotExist))
}

func TestRunUpdateRendersAndNotifies(t *testing.T) {
	cfg := testConfig(t)
	fetcher := &fakeFetcher{articles: []Article{
		article("1", "2024-01-05T10:00:00Z", "World"),
		article("2", "2024-01-05T11:00:00Z", "Politics"),
	}}
	notifier := &fakeNotifier{to: []string{"a@example.com", "b@example.com"}}
	publisher := &fakePublisher{}
	job := NewJob(cfg, fetcher, NewFileStore(cfg.Paths.Table),
		WithClock(fixedClock(2024, 1, 9)), WithNotifier(notifier), WithPublisher(publisher))

	report, err := job.Run(context.Background(), RunOptions{})
	assert.NilError(t, err)
	assert.Assert(t, report.Update.Updated)
	assert.Equal(t, cfg.Paths.Chart, report.ChartPath)
	assert.DeepEqual(t, []string{cfg.Paths.Chart}, notifier.paths)
	assert.Equal(t, 2, len(report.Deliveries))
	assert.Assert(t, report.Sent())
	assert.Equal(t, 1, report.Published)
	assert.Equal(t, 2, len(publisher.rows))

	info, err := os.Stat(cfg.Paths.Chart)
	assert.NilError(t, err)
	assert.Assert(t, info.Size() > 0)
}

func TestRunSkipEmail(t *testing.T) {
	cfg := testConfig(t)
	fetcher := &fakeFetcher{articles: []Article{article("1", "2024-01-05T10:00:00Z", "World")}}
	notifier := &fakeNotifier{to: []string{"a@example.com"}}
	job := NewJob(cfg, fetcher, NewFileStore(cfg.Paths.Table),
		WithClock(fixedClock(2024, 1, 9)), WithNotifier(notifier))

	report, err := job.Run(context.Background(), RunOptions{SkipEmail: true})
	assert.NilError(t, err)
	assert.Assert(t, report.Update.Updated)
	assert.Equal(t, 0, len(notifier.paths))
}

func TestRunPartialDeliveryFailure(t *testing.T) {
	cfg := testConfig(t)
	fetcher := &fakeFetcher{articles: []Article{article("1", "2024-01-05T10:00:00Z", "World")}}
	smtpErr := errors.New("550 mailbox unavailable")
	notifier := &fakeNotifier{
		to:   []string{"a@example.com", "b@example.com", "c@example.com"},
		fail: map[string]error{"b@example.com": smtpErr},
	}
	publisher := &fakePublisher{err: errors.New("notion down")}
	job := NewJob(cfg, fetcher, NewFileStore(cfg.Paths.Table),
		WithClock(fixedClock(2024, 1, 9)), WithNotifier(notifier), WithPublisher(publisher))

	report, err := job.Run(context.Background(), RunOptions{})

	var deliveryErr *DeliveryError
	assert.Assert(t, errors.As(err, &deliveryErr))
	assert.Equal(t, 1, len(deliveryErr.Failed))
	assert.Equal(t, 3, deliveryErr.Total)
	assert.Equal(t, "b@example.com", deliveryErr.Failed[0].Recipient)
	assert.Assert(t, errors.Is(err, smtpErr))
	assert.Assert(t, report.Sent())
	assert.Assert(t, report.Update.Updated)
}

func TestRunInProgress(t *testing.T) {
	cfg := testConfig(t)
	held := NewRunLock(cfg.Paths.Lock)
	assert.NilError(t, held.Acquire())
	defer held.Release()

	fetcher := &fakeFetcher{}
	job := NewJob(cfg, fetcher, NewFileStore(cfg.Paths.Table), WithClock(fixedClock(2024, 1, 9)))

	_, err := job.Run(context.Background(), RunOptions{})
	assert.Assert(t, errors.Is(err, ErrRunInProgress))
	assert.Equal(t, 0, fetcher.calls)
}

func TestRenderAndNotify(t *testing.T) {
	cfg := testConfig(t)
	store := NewFileStore(cfg.Paths.Table)
	notifier := &fakeNotifier{to: []string{"a@example.com"}}
	job := NewJob(cfg, &fakeFetcher{}, store, WithNotifier(notifier))
	ctx := context.Background()

	_, err := job.Notify(ctx)
	assert.Assert(t, errors.Is(err, ErrNoChart))

	_, err = job.Render(ctx)
	assert.Assert(t, errors.Is(err, ErrEmptyTable))

	assert.NilError(t, store.Save(ctx, []CountRow{row(t, "2023-06-01", 4, "World")}))
	path, err := job.Render(ctx)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Paths.Chart, path)

	results, err := job.Notify(ctx)
	assert.NilError(t, err)
	assert.Equal(t, 1, len(results))
	assert.DeepEqual(t, []string{cfg.Paths.Chart}, notifier.paths)
}

func TestUpdateWarnsAboutRowsOutsideWindow(t *testing.T) {
	var logs bytes.Buffer
	logOutput = &logs
	t.Cleanup(func() { logOutput = io.Discard })

	cfg := testConfig(t)
	store := NewFileStore(cfg.Paths.Table)
	assert.NilError(t, store.Save(context.Background(), []CountRow{row(t, "2024-01-05", 2, "World")}))
	fetcher := &fakeFetcher{articles: []Article{
		article("1", "2024-01-05T23:30:00Z", "World"),
		article("2", "2024-01-07T10:00:00Z", "World"),
	}}
	job := NewJob(cfg, fetcher, store, WithClock(fixedClock(2024, 1, 9)))

	res, err := job.Update(context.Background())
	assert.NilError(t, err)
	assert.Assert(t, res.Updated)
	assert.Assert(t, strings.Contains(logs.String(), "WARN: 1 of 2 aggregated rows fall outside 2024-01-06..2024-01-09"), logs.String())
}

func TestCountOutside(t *testing.T) {
	window := Window{From: day(t, "2024-01-06"), To: day(t, "2024-01-09")}
	rows := []CountRow{
		row(t, "2024-01-05", 1, "World"),
		row(t, "2024-01-06", 1, "World"),
		row(t, "2024-01-09", 1, "World"),
		row(t, "2024-01-10", 1, "World"),
	}
	assert.Equal(t, 2, countOutside(rows, window))
	assert.Equal(t, 0, countOutside(rows[1:3], window))
}

func TestUpdateRateLimitedIsAnError(t *testing.T) {
	cfg := testConfig(t)
	original := "Date,Number of Articles,SectionName\n2024-01-05,2,World\n"
	assert.NilError(t, os.WriteFile(cfg.Paths.Table, []byte(original), 0o644))

	client := newTestGuardianClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	})
	job := NewJob(cfg, client, NewFileStore(cfg.Paths.Table), WithClock(fixedClock(2024, 1, 9)))

	res, err := job.Update(context.Background())
	assert.ErrorContains(t, err, "API rate limit exceeded")
	assert.Assert(t, !res.Updated)

	data, readErr := os.ReadFile(cfg.Paths.Table)
	assert.NilError(t, readErr)
	assert.Equal(t, original, string(data))
}
