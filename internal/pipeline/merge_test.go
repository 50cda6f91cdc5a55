package pipeline

import (
	"testing"
	"time"

	"gotest.tools/assert"
)

func TestMergeRowsIntoEmptyTable(t *testing.T) {
	merged := MergeRows(nil, []CountRow{row(t, "2024-01-05", 1, "World")})
	assert.DeepEqual(t, []CountRow{row(t, "2024-01-05", 1, "World")}, merged)
}

func TestMergeRowsReplacesInsteadOfSumming(t *testing.T) {
	existing := []CountRow{
		row(t, "2024-01-04", 7, "Politics"),
		row(t, "2024-01-05", 2, "World"),
	}
	incoming := []CountRow{row(t, "2024-01-05", 3, "World")}

	merged := MergeRows(existing, incoming)
	assert.DeepEqual(t, []CountRow{
		row(t, "2024-01-04", 7, "Politics"),
		row(t, "2024-01-05", 3, "World"),
	}, merged)
}

func TestMergeRowsLaterDuplicateWinsWithinIncoming(t *testing.T) {
	incoming := []CountRow{
		row(t, "2024-01-05", 1, "World"),
		row(t, "2024-01-05", 9, "World"),
	}
	merged := MergeRows(nil, incoming)
	assert.DeepEqual(t, []CountRow{row(t, "2024-01-05", 9, "World")}, merged)
}

func TestMergeRowsSortsRegardlessOfInputOrder(t *testing.T) {
	existing := []CountRow{
		row(t, "2024-02-01", 1, "World"),
		row(t, "2023-12-31", 4, "Sport"),
	}
	incoming := []CountRow{
		row(t, "2024-01-15", 2, "World"),
		row(t, "2024-01-15", 5, "Business"),
	}
	merged := MergeRows(existing, incoming)

	want := []CountRow{
		row(t, "2023-12-31", 4, "Sport"),
		row(t, "2024-01-15", 5, "Business"),
		row(t, "2024-01-15", 2, "World"),
		row(t, "2024-02-01", 1, "World"),
	}
	assert.DeepEqual(t, want, merged)
	assert.DeepEqual(t, want, MergeRows(incoming, existing))
}

func TestMergeRowsDoesNotModifyInputs(t *testing.T) {
	existing := []CountRow{row(t, "2024-01-06", 1, "World"), row(t, "2024-01-05", 2, "World")}
	incoming := []CountRow{row(t, "2024-01-06", 4, "World")}

	MergeRows(existing, incoming)
	assert.Equal(t, 1, existing[0].Count)
	assert.Equal(t, "2024-01-06", existing[0].Date.String())
	assert.Equal(t, 4, incoming[0].Count)
}

func TestLastDate(t *testing.T) {
	floor := day(t, "2018-01-01")
	assert.Equal(t, "2018-01-01", LastDate(nil, floor).String())

	rows := []CountRow{
		row(t, "2024-01-05", 1, "World"),
		row(t, "2024-03-01", 1, "Politics"),
		row(t, "2024-02-10", 1, "World"),
	}
	assert.Equal(t, "2024-03-01", LastDate(rows, floor).String())
}

func TestFetchWindow(t *testing.T) {
	now := time.Date(2024, 1, 9, 12, 0, 0, 0, time.Local)

	w := FetchWindow(day(t, "2024-01-05"), now)
	assert.Equal(t, "2024-01-06..2024-01-09", w.String())
	assert.Assert(t, !w.Empty())
	assert.Assert(t, w.Contains(day(t, "2024-01-06")))
	assert.Assert(t, w.Contains(day(t, "2024-01-09")))
	assert.Assert(t, !w.Contains(day(t, "2024-01-05")))

	// 最終日が今日なら空
	assert.Assert(t, FetchWindow(day(t, "2024-01-09"), now).Empty())
	// 最終日が昨日なら今日1日だけ
	single := FetchWindow(day(t, "2024-01-08"), now)
	assert.Assert(t, !single.Empty())
	assert.Assert(t, single.From.Equal(single.To))
}

func TestDailyTotalsSumsSections(t *testing.T) {
	rows := []CountRow{
		row(t, "2024-01-06", 2, "World"),
		row(t, "2024-01-05", 1, "Politics"),
		row(t, "2024-01-05", 3, "World"),
	}
	totals := DailyTotals(rows)
	assert.DeepEqual(t, []DailyTotal{
		{Date: day(t, "2024-01-05"), Total: 4},
		{Date: day(t, "2024-01-06"), Total: 2},
	}, totals)
}

func TestSectionsByDate(t *testing.T) {
	rows := []CountRow{
		row(t, "2024-01-05", 3, "World"),
		row(t, "2024-01-05", 1, "Politics"),
		row(t, "2024-01-06", 2, "World"),
	}
	got := sectionsByDate(rows)
	assert.Equal(t, 2, len(got))
	assert.Equal(t, "Politics=1, World=3", sectionSummary(got["2024-01-05"]))
	assert.Equal(t, "World=2", sectionSummary(got["2024-01-06"]))
}
