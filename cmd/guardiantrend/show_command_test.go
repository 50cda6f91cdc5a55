package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gotest.tools/assert"

	"guardian-trend/internal/pipeline"
)

func sampleRows() []pipeline.CountRow {
	d := func(day int) pipeline.Day { return pipeline.NewDay(2024, time.January, day) }
	return []pipeline.CountRow{
		{Date: d(3), Count: 1, Section: "World"},
		{Date: d(4), Count: 2, Section: "Politics"},
		{Date: d(4), Count: 5, Section: "World"},
		{Date: d(5), Count: 3, Section: "World"},
	}
}

func TestTailDays(t *testing.T) {
	all := sampleRows()
	assert.Equal(t, 4, len(tailDays(all, 0)))
	assert.Equal(t, 4, len(tailDays(all, 10)))

	last := tailDays(all, 1)
	assert.Equal(t, 1, len(last))
	assert.Equal(t, "2024-01-05", last[0].Date.String())

	lastTwo := tailDays(all, 2)
	assert.Equal(t, 3, len(lastTwo))
	assert.Equal(t, "2024-01-04", lastTwo[0].Date.String())
}

func TestRenderTotals(t *testing.T) {
	out := renderTotals(pipeline.DailyTotals(sampleRows()))
	assert.Assert(t, strings.Contains(out, "2024-01-04"))
	assert.Assert(t, strings.Contains(out, "7"))
	assert.Assert(t, strings.Contains(out, "Articles"), out)
	assert.Assert(t, !strings.Contains(out, "ARTICLES"), out)
}

func TestRenderTableKeepsHeaderCase(t *testing.T) {
	out := renderTable([]string{"Date", "Section", "Articles"}, [][]string{{"2024-01-05", "World"}}, 2)
	assert.Assert(t, strings.Contains(out, "Date"), out)
	assert.Assert(t, strings.Contains(out, "Section"), out)
	assert.Assert(t, !strings.Contains(out, "SECTION"), out)
	assert.Assert(t, strings.Contains(out, "World"), out)
}

func TestRenderTableEmptyHeaders(t *testing.T) {
	assert.Equal(t, "", renderTable(nil, nil))
}

func TestShowCommand(t *testing.T) {
	dir := t.TempDir()
	table := filepath.Join(dir, "articles.csv")
	assert.NilError(t, os.WriteFile(table, []byte("Date,Number of Articles,SectionName\n2024-01-04,2,Politics\n2024-01-05,3,World\n"), 0o644))
	config := filepath.Join(dir, "guardian-trend.toml")
	assert.NilError(t, os.WriteFile(config, []byte("[paths]\ntable = \""+filepath.ToSlash(table)+"\"\n"), 0o644))

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--config", config, "show", "--days", "1"})

	assert.NilError(t, cmd.Execute())
	assert.Assert(t, strings.Contains(out.String(), "2024-01-05"), out.String())
	assert.Assert(t, !strings.Contains(out.String(), "2024-01-04"), out.String())
}

func TestConfigCommandMasksSecrets(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GUARDIAN_API_KEY", "very-secret-key")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config"})

	assert.NilError(t, cmd.Execute())
	assert.Assert(t, strings.Contains(out.String(), "****-key"), out.String())
	assert.Assert(t, !strings.Contains(out.String(), "very-secret-key"))
	assert.Assert(t, strings.Contains(out.String(), "defaults and environment only"))
}
