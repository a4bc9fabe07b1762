package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xharvest/internal/types"
)

func records() []types.Record {
	return []types.Record{
		{Key: "jack", Fields: map[string]string{"name": "jack", "identifier": "@jack", "description": "<b>bio</b>", "link": "https://twitter.com/jack"}},
		{Key: "ada", Fields: map[string]string{"name": "Ada", "identifier": "@ada", "link": "javascript:alert(1)"}},
	}
}

func TestBuild(t *testing.T) {
	b, err := New(0)
	require.NoError(t, err)

	sum := Summary{RunID: "run-1", Outcome: "converged", Attempts: 14, Finished: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)}
	r, err := b.Build(types.SchemaFor(types.ListFollowers), records(), sum)
	require.NoError(t, err)

	assert.Equal(t, "X Followers export", r.Title)
	assert.Equal(t, 2, r.Rows)
	assert.Contains(t, r.HTMLBody, `<a href="https://twitter.com/jack" class="link">`)
	assert.Contains(t, r.HTMLBody, "&lt;b&gt;bio&lt;/b&gt;")
	assert.NotContains(t, r.HTMLBody, `href="javascript`)
	assert.Contains(t, r.HTMLBody, "run run-1")

	assert.True(t, strings.HasPrefix(r.PlainBody, "X Followers export\nMonday, March 2 2026 09:30\n"))
	assert.Contains(t, r.PlainBody, "Outcome: converged after 14 scrolls")
	assert.Contains(t, r.PlainBody, "1. jack | @jack | <b>bio</b> | https://twitter.com/jack")
}

func TestBuildCapsRows(t *testing.T) {
	b, err := New(1)
	require.NoError(t, err)

	r, err := b.Build(types.SchemaFor(types.ListFollowers), records(), Summary{})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Rows)
	assert.Contains(t, r.HTMLBody, "Showing 1 of 2 records")
}

func TestBuildEmpty(t *testing.T) {
	b, err := New(0)
	require.NoError(t, err)
	_, err = b.Build(types.SchemaFor(types.ListBookmarks), nil, Summary{})
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	b, err := New(0)
	require.NoError(t, err)
	r, err := b.Build(types.SchemaFor(types.ListFollowers), records(), Summary{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "reports", "followers.html")
	require.NoError(t, r.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, r.HTMLBody, string(data))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ééé...", truncate("éééééééé", 6))
}
