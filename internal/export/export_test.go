package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xharvest/internal/types"
)

func followers() []types.Record {
	return []types.Record{
		{Key: "jack", Fields: map[string]string{
			"link":        "https://twitter.com/jack",
			"name":        "jack",
			"description": "just setting up my twttr",
			"identifier":  "@jack",
		}},
		{Key: "ada", Fields: map[string]string{
			"name":        `Ada "Countess" Lovelace`,
			"identifier":  "@ada",
			"description": "",
			"link":        "https://twitter.com/ada",
		}},
	}
}

func TestEncodeFollowers(t *testing.T) {
	data, err := Encode(types.SchemaFor(types.ListFollowers), followers(), 0)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "followers", data)
}

func TestEncodeKeepsExtraFieldsAfterSchema(t *testing.T) {
	records := []types.Record{{Key: "20", Fields: map[string]string{
		"lang":      "en",
		"id":        "20",
		"author":    "jack",
		"text":      "just setting up my twttr",
		"timestamp": "2006-03-21T20:50:14.000Z",
		"link":      "https://x.com/jack/status/20",
	}}}

	data, err := Encode(types.SchemaFor(types.ListBookmarks), records, 0)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "bookmarks", data)
}

func TestEncodeFallsBackToCompact(t *testing.T) {
	schema := types.SchemaFor(types.ListFollowers)
	pretty, err := Encode(schema, followers(), 0)
	require.NoError(t, err)

	compact, err := Encode(schema, followers(), len(pretty)-1)
	require.NoError(t, err)
	assert.Less(t, len(compact), len(pretty))
	assert.Equal(t,
		`[{"name":"jack","identifier":"@jack","description":"just setting up my twttr","link":"https://twitter.com/jack"},`+
			`{"name":"Ada \"Countess\" Lovelace","identifier":"@ada","description":"","link":"https://twitter.com/ada"}]`+"\n",
		string(compact))

	same, err := Encode(schema, followers(), len(pretty))
	require.NoError(t, err)
	assert.Equal(t, pretty, same)
}

func TestEncodeEmpty(t *testing.T) {
	data, err := Encode(types.SchemaFor(types.ListTimeline), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestDefaultFilename(t *testing.T) {
	assert.Equal(t, "twitter_followers.json", DefaultFilename(types.ListFollowers))
	assert.Equal(t, "twitter_following.json", DefaultFilename(types.ListFollowing))
	assert.Equal(t, "twitter_bookmarks.json", DefaultFilename(types.ListBookmarks))
	assert.Equal(t, "twitter_timeline.json", DefaultFilename(types.ListTimeline))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", DefaultFilename(types.ListFollowers))

	n, err := WriteFile(path, types.SchemaFor(types.ListFollowers), followers(), 0)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, n)

	_, err = WriteFile(path, types.SchemaFor(types.ListFollowers), nil, 0)
	assert.ErrorIs(t, err, ErrNoRecords)
}
