package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaNormalizeFillsMissingFields(t *testing.T) {
	r := Record{Key: "u1", Fields: map[string]string{"name": "Ann", "extra": "x"}}

	got := UserSchema.Normalize(r)

	assert.Equal(t, "Ann", got.Fields["name"])
	assert.Equal(t, "x", got.Fields["extra"])
	for _, f := range UserSchema.Fields {
		_, ok := got.Fields[f]
		assert.True(t, ok, "field %s should be present", f)
	}
	// original untouched
	_, ok := r.Fields["link"]
	assert.False(t, ok)
}

func TestSchemaNormalizeNilFields(t *testing.T) {
	got := TweetSchema.Normalize(Record{Key: "1"})
	assert.Len(t, got.Fields, len(TweetSchema.Fields))
}

func TestSchemaAccepts(t *testing.T) {
	tests := []struct {
		name   string
		schema Schema
		rec    Record
		want   bool
	}{
		{"no key", UserSchema, Record{Fields: map[string]string{"name": "Ann"}}, false},
		{"no content", UserSchema, Record{Key: "ann", Fields: map[string]string{"link": "https://x.com/ann"}}, false},
		{"identifier only", UserSchema, Record{Key: "ann", Fields: map[string]string{"identifier": "@ann"}}, true},
		{"tweet text only", TweetSchema, Record{Key: "1", Fields: map[string]string{"text": "hi"}}, true},
		{"tweet author only", TweetSchema, Record{Key: "1", Fields: map[string]string{"author": "Ann"}}, true},
		{"tweet timestamp only", TweetSchema, Record{Key: "1", Fields: map[string]string{"timestamp": "2024"}}, false},
		{"schema without content fields", Schema{}, Record{Key: "1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.schema.Accepts(tt.rec))
		})
	}
}

func TestSchemaFor(t *testing.T) {
	assert.Equal(t, ListFollowing, SchemaFor(ListFollowing).Name)
	assert.Equal(t, UserSchema.Fields, SchemaFor(ListFollowers).Fields)
	assert.Equal(t, TweetSchema.Fields, SchemaFor(ListBookmarks).Fields)
	assert.Equal(t, PostSchema.Fields, SchemaFor(ListTimeline).Fields)
}

func TestListTypeValid(t *testing.T) {
	for _, lt := range ListTypes() {
		assert.True(t, lt.Valid(), lt)
	}
	assert.False(t, ListType("likes").Valid())
	assert.False(t, ListType("").Valid())
}
