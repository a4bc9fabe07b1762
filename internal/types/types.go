package types

import "maps"

// ListType identifies which kind of virtualized list is being harvested
type ListType string

const (
	ListFollowers ListType = "followers"
	ListFollowing ListType = "following"
	ListBookmarks ListType = "bookmarks"
	ListTimeline  ListType = "timeline"
)

// ListTypes returns every supported list type in a stable order
func ListTypes() []ListType {
	return []ListType{ListFollowers, ListFollowing, ListBookmarks, ListTimeline}
}

// Valid reports whether lt is a supported list type
func (lt ListType) Valid() bool {
	switch lt {
	case ListFollowers, ListFollowing, ListBookmarks, ListTimeline:
		return true
	}
	return false
}

// Record represents one harvested list item
type Record struct {
	Key    string            `json:"key"`
	Fields map[string]string `json:"fields"`
}

// Get returns a field value, or "" when the field is absent
func (r Record) Get(field string) string {
	return r.Fields[field]
}

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	return Record{Key: r.Key, Fields: maps.Clone(r.Fields)}
}

// Schema describes the fields a list type produces
type Schema struct {
	Name ListType
	// Fields lists every field a record of this type carries
	Fields []string
	// ContentFields must contain at least one non-empty value for a record to be kept
	ContentFields []string
}

// Normalize fills every schema field missing from r with an empty string.
// Extra fields set by the extractor are left alone.
func (s Schema) Normalize(r Record) Record {
	out := r.Clone()
	if out.Fields == nil {
		out.Fields = make(map[string]string, len(s.Fields))
	}
	for _, f := range s.Fields {
		if _, ok := out.Fields[f]; !ok {
			out.Fields[f] = ""
		}
	}
	return out
}

// Accepts reports whether r has a stable key and some content
func (s Schema) Accepts(r Record) bool {
	if r.Key == "" {
		return false
	}
	if len(s.ContentFields) == 0 {
		return true
	}
	for _, f := range s.ContentFields {
		if r.Fields[f] != "" {
			return true
		}
	}
	return false
}

var (
	// UserSchema covers follower and following cells
	UserSchema = Schema{
		Fields:        []string{"name", "identifier", "description", "link"},
		ContentFields: []string{"name", "identifier"},
	}

	// TweetSchema covers bookmarked tweets
	TweetSchema = Schema{
		Fields:        []string{"id", "text", "author", "timestamp", "link"},
		ContentFields: []string{"author", "text"},
	}

	// PostSchema covers home timeline posts, which carry engagement metrics
	PostSchema = Schema{
		Fields: []string{
			"id", "text", "author", "author_handle", "timestamp", "link",
			"likes", "retweets", "replies",
		},
		ContentFields: []string{"author", "author_handle", "text"},
	}
)

// SchemaFor returns the schema used for a list type
func SchemaFor(lt ListType) Schema {
	var s Schema
	switch lt {
	case ListFollowers, ListFollowing:
		s = UserSchema
	case ListBookmarks:
		s = TweetSchema
	default:
		s = PostSchema
	}
	s.Name = lt
	return s
}
