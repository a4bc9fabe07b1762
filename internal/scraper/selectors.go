package scraper

// X.com DOM selectors
// These are isolated here because X changes their DOM frequently
// Update these when extraction breaks

const (
	// Rendered for every list page, including empty ones
	PrimaryColumn = `[data-testid="primaryColumn"]`

	// Follower and following lists
	UserCell = `[data-testid="UserCell"]`

	// Tweets (bookmarks and timeline)
	TweetArticle   = `article[data-testid="tweet"]`
	TweetText      = `[data-testid="tweetText"]`
	TweetAuthor    = `[data-testid="User-Name"]`
	TweetTimestamp = `time`
	TweetLink      = `a[href*="/status/"]`
)
