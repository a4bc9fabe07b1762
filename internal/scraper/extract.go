package scraper

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// Extractor reads the records rendered on the current page.
// The ctx passed to ExtractVisible must carry a chromedp browser context.
type Extractor struct {
	list types.ListType
}

// NewExtractor returns the extractor for a list type
func NewExtractor(lt types.ListType) *Extractor {
	return &Extractor{list: lt}
}

// ExtractVisible implements harvest.Extractor
func (e *Extractor) ExtractVisible(ctx context.Context) ([]types.Record, error) {
	switch e.list {
	case types.ListFollowers, types.ListFollowing:
		var raw []rawUser
		if err := chromedp.Run(ctx, chromedp.Evaluate(extractUsersJS, &raw)); err != nil {
			return nil, fmt.Errorf("failed to extract users from DOM: %w", err)
		}
		return userRecords(raw), nil
	case types.ListBookmarks:
		var raw []rawTweet
		if err := chromedp.Run(ctx, chromedp.Evaluate(extractTweetsJS, &raw)); err != nil {
			return nil, fmt.Errorf("failed to extract tweets from DOM: %w", err)
		}
		return tweetRecords(raw), nil
	default:
		var raw []rawPost
		if err := chromedp.Run(ctx, chromedp.Evaluate(extractPostsJS, &raw)); err != nil {
			return nil, fmt.Errorf("failed to extract posts from DOM: %w", err)
		}
		return postRecords(raw), nil
	}
}

// rawUser is one user cell as read by extractUsersJS
type rawUser struct {
	Handle      string `json:"handle"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// extractUsersJS reads every rendered user cell.
// The handle comes from the first profile link; the display name is the span
// right before "@handle"; the bio is the first long span that is not button text.
var extractUsersJS = fmt.Sprintf(`
	(function() {
		const results = [];
		document.querySelectorAll('%s').forEach(cell => {
			try {
				let handle = '';
				for (const link of cell.querySelectorAll('a[href^="/"]')) {
					const href = link.getAttribute('href');
					if (href && href.length > 1 && !href.includes('/status/')) {
						handle = href.substring(1);
						break;
					}
				}
				if (!handle) return;

				const spans = Array.from(cell.querySelectorAll('span'));
				let name = '';
				for (let i = 0; i + 1 < spans.length; i++) {
					const text = spans[i].textContent.trim();
					if (!text || text.startsWith('@') || text.length >= 100) continue;
					const next = spans[i + 1].textContent.trim();
					if (next.startsWith('@' + handle)) {
						name = text;
						break;
					}
				}

				let description = '';
				for (const span of spans) {
					const text = span.textContent.trim();
					if (text.length > 20 && !text.startsWith('@') &&
						!text.includes('Follow') && text !== name) {
						description = text;
						break;
					}
				}

				results.push({handle, name, description});
			} catch (e) {
				console.error('Error extracting user:', e);
			}
		});
		return results;
	})()
`, UserCell)

func userRecords(raw []rawUser) []types.Record {
	records := make([]types.Record, 0, len(raw))
	for _, u := range raw {
		handle := strings.TrimPrefix(strings.TrimSpace(u.Handle), "/")
		if handle == "" {
			continue
		}
		records = append(records, types.Record{
			Key: handle,
			Fields: map[string]string{
				"name":        strings.TrimSpace(u.Name),
				"identifier":  "@" + handle,
				"description": strings.TrimSpace(u.Description),
				"link":        "https://twitter.com/" + handle,
			},
		})
	}
	return records
}

// rawTweet is one bookmarked tweet as read by extractTweetsJS
type rawTweet struct {
	Text      string `json:"text"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp"`
	Link      string `json:"link"`
}

// extractTweetsJS reads every rendered tweet. The permalink is the anchor
// around the timestamp, which is the one link that always points at the tweet itself.
var extractTweetsJS = fmt.Sprintf(`
	(function() {
		const results = [];
		document.querySelectorAll('%s').forEach(el => {
			try {
				const textEl = el.querySelector('%s');
				const authorEl = el.querySelector('%s');
				const timeEl = el.querySelector('%s');
				const linkEl = timeEl ? timeEl.closest('a') : null;
				results.push({
					text: textEl ? textEl.textContent.trim() : '',
					author: authorEl ? authorEl.textContent.trim() : '',
					timestamp: timeEl ? (timeEl.getAttribute('datetime') || '') : '',
					link: linkEl ? linkEl.href : ''
				});
			} catch (e) {
				console.error('Error extracting tweet:', e);
			}
		});
		return results;
	})()
`, TweetArticle, TweetText, TweetAuthor, TweetTimestamp)

func tweetRecords(raw []rawTweet) []types.Record {
	records := make([]types.Record, 0, len(raw))
	for _, t := range raw {
		id := StatusID(t.Link)
		if id == "" {
			continue
		}
		records = append(records, types.Record{
			Key: id,
			Fields: map[string]string{
				"id":        id,
				"text":      t.Text,
				"author":    t.Author,
				"timestamp": t.Timestamp,
				"link":      t.Link,
			},
		})
	}
	return records
}

// rawPost represents the raw data extracted from the DOM via JavaScript
type rawPost struct {
	AuthorHandle string `json:"authorHandle"`
	AuthorName   string `json:"authorName"`
	Content      string `json:"content"`
	Timestamp    string `json:"timestamp"`
	Likes        string `json:"likes"`
	Retweets     string `json:"retweets"`
	Replies      string `json:"replies"`
	OriginalURL  string `json:"originalUrl"`
}

// extractPostsJS reads timeline posts with their engagement counts
var extractPostsJS = fmt.Sprintf(`
	(function() {
		const results = [];
		document.querySelectorAll('%[1]s').forEach(el => {
			try {
				const statusLink = el.querySelector('%[2]s');
				if (!statusLink) return;

				const userNameEl = el.querySelector('%[3]s');
				let authorHandle = '';
				let authorName = '';
				if (userNameEl) {
					const handleLink = userNameEl.querySelector('a[href^="/"]');
					if (handleLink) {
						authorHandle = handleLink.getAttribute('href')?.replace('/', '') || '';
					}
					const nameSpan = userNameEl.querySelector('span');
					authorName = nameSpan?.textContent || '';
				}

				const tweetTextEl = el.querySelector('%[4]s');
				const timeEl = el.querySelector('%[5]s');

				// Counts are displayed as aria-label (e.g., "123 Replies") or text
				const getMetric = (testId) => {
					const metricEl = el.querySelector('[data-testid="' + testId + '"]');
					if (!metricEl) return '0';
					const ariaLabel = metricEl.getAttribute('aria-label');
					if (ariaLabel) {
						const match = ariaLabel.match(/^([\d,.]+[KkMm]?)/);
						return match ? match[1] : '0';
					}
					return metricEl.textContent?.trim() || '0';
				};

				results.push({
					authorHandle,
					authorName,
					content: tweetTextEl?.textContent || '',
					timestamp: timeEl?.getAttribute('datetime') || '',
					likes: getMetric('like'),
					retweets: getMetric('retweet'),
					replies: getMetric('reply'),
					originalUrl: statusLink.href || ''
				});
			} catch (e) {
				console.error('Error extracting post:', e);
			}
		});
		return results;
	})()
`, TweetArticle, TweetLink, TweetAuthor, TweetText, TweetTimestamp)

func postRecords(raw []rawPost) []types.Record {
	records := make([]types.Record, 0, len(raw))
	for _, rp := range raw {
		id := StatusID(rp.OriginalURL)
		if id == "" {
			continue
		}
		records = append(records, types.Record{
			Key: id,
			Fields: map[string]string{
				"id":            id,
				"text":          rp.Content,
				"author":        rp.AuthorName,
				"author_handle": rp.AuthorHandle,
				"timestamp":     rp.Timestamp,
				"link":          rp.OriginalURL,
				"likes":         strconv.Itoa(parseMetric(rp.Likes)),
				"retweets":      strconv.Itoa(parseMetric(rp.Retweets)),
				"replies":       strconv.Itoa(parseMetric(rp.Replies)),
			},
		})
	}
	return records
}

// StatusID returns the numeric tweet ID in a /status/<id> link, or ""
func StatusID(link string) string {
	_, rest, ok := strings.Cut(link, "/status/")
	if !ok {
		return ""
	}
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	return rest[:end]
}

// parseMetric converts abbreviated metric strings like "1.2K", "5.7M", or "423" to integers
func parseMetric(s string) int {
	if s == "" {
		return 0
	}

	// Clean up the string
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "") // Remove commas (e.g., "1,234")

	// Handle abbreviated formats (K for thousands, M for millions)
	multiplier := 1.0
	if strings.HasSuffix(strings.ToUpper(s), "K") {
		multiplier = 1000
		s = s[:len(s)-1]
	} else if strings.HasSuffix(strings.ToUpper(s), "M") {
		multiplier = 1000000
		s = s[:len(s)-1]
	}

	// Parse the numeric part
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	return int(value*multiplier + 0.5)
}
