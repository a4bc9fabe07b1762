package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// ErrUnsupportedPage is returned for URLs that are not a harvestable X list
var ErrUnsupportedPage = errors.New("unsupported page")

var hosts = map[string]bool{
	"x.com":              true,
	"www.x.com":          true,
	"mobile.x.com":       true,
	"twitter.com":        true,
	"www.twitter.com":    true,
	"mobile.twitter.com": true,
}

// DetectListType validates that rawURL points at a supported list and returns its type.
// A bare host maps to the home timeline.
func DetectListType(rawURL string) (types.ListType, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedPage, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("%w: %q is not a web URL", ErrUnsupportedPage, rawURL)
	}
	if !hosts[strings.ToLower(u.Hostname())] {
		return "", fmt.Errorf("%w: %s is not x.com or twitter.com", ErrUnsupportedPage, u.Hostname())
	}

	path := strings.TrimSuffix(u.Path, "/")
	switch {
	case path == "" || path == "/home":
		return types.ListTimeline, nil
	case path == "/i/bookmarks":
		return types.ListBookmarks, nil
	case isProfileList(path, "followers"), isProfileList(path, "verified_followers"):
		return types.ListFollowers, nil
	case isProfileList(path, "following"):
		return types.ListFollowing, nil
	}
	return "", fmt.Errorf("%w: open a followers, following, bookmarks or home page (got %s)", ErrUnsupportedPage, u.Path)
}

// isProfileList matches "/<handle>/<list>"
func isProfileList(path, list string) bool {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	return len(parts) == 2 && parts[0] != "" && parts[0] != "i" && parts[1] == list
}

// ListURL builds the canonical URL of a list. handle is ignored for bookmarks and the timeline.
func ListURL(lt types.ListType, handle string) (string, error) {
	handle = strings.TrimPrefix(handle, "@")
	switch lt {
	case types.ListBookmarks:
		return "https://x.com/i/bookmarks", nil
	case types.ListTimeline:
		return "https://x.com/home", nil
	case types.ListFollowers, types.ListFollowing:
		if handle == "" {
			return "", fmt.Errorf("a handle is required for %s", lt)
		}
		return "https://x.com/" + handle + "/" + string(lt), nil
	}
	return "", fmt.Errorf("%w: unknown list type %q", ErrUnsupportedPage, lt)
}
