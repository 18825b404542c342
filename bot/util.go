package bot

import (
	"regexp"
	"strings"
)

//Allows bare usernames or channel URLs, optionally wrapped in quotation marks
var broadcasterRegex = regexp.MustCompile(`^"?(?:(?:https?://)?(?:(?:www|go|m)\.)?twitch\.tv/)?(?P<username>[a-zA-Z0-9_]{3,25})/?"?$`)

//Allows channel mentions or raw channel IDs
var channelRegex = regexp.MustCompile(`^(?:<#(\d+)>|(\d{17,20}))$`)

//interpretBroadcaster extracts a login from a username or channel link. It returns "" if the string is neither.
func interpretBroadcaster(s string) string {
	matches := broadcasterRegex.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return ""
	}
	return strings.ToLower(matches[broadcasterRegex.SubexpIndex("username")])
}

//interpretChannel extracts a channel ID from a mention or raw ID. It returns "" if the string is neither.
func interpretChannel(s string) string {
	matches := channelRegex.FindStringSubmatch(strings.TrimSpace(s))
	switch {
	case matches == nil:
		return ""
	case matches[1] != "":
		return matches[1]
	default:
		return matches[2]
	}
}

//splitArgs splits s into at most n whitespace separated fields. The final field keeps the rest of the string as-is.
func splitArgs(s string, n int) []string {
	var res []string
	s = strings.TrimSpace(s)
	for s != "" && len(res) < n-1 {
		idx := strings.IndexAny(s, " \t\n")
		if idx < 0 {
			break
		}
		res = append(res, s[:idx])
		s = strings.TrimSpace(s[idx:])
	}
	if s != "" {
		res = append(res, s)
	}
	return res
}
