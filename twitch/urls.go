package twitch

import (
	"net/url"
	"strconv"
	"strings"
)

//ThumbnailURL fills in the size placeholders of a stream thumbnail template.
func ThumbnailURL(template string, width, height int) string {
	r := strings.NewReplacer("{width}", strconv.Itoa(width), "{height}", strconv.Itoa(height))
	return r.Replace(template)
}

//BoxArtURL fills in a box art template and removes the stray "/./" segment some templates carry.
func BoxArtURL(template string, width, height int) string {
	return strings.ReplaceAll(ThumbnailURL(template, width, height), "/./", "/")
}

//VideoURL is the public link to a stored video.
func VideoURL(id string) string {
	return "https://www.twitch.tv/videos/" + id
}

//CallbackURL builds the deterministic webhook callback for a streamer's subscriptions.
func CallbackURL(base, userID, userName string) string {
	q := url.Values{}
	q.Set("cbtype", "stream")
	q.Set("user_id", userID)
	q.Set("user_name", userName)
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}
