package notes

import (
	"net/url"
	"strings"
)

// Links are the shareable URLs returned when a note is created.
type Links struct {
	ViewURL string
	EditURL string
}

// NormalizeBaseURL prefers the configured public domain over the request origin and strips
// trailing slashes.
func NormalizeBaseURL(publicDomain, fallbackOrigin string) string {
	value := strings.TrimSpace(publicDomain)
	if value == "" {
		value = fallbackOrigin
	}
	return strings.TrimRight(value, "/")
}

// BuildLinks composes the view URL and the edit URL. The edit URL is the only place the edit
// access token ever leaves the server.
func BuildLinks(baseURL string, note Note, fragmentSecret string) Links {
	viewURL := baseURL + "/view/" + note.UUID + "#" + fragmentSecret
	query := url.Values{"access": []string{note.EditAccessToken}}
	editURL := baseURL + "/edit/" + note.UUID + "?" + query.Encode() + "#" + fragmentSecret
	return Links{ViewURL: viewURL, EditURL: editURL}
}
