package token

import (
	"net/url"
	"strings"
)

// Link builds the redeemable URL for a combined token.
func Link(baseURL, path, combined string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path + "?" + url.Values{"token": {combined}}.Encode()
}
