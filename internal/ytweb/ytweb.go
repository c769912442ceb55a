// Package ytweb turns whatever a user pastes into the subscription form - a
// channel URL, a handle, a bare ID - into a canonical channel ID. Anything
// that can't be resolved offline gets resolved by fetching the page and
// reading the ID out of it.
package ytweb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"fknsrs.biz/p/ytsubs/internal/ctxhttpclient"
)

var channelIDRegexp = regexp.MustCompile(`"channelId"\s*:\s*"(UC[-_a-zA-Z0-9]{22})"`)

// ResolveChannelID finds the channel ID for user input. Bare IDs and
// /channel/ URLs resolve without any network traffic; handles and /user/ and
// /c/ URLs need the channel page fetched.
func ResolveChannelID(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("ytweb.ResolveChannelID: empty input")
	}

	if id, ok := extractChannelID(input); ok {
		return id, nil
	}

	pageURL, err := channelPageURL(input)
	if err != nil {
		return "", fmt.Errorf("ytweb.ResolveChannelID: %w", err)
	}

	id, err := channelIDFromPage(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("ytweb.ResolveChannelID: %w", err)
	}

	return id, nil
}

func extractChannelID(input string) (string, bool) {
	if len(input) == 24 && strings.HasPrefix(input, "UC") {
		return input, true
	}

	parsed, err := url.Parse(input)
	if err != nil {
		return "", false
	}

	if strings.HasPrefix(parsed.Path, "/channel/") {
		id := strings.Split(strings.TrimPrefix(parsed.Path, "/channel/"), "/")[0]
		if len(id) == 24 && strings.HasPrefix(id, "UC") {
			return id, true
		}
	}

	return "", false
}

func channelPageURL(input string) (string, error) {
	if strings.HasPrefix(input, "http:") || strings.HasPrefix(input, "https:") {
		return input, nil
	}

	if strings.HasPrefix(input, "@") {
		return "https://www.youtube.com/" + input, nil
	}

	return "", fmt.Errorf("no strategy available for %q", input)
}

func channelIDFromPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("ytweb.channelIDFromPage: %w", err)
	}

	res, err := ctxhttpclient.GetHTTPClient(ctx).Do(req)
	if err != nil {
		return "", fmt.Errorf("ytweb.channelIDFromPage: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ytweb.channelIDFromPage: status code: %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return "", fmt.Errorf("ytweb.channelIDFromPage: %w", err)
	}

	if id := doc.Find("meta[itemprop=identifier]").AttrOr("content", ""); len(id) == 24 && strings.HasPrefix(id, "UC") {
		return id, nil
	}

	if id := doc.Find("meta[itemprop=channelId]").AttrOr("content", ""); len(id) == 24 && strings.HasPrefix(id, "UC") {
		return id, nil
	}

	// handle pages don't always carry the meta tags, but the id shows up in
	// the inline player config
	for _, node := range doc.Find("script").Nodes {
		if node.FirstChild == nil || node.FirstChild.Type != html.TextNode {
			continue
		}

		if match := channelIDRegexp.FindStringSubmatch(node.FirstChild.Data); len(match) > 1 {
			return match[1], nil
		}
	}

	return "", fmt.Errorf("ytweb.channelIDFromPage: could not find channel id in page")
}
