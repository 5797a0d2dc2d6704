package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/net/html"
)

const (
	toolFetchWebpage  = "fetch_webpage_content"
	toolYouTubeSearch = "create_youtube_search_url"

	// maxFetchedRunes caps webpage text handed back to the model.
	maxFetchedRunes = 5000
	maxFetchBytes   = 2 << 20
	fetchUserAgent  = "Mozilla/5.0 (compatible; AuralOdyssey/1.0)"
)

var chatTools = []openai.Tool{
	{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        toolFetchWebpage,
			Description: "Fetches the main text content of a webpage. Use it when the user asks about a specific URL.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {"url": {"type": "string", "description": "Full URL of the webpage."}},
				"required": ["url"]
			}`),
		},
	},
	{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        toolYouTubeSearch,
			Description: "Builds a YouTube search URL. Use it when the user asks to play or search for a video.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {"query": {"type": "string", "description": "What to search for."}},
				"required": ["query"]
			}`),
		},
	},
}

// YouTubeSearchURL returns the YouTube results page for query.
func YouTubeSearchURL(query string) string {
	return "https://www.youtube.com/results?search_query=" + url.QueryEscape(query)
}

// runTool executes a tool call and returns the text handed back to the
// model. Tool failures are reported to the model, not returned.
func (c *Client) runTool(ctx context.Context, call openai.ToolCall) string {
	var args struct {
		URL   string `json:"url"`
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err)
	}

	switch call.Function.Name {
	case toolYouTubeSearch:
		return YouTubeSearchURL(args.Query)
	case toolFetchWebpage:
		text, err := c.fetchWebpage(ctx, args.URL)
		if err != nil {
			c.logger.Warn("webpage fetch failed", "url", args.URL, "error", err)
			return "Error: " + err.Error()
		}
		return text
	default:
		return fmt.Sprintf("Error: unknown tool %q", call.Function.Name)
	}
}

func (c *Client) fetchWebpage(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("not an http(s) URL: %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("failed to fetch the webpage: %s", resp.Status)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	body := io.LimitReader(resp.Body, maxFetchBytes)

	var text string
	switch mediaType {
	case "text/html":
		if text, err = htmlText(body); err != nil {
			return "", err
		}
	case "text/plain":
		b, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		text = strings.Join(strings.Fields(string(b)), " ")
	default:
		return "", fmt.Errorf("content is not HTML or plain text: %q", mediaType)
	}

	if text == "" {
		return "The page was fetched but no text content could be extracted.", nil
	}
	return truncate(text, maxFetchedRunes), nil
}

// htmlText returns the visible text of an HTML document with whitespace
// collapsed.
func htmlText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			parts = append(parts, strings.Fields(n.Data)...)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return strings.Join(parts, " "), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
