// Package feed polls the arXiv Atom API and pushes fresh matching papers
// to chat groups through the delivery pool.
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://export.arxiv.org"

// Entry is one paper from a feed query result.
type Entry struct {
	ID       string
	Title    string
	Summary  string
	Authors  []string
	Link     string
	Category string
}

// maxAuthors caps the rendered author list; large collaborations can carry
// hundreds of names.
const maxAuthors = 3

// Message renders the entry as a chat notification.
func (e Entry) Message() string {
	authors := strings.Join(e.Authors, ", ")
	if len(e.Authors) > maxAuthors {
		authors = strings.Join(e.Authors[:maxAuthors], ", ") + " et al."
	}
	return fmt.Sprintf("📄 [arXiv] %s\n👤 %s\n🔗 %s", e.Title, authors, e.Link)
}

// Fetcher fetches feed entries (e.g. *Client).
type Fetcher interface {
	Fetch(ctx context.Context, query string, maxResults int) ([]Entry, error)
}

// Client queries the arXiv Atom API. BaseURL is replaceable so tests can
// point it at a local server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a feed client. An empty baseURL selects the public
// arXiv export host.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch runs one query, newest submissions first.
func (c *Client) Fetch(ctx context.Context, query string, maxResults int) ([]Entry, error) {
	q := url.Values{}
	q.Set("search_query", query)
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")
	q.Set("max_results", strconv.Itoa(maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/query?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed query: %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var doc atomFeed
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}
	entries := make([]Entry, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		entries = append(entries, e.toEntry())
	}
	return entries, nil
}

// Atom wire format. primary_category sits in the arxiv: namespace; Go's
// xml decoder matches it by local name.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID      string `xml:"id"`
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
	Authors []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href string `xml:"href,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
	PrimaryCategory struct {
		Term string `xml:"term,attr"`
	} `xml:"primary_category"`
}

func (e atomEntry) toEntry() Entry {
	authors := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}
	link := strings.TrimSpace(e.ID)
	for _, l := range e.Links {
		if l.Rel == "alternate" && l.Href != "" {
			link = l.Href
			break
		}
	}
	return Entry{
		ID:       strings.TrimSpace(e.ID),
		Title:    collapseSpace(e.Title),
		Summary:  collapseSpace(e.Summary),
		Authors:  authors,
		Link:     link,
		Category: e.PrimaryCategory.Term,
	}
}

// collapseSpace folds the newlines and indentation arXiv wraps long fields
// with into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
