package queries

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bctelemetry/bctb/internal/config"
)

const (
	externalFetchTimeout = 30 * time.Second
	maxReferenceBody     = 1 << 20 // 1 MiB per source
	maxQueriesPerSource  = 50
)

// ExternalQuery is one KQL sample extracted from a remote reference.
type ExternalQuery struct {
	Title string `json:"title,omitempty"`
	KQL   string `json:"kql"`
}

// ReferenceResult is the fetch outcome for one configured source. Errors
// are per-source and never fail the whole fetch.
type ReferenceResult struct {
	Name    string          `json:"name"`
	URL     string          `json:"url"`
	Queries []ExternalQuery `json:"queries,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Fetcher retrieves KQL samples from the configured remote references.
type Fetcher struct {
	refs   []config.ReferenceConfig
	client *http.Client
}

func NewFetcher(refs []config.ReferenceConfig) *Fetcher {
	return &Fetcher{
		refs:   refs,
		client: &http.Client{Timeout: externalFetchTimeout},
	}
}

// HasReferences reports whether any sources are configured.
func (f *Fetcher) HasReferences() bool { return len(f.refs) > 0 }

// FetchAll retrieves every reference concurrently. The result slice keeps
// the configuration order regardless of completion order.
func (f *Fetcher) FetchAll(ctx context.Context) []ReferenceResult {
	results := make([]ReferenceResult, len(f.refs))

	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range f.refs {
		g.Go(func() error {
			results[i] = f.fetchOne(gctx, ref)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, ref config.ReferenceConfig) ReferenceResult {
	out := ReferenceResult{Name: ref.Name, URL: ref.URL}

	req, err := http.NewRequestWithContext(ctx, "GET", ref.URL, nil)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	resp, err := f.client.Do(req)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		out.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return out
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReferenceBody))
	if err != nil {
		out.Error = err.Error()
		return out
	}

	out.Queries = ExtractKQLBlocks(string(body))
	if len(out.Queries) == 0 {
		out.Error = "no KQL blocks found"
	}
	return out
}

var (
	fencedKQLRe = regexp.MustCompile("(?s)```(?:kql|kusto)\\s*\\n(.*?)```")
	headingRe   = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
)

// ExtractKQLBlocks pulls fenced kql/kusto code blocks out of Markdown.
// Each block is titled with the nearest preceding heading when one exists.
func ExtractKQLBlocks(markdown string) []ExternalQuery {
	var out []ExternalQuery

	blocks := fencedKQLRe.FindAllStringSubmatchIndex(markdown, -1)
	headings := headingRe.FindAllStringSubmatchIndex(markdown, -1)

	for _, b := range blocks {
		if len(out) >= maxQueriesPerSource {
			break
		}
		kql := strings.TrimSpace(markdown[b[2]:b[3]])
		if kql == "" {
			continue
		}

		title := ""
		for _, h := range headings {
			if h[0] > b[0] {
				break
			}
			title = strings.TrimSpace(markdown[h[2]:h[3]])
		}
		out = append(out, ExternalQuery{Title: title, KQL: kql})
	}
	return out
}
