package catalog

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/glorpus-work/ecget/internal/logger"
	"github.com/glorpus-work/ecget/pkg/auth"
	pkgerrors "github.com/glorpus-work/ecget/pkg/errors"
	"github.com/glorpus-work/ecget/pkg/model"
)

// DefaultCatalogURL is the OpenSearch description document of the catalogue.
const DefaultCatalogURL = "https://eocat.esa.int/eo-catalogue/opensearch/description.xml"

const (
	defaultMaxRetries = 3
	defaultBackoff    = 2 * time.Second
)

// Client runs catalogue searches. Credentials are passed per call and never
// stored on the client.
type Client struct {
	client     *http.Client
	userAgent  string
	catalogURL string
	collection string
	maxRetries int
	backoff    time.Duration

	// results template discovered from the OSDD, cached for the run
	template string
}

// Options configure a Client.
type Options struct {
	CatalogURL string
	Collection string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	UserAgent  string
}

// New creates a catalogue client for one collection.
func New(opts Options) *Client {
	if opts.CatalogURL == "" {
		opts.CatalogURL = DefaultCatalogURL
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "ecget/1.0"
	}
	return &Client{
		client:     &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		catalogURL: opts.CatalogURL,
		collection: opts.Collection,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
	}
}

// osdd is the subset of an OpenSearch description document we read.
type osdd struct {
	XMLName xml.Name  `xml:"OpenSearchDescription"`
	URLs    []osddURL `xml:"Url"`
}

type osddURL struct {
	Rel      string `xml:"rel,attr"`
	Type     string `xml:"type,attr"`
	Template string `xml:"template,attr"`
}

func (d osdd) template(rel, typ string) (string, error) {
	for _, u := range d.URLs {
		if u.Rel == rel && u.Type == typ {
			return u.Template, nil
		}
	}
	return "", fmt.Errorf("no %s/%s url in description document", rel, typ)
}

// atomFeed is the subset of the catalogue's Atom response we read.
type atomFeed struct {
	XMLName      xml.Name    `xml:"feed"`
	TotalResults int         `xml:"http://a9.com/-/spec/opensearch/1.1/ totalResults"`
	Entries      []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Identifier string     `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Title      string     `xml:"title"`
	Links      []atomLink `xml:"link"`
}

type atomLink struct {
	Rel    string `xml:"rel,attr"`
	Type   string `xml:"type,attr"`
	Href   string `xml:"href,attr"`
	Length int64  `xml:"length,attr"`
}

func (e atomEntry) link(rel string) atomLink {
	for _, l := range e.Links {
		if l.Rel == rel {
			return l
		}
	}
	return atomLink{}
}

// Search runs one authenticated query and returns a descriptor per hit. An
// empty result is not an error. Transient failures are retried with backoff;
// credential rejection aborts immediately.
func (c *Client) Search(ctx context.Context, q Query, creds auth.Authenticator) ([]model.FileDescriptor, error) {
	tpl, err := c.resultsTemplate(ctx, creds)
	if err != nil {
		return nil, err
	}

	requestURL := FillTemplate(tpl, q.Parameters())
	logger.Debug("catalogue request", logger.Fields{"url": requestURL})

	body, err := c.get(ctx, requestURL, creds, "application/atom+xml")
	if err != nil {
		return nil, err
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to parse catalogue feed")
	}
	logger.Debug("catalogue results", logger.Fields{"total": feed.TotalResults})

	descriptors := make([]model.FileDescriptor, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		enclosure := entry.link("enclosure")
		if enclosure.Href == "" {
			continue
		}
		remote, err := url.Parse(enclosure.Href)
		if err != nil {
			logger.Warnf("skipping entry %s: bad enclosure url", entry.Identifier)
			continue
		}
		name := path.Base(remote.Path)
		descriptors = append(descriptors, model.FileDescriptor{
			Name:        name,
			RemoteURL:   remote,
			SizeBytes:   enclosure.Length,
			ProductCode: extractProductCode(name),
			Baseline:    extractBaseline(entry.Identifier),
		})
	}
	return descriptors, nil
}

// resultsTemplate walks the two-step OpenSearch discovery chain: catalogue
// description -> collection entry -> granule description -> results template.
// The result is cached for the lifetime of the client.
func (c *Client) resultsTemplate(ctx context.Context, creds auth.Authenticator) (string, error) {
	if c.template != "" {
		return c.template, nil
	}

	body, err := c.get(ctx, c.catalogURL, creds, "")
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to fetch catalogue description")
	}
	var description osdd
	if err := xml.Unmarshal(body, &description); err != nil {
		return "", pkgerrors.Wrap(err, "failed to parse catalogue description")
	}
	collectionTpl, err := description.template("collection", "application/atom+xml")
	if err != nil {
		return "", err
	}

	collectionURL := FillTemplate(collectionTpl, map[string]string{"geo:uid": c.collection})
	body, err = c.get(ctx, collectionURL, creds, "application/atom+xml")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to look up collection %s", c.collection)
	}
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return "", pkgerrors.Wrap(err, "failed to parse collection feed")
	}
	if len(feed.Entries) == 0 {
		return "", pkgerrors.Wrapf(pkgerrors.ErrUnknownCollection, "%q not in catalogue", c.collection)
	}
	granuleOSDD := feed.Entries[0].link("search").Href
	if granuleOSDD == "" {
		return "", fmt.Errorf("collection %s has no granule search document", c.collection)
	}

	body, err = c.get(ctx, granuleOSDD, creds, "application/opensearchdescription+xml")
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to fetch granule description")
	}
	var granules osdd
	if err := xml.Unmarshal(body, &granules); err != nil {
		return "", pkgerrors.Wrap(err, "failed to parse granule description")
	}
	tpl, err := granules.template("results", "application/atom+xml")
	if err != nil {
		return "", err
	}

	c.template = tpl
	return tpl, nil
}

// get performs one GET with auth, classifying failures and retrying
// transient ones up to the configured bound.
func (c *Client) get(ctx context.Context, requestURL string, creds auth.Authenticator, accept string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		body, err := c.getOnce(ctx, requestURL, creds, accept)
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, pkgerrors.ErrTransient) {
			return nil, err
		}
		lastErr = err
		if attempt < c.maxRetries {
			logger.Warnf("catalogue request failed (attempt %d/%d): %v", attempt, c.maxRetries, err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff):
			}
		}
	}
	return nil, lastErr
}

func (c *Client) getOnce(ctx context.Context, requestURL string, creds auth.Authenticator, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if creds != nil {
		if err := creds.Apply(req); err != nil {
			return nil, pkgerrors.Wrap(err, "failed to apply credentials")
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pkgerrors.Wrapf(pkgerrors.ErrTransient, "request failed: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, pkgerrors.Wrapf(pkgerrors.ErrAuth, "HTTP %d from %s", resp.StatusCode, resp.Request.URL.Host)
	case resp.StatusCode >= 500:
		return nil, pkgerrors.Wrapf(pkgerrors.ErrTransient, "HTTP %d", resp.StatusCode)
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrTransient, "failed to read response: %v", err)
	}
	return body, nil
}

// extractProductCode recovers the product short-code embedded in a file name.
func extractProductCode(name string) string {
	for _, code := range ProductCodes {
		if strings.Contains(name, code) {
			return code
		}
	}
	return ""
}

var baselinePattern = regexp.MustCompile(`ECA_EX([A-Z]{2})_`)

// extractBaseline pulls the two-letter processing baseline out of a product
// identifier, or returns "" when the identifier does not carry one.
func extractBaseline(identifier string) string {
	m := baselinePattern.FindStringSubmatch(identifier)
	if m == nil {
		return ""
	}
	return m[1]
}

// FilterBaseline keeps the descriptors matching the selected baseline. With
// BaselineAuto the lexicographically latest baseline present wins, matching
// the archive's alphabetic baseline versioning.
func FilterBaseline(descs []model.FileDescriptor, baseline string) ([]model.FileDescriptor, string) {
	if len(descs) == 0 {
		return descs, ""
	}

	selected := baseline
	if baseline == model.BaselineAuto || baseline == "" {
		selected = ""
		for _, d := range descs {
			if d.Baseline > selected {
				selected = d.Baseline
			}
		}
		if selected == "" {
			// No identifier carried a baseline marker. Keeping the whole set
			// is deliberate: such feeds (auxiliary and orbit products) have
			// nothing to filter on, and dropping them would silently turn the
			// search into a no-op.
			return descs, ""
		}
	}

	filtered := make([]model.FileDescriptor, 0, len(descs))
	for _, d := range descs {
		if d.Baseline == selected {
			filtered = append(filtered, d)
		}
	}
	return filtered, selected
}
