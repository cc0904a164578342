package paper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/platform/ctxutil"
	"github.com/yungbote/dataimport-backend/internal/platform/httpx"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

// Metadata is the subset of DOI metadata a paper row can take over. Nil fields
// were absent.
type Metadata struct {
	Title            *string
	Authors          []csvimport.Author
	PublicationMonth *int
	PublicationYear  *int64
	PublishedIn      *string
	URL              *string
}

// DOIService resolves DOI metadata. A nil result without error means the DOI is
// unknown.
type DOIService interface {
	FindMetadataByDOI(ctx context.Context, doi string) (*Metadata, error)
}

// DOIConfig is filled by envconfig under the DOI prefix.
type DOIConfig struct {
	BaseURL    string        `envconfig:"BASE_URL" default:"https://doi.org"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"10s"`
	MaxRetries int           `envconfig:"MAX_RETRIES" default:"2"`
	UserAgent  string        `envconfig:"USER_AGENT" default:"dataimport-backend"`
}

type doiClient struct {
	log        *logger.Logger
	cfg        DOIConfig
	httpClient *http.Client
}

func NewDOIClient(log *logger.Logger, cfg DOIConfig) (DOIService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://doi.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &doiClient{
		log:        log.With("client", "DOIClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// NormalizeDOI strips resolver prefixes.
func NormalizeDOI(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(s[len(prefix):])
		}
	}
	return s
}

func (c *doiClient) FindMetadataByDOI(ctx context.Context, doi string) (*Metadata, error) {
	doi = NormalizeDOI(doi)
	if doi == "" {
		return nil, nil
	}
	var raw []byte
	var found bool
	retry := httpx.Retry{
		Retries: c.cfg.MaxRetries,
		Base:    500 * time.Millisecond,
		Max:     5 * time.Second,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			c.log.Warn("DOI lookup retrying", "doi", doi, "attempt", attempt, "sleep", wait.String(), "error", err.Error())
		},
	}
	err := retry.Do(ctxutil.Default(ctx), func(ctx context.Context) (*http.Response, error) {
		resp, body, err := c.doOnce(ctx, doi)
		raw, found = body, resp != nil && resp.StatusCode != http.StatusNotFound
		return resp, err
	})
	if err != nil || !found {
		return nil, err
	}
	return decodeCSL(raw)
}

func (c *doiClient) doOnce(ctx context.Context, doi string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, c.cfg.BaseURL+"/"+(&url.URL{Path: doi}).EscapedPath(), nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/vnd.citationstyles.csl+json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp, nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return resp, nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, nil, &httpx.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

type cslAuthor struct {
	Given   *string `json:"given"`
	Family  *string `json:"family"`
	Literal *string `json:"literal"`
	ORCID   *string `json:"ORCID"`
}

type cslItem struct {
	Title          json.RawMessage `json:"title"`
	Subtitle       json.RawMessage `json:"subtitle"`
	Author         []cslAuthor     `json:"author"`
	Issued         *cslDate        `json:"issued"`
	URL            *string         `json:"URL"`
	ContainerTitle json.RawMessage `json:"container-title"`
}

type cslDate struct {
	DateParts [][]json.RawMessage `json:"date-parts"`
}

var orcidPattern = regexp.MustCompile(`\d{4}-\d{4}-\d{4}-\d{3}[\dX]`)

func decodeCSL(raw []byte) (*Metadata, error) {
	var item cslItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decode doi metadata: %w", err)
	}
	md := &Metadata{}
	if title, ok := firstString(item.Title); ok {
		if sub, ok := firstString(item.Subtitle); ok && sub != "" {
			title = title + ": " + sub
		}
		md.Title = &title
	}
	for _, a := range item.Author {
		name := strings.TrimSpace(strings.Join(nonNil(a.Given, a.Family), " "))
		if name == "" && a.Literal != nil {
			name = strings.TrimSpace(*a.Literal)
		}
		if name == "" {
			continue
		}
		author := csvimport.Author{Name: name}
		if a.ORCID != nil {
			if id := orcidPattern.FindString(*a.ORCID); id != "" {
				author.Identifiers = map[string][]string{"orcid": {id}}
			}
		}
		md.Authors = append(md.Authors, author)
	}
	if item.Issued != nil && len(item.Issued.DateParts) > 0 {
		parts := item.Issued.DateParts[0]
		if len(parts) > 0 {
			if y, ok := intPart(parts[0]); ok {
				md.PublicationYear = &y
			}
		}
		if len(parts) > 1 {
			if m, ok := intPart(parts[1]); ok {
				month := int(m)
				md.PublicationMonth = &month
			}
		}
	}
	if item.URL != nil {
		if u, err := url.Parse(*item.URL); err == nil && u.IsAbs() {
			s := u.String()
			md.URL = &s
		}
	}
	if venue, ok := firstString(item.ContainerTitle); ok && venue != "" {
		md.PublishedIn = &venue
	}
	return md, nil
}

// firstString accepts a JSON string or an array of strings.
func firstString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0], true
	}
	return "", false
}

func intPart(raw json.RawMessage) (int64, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		v, err := n.Int64()
		return v, err == nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		return v, err == nil
	}
	return 0, false
}

func nonNil(vals ...*string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}
