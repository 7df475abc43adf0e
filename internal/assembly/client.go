// Package assembly reads the National Assembly open API and bill detail
// pages. Every fetch fails soft: callers get an empty batch or a failed
// detail.Page and the reason is logged.
package assembly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lawmate/billpipe/internal/detail"
	"github.com/lawmate/billpipe/pkg/logger"
)

const userAgent = "Mozilla/5.0 (compatible; billpipe/1.0)"

// BillRow is one record of the bill listing endpoint.
type BillRow struct {
	BillID     string `json:"BILL_ID"`
	BillNo     string `json:"BILL_NO"`
	BillName   string `json:"BILL_NAME"`
	Proposer   string `json:"PROPOSER"`
	Committee  string `json:"COMMITTEE"`
	ProcResult string `json:"PROC_RESULT"`
	ProposeDT  string `json:"PROPOSE_DT"`
	DetailLink string `json:"DETAIL_LINK"`
}

// ProposerRow is one record of the legislator listing endpoint.
type ProposerRow struct {
	Name     string `json:"HG_NM"`
	BirthDay string `json:"BTH_DATE"`
	Job      string `json:"JOB_RES_NM"`
	Party    string `json:"POLY_NM"`
	District string `json:"ORIG_NM"`
	Cmits    string `json:"CMITS"`
	MemTitle string `json:"MEM_TITLE"`
}

type Options struct {
	BaseURL           string
	APIKey            string
	BillEndpoint      string
	ProposerEndpoint  string
	Age               int
	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

type Client struct {
	opts       Options
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		opts:       opts,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// FetchBills returns the first page of the bill listing, sorted ascending by
// numeric bill number. Ties keep API order.
func (c *Client) FetchBills(ctx context.Context, pageSize int) []BillRow {
	params := url.Values{}
	if c.opts.Age > 0 {
		params.Set("AGE", strconv.Itoa(c.opts.Age))
	}

	body, ok := c.fetchListing(ctx, c.opts.BillEndpoint, pageSize, params)
	if !ok {
		return nil
	}

	rows, err := decodeRows[BillRow](body, c.opts.BillEndpoint)
	if err != nil {
		logger.Warn("Bill listing has unexpected shape", zap.Error(err))
		return nil
	}

	sorted, err := sortByBillNumber(rows)
	if err != nil {
		logger.Warn("Bill listing has invalid bill number", zap.Error(err))
		return nil
	}

	logger.Info("Bills fetched", zap.Int("count", len(sorted)), zap.Int("page_size", pageSize))
	return sorted
}

// FetchProposers returns the first page of the legislator listing.
func (c *Client) FetchProposers(ctx context.Context, pageSize int) []ProposerRow {
	body, ok := c.fetchListing(ctx, c.opts.ProposerEndpoint, pageSize, nil)
	if !ok {
		return nil
	}

	rows, err := decodeRows[ProposerRow](body, c.opts.ProposerEndpoint)
	if err != nil {
		logger.Warn("Proposer listing has unexpected shape", zap.Error(err))
		return nil
	}

	logger.Info("Proposers fetched", zap.Int("count", len(rows)))
	return rows
}

// FetchDetail downloads a bill detail page.
func (c *Client) FetchDetail(ctx context.Context, detailURL string) detail.Page {
	if strings.TrimSpace(detailURL) == "" {
		return detail.FailedPage(detail.NoLink)
	}

	body, status, err := c.get(ctx, detailURL)
	if err != nil {
		logger.Warn("Detail fetch error", zap.String("url", detailURL), zap.Error(err))
		return detail.FailedPage(detail.FetchError)
	}
	if status != http.StatusOK {
		logger.Warn("Detail fetch failed", zap.String("url", detailURL), zap.Int("status", status))
		return detail.FailedPage(detail.FetchFailed)
	}

	return detail.Page{HTML: body}
}

func (c *Client) fetchListing(ctx context.Context, endpoint string, pageSize int, extra url.Values) ([]byte, bool) {
	params := url.Values{}
	for k, v := range extra {
		params[k] = v
	}
	params.Set("KEY", c.opts.APIKey)
	params.Set("Type", "json")
	params.Set("pIndex", "1")
	params.Set("pSize", strconv.Itoa(pageSize))

	listingURL := fmt.Sprintf("%s/%s?%s", strings.TrimRight(c.opts.BaseURL, "/"), endpoint, params.Encode())

	body, status, err := c.get(ctx, listingURL)
	if err != nil {
		logger.Warn("API request error", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, false
	}
	if status != http.StatusOK {
		logger.Warn("API request failed", zap.String("endpoint", endpoint), zap.Int("status", status))
		return nil, false
	}
	return body, true
}

func (c *Client) get(ctx context.Context, target string) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

type apiResult struct {
	Code    string `json:"CODE"`
	Message string `json:"MESSAGE"`
}

// decodeRows unwraps {"<key>": [{"head": ...}, {"row": [...]}]}. When the
// key is absent the API usually answers {"RESULT": {...}} instead.
func decodeRows[T any](body []byte, key string) ([]T, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	raw, ok := envelope[key]
	if !ok {
		var result apiResult
		if r, ok := envelope["RESULT"]; ok && json.Unmarshal(r, &result) == nil {
			return nil, fmt.Errorf("key %q missing (%s: %s)", key, result.Code, result.Message)
		}
		return nil, fmt.Errorf("key %q missing", key)
	}

	var sections []json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		return nil, fmt.Errorf("failed to parse %q sections: %w", key, err)
	}
	if len(sections) < 2 {
		return nil, errors.New("row section missing")
	}

	var rowSection struct {
		Row *[]T `json:"row"`
	}
	if err := json.Unmarshal(sections[1], &rowSection); err != nil {
		return nil, fmt.Errorf("failed to parse rows: %w", err)
	}
	if rowSection.Row == nil {
		return nil, errors.New("row section missing")
	}

	return *rowSection.Row, nil
}

func sortByBillNumber(rows []BillRow) ([]BillRow, error) {
	type keyed struct {
		n   int64
		row BillRow
	}

	items := make([]keyed, len(rows))
	for i, r := range rows {
		n, err := strconv.ParseInt(strings.TrimSpace(r.BillNo), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bill %q: %w", r.BillID, err)
		}
		items[i] = keyed{n: n, row: r}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].n < items[j].n })

	out := make([]BillRow, len(items))
	for i, it := range items {
		out[i] = it.row
	}
	return out, nil
}
