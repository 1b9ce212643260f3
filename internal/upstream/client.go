package upstream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/epfl-river/river-backend/internal/apierr"
)

// requestTimeout mirrors the remote's own history-query budget: histories
// spanning the full VAISALA_MAX_HISTORY_DAYS window can take minutes to
// render server-side.
const requestTimeout = 300 * time.Second

// Client talks to the remote viewLinc-style data-logger REST API. All
// methods are safe for concurrent use; the underlying http.Client pools
// connections.
type Client struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
}

// New builds a Client. skipTLSVerify disables certificate validation, for
// loggers that serve self-signed certificates on a trusted network segment.
func New(baseURL, bearerToken string, skipTLSVerify bool) *Client {
	transport := &http.Transport{}
	if skipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		bearerToken: bearerToken,
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
	}
}

// do executes an authenticated GET against path and decodes the JSON body
// into out. Non-2xx responses are translated to a classified *apierr.Error:
// 429 is transient (retry-worthy), everything else is permanent. A
// transport error is transient when it is a timeout or ctx is done, and
// permanent otherwise.
func (c *Client) do(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return apierr.Upstreamf(err, "building request for %s", path)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if te, ok := err.(interface{ Timeout() bool }); (ok && te.Timeout()) || ctx.Err() != nil {
			return apierr.UpstreamTransient(err, "request to "+path+" timed out")
		}
		return apierr.Upstream(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return apierr.UpstreamTransient(nil, "rate limited (429)")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apierr.Upstreamf(nil, "remote returned %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierr.Upstreamf(err, "decoding response from %s", path)
	}
	return nil
}

// intListParam renders ids as a bracketed, comma-separated list matching
// the remote's own query-string convention: "[1270,1272,1290]", sent
// unescaped rather than URL-encoded.
func intListParam(ids []int) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(id))
	}
	b.WriteByte(']')
	return b.String()
}

// FetchHierarchy retrieves the full, flattened location tree.
func (c *Client) FetchHierarchy(ctx context.Context) ([]Location, error) {
	var env Envelope[Location]
	if err := c.do(ctx, "/locations?flatten=true", &env); err != nil {
		return nil, err
	}
	out := make([]Location, len(env.Data))
	for i, r := range env.Data {
		out[i] = r.Attributes
	}
	return out, nil
}

// FetchHistory retrieves the data-point series for locationIDs over
// [start, end), both epoch seconds.
func (c *Client) FetchHistory(ctx context.Context, locationIDs []int, start, end int64) ([]LocationHistory, error) {
	path := fmt.Sprintf("/locations/history?location_ids=%s&start=%d&end=%d",
		intListParam(locationIDs), start, end)
	var env Envelope[LocationHistory]
	if err := c.do(ctx, path, &env); err != nil {
		return nil, err
	}
	out := make([]LocationHistory, len(env.Data))
	for i, r := range env.Data {
		out[i] = r.Attributes
	}
	return out, nil
}

// FetchLocationsData retrieves the enriched current snapshot (value plus
// device-status telemetry) for locationIDs.
func (c *Client) FetchLocationsData(ctx context.Context, locationIDs []int) ([]LocationDetails, error) {
	path := "/locations/data?location_ids=" + intListParam(locationIDs)
	var env Envelope[LocationDetails]
	if err := c.do(ctx, path, &env); err != nil {
		return nil, err
	}
	out := make([]LocationDetails, len(env.Data))
	for i, r := range env.Data {
		out[i] = r.Attributes
	}
	return out, nil
}

// FetchActiveAlarms retrieves every alarm currently open.
func (c *Client) FetchActiveAlarms(ctx context.Context) ([]ActiveAlarm, error) {
	var env Envelope[ActiveAlarm]
	if err := c.do(ctx, "/alarms/active", &env); err != nil {
		return nil, err
	}
	out := make([]ActiveAlarm, len(env.Data))
	for i, r := range env.Data {
		out[i] = r.Attributes
	}
	return out, nil
}

// FetchEvents retrieves one page of the event log beginning at from (the
// string form of an epoch second, or the "7d" sentinel), caller-driven
// pagination via page/size. It returns the page's events plus the
// envelope's reported total_record_count, leaving the pagination loop
// itself (when to stop) to the caller.
func (c *Client) FetchEvents(ctx context.Context, from string, page, size int) ([]Event, int, error) {
	path := fmt.Sprintf("/events?from=%s&page=%d&page_size=%d", from, page, size)
	var env Envelope[Event]
	if err := c.do(ctx, path, &env); err != nil {
		return nil, 0, err
	}
	out := make([]Event, len(env.Data))
	for i, r := range env.Data {
		out[i] = r.Attributes
	}
	total := 0
	if env.Meta != nil {
		total = env.Meta.TotalRecordCount
	}
	return out, total, nil
}
