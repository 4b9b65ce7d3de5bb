// Package remoteapi is a thin typed facade over ejabberd's HTTP admin API:
// user registration, MUC room management, roster entries, and XEP-0048
// bookmarks.
package remoteapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sa6mwa/ejreconcile/internal/loggingutil"
	"pkt.systems/pslog"
)

// ApiError is returned when a remote call responds with a non-200 status.
type ApiError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("remoteapi: %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

// family groups related endpoints under one circuit breaker so a
// misbehaving admin endpoint trips independently of the others.
type family string

const (
	familyUsers     family = "users"
	familyRooms     family = "rooms"
	familyRoster    family = "roster"
	familyBookmarks family = "bookmarks"
)

// Config configures a Client.
type Config struct {
	// AdminAPIURL is the base URL, e.g. "https://ejabberd.example.org/api".
	AdminAPIURL string
	// XMPPDomain is sent as the "host" field on the user-account and
	// room-creation calls; room-affiliation, room-destroy and room-options
	// calls send no host, and roster and bookmark calls take their host
	// or server from their own arguments.
	XMPPDomain string
	// MUCService is sent as the "service" field on room-related calls.
	MUCService string
	// HTTPClient overrides the underlying transport. Defaults to an
	// otelhttp-instrumented client with a 15s timeout.
	HTTPClient *http.Client
	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger pslog.Logger
}

// Client is a stateless facade over the ejabberd HTTP admin API.
type Client struct {
	baseURL    string
	domain     string
	mucService string
	http       *http.Client
	logger     pslog.Logger
	breakers   map[family]*gobreaker.CircuitBreaker[[]byte]
}

// New constructs a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.AdminAPIURL == "" {
		return nil, fmt.Errorf("remoteapi: admin api url required")
	}
	if cfg.XMPPDomain == "" {
		return nil, fmt.Errorf("remoteapi: xmpp domain required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.AdminAPIURL, "/"),
		domain:     cfg.XMPPDomain,
		mucService: cfg.MUCService,
		http:       httpClient,
		logger:     loggingutil.EnsureLogger(cfg.Logger).With("component", "remoteapi"),
		breakers:   make(map[family]*gobreaker.CircuitBreaker[[]byte]),
	}
	for _, f := range []family{familyUsers, familyRooms, familyRoster, familyBookmarks} {
		c.breakers[f] = newBreaker(string(f))
	}
	return c, nil
}

func newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.ConsecutiveFailures >= 5
		},
	})
}

// BreakerState reports the current state of the named endpoint family's
// circuit breaker, for diagnostics.
func (c *Client) BreakerState(f string) string {
	b, ok := c.breakers[family(f)]
	if !ok {
		return "unknown"
	}
	return b.State().String()
}

// call POSTs payload (JSON-encoded) to endpoint under the circuit breaker
// for fam, and returns the raw response body on a 200 status.
func (c *Client) call(ctx context.Context, fam family, endpoint string, payload any) ([]byte, error) {
	b, ok := c.breakers[fam]
	if !ok {
		b = newBreaker(string(fam))
		c.breakers[fam] = b
	}
	return b.Execute(func() ([]byte, error) {
		return c.post(ctx, endpoint, payload)
	})
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("remoteapi: encode %s payload: %w", endpoint, err)
	}
	url := c.baseURL + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remoteapi: build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("remoteapi.call.transport_error", "endpoint", endpoint, "error", err)
		return nil, fmt.Errorf("remoteapi: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remoteapi: %s: read response: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("remoteapi.call.non_200", "endpoint", endpoint, "status", resp.StatusCode)
		return nil, &ApiError{Endpoint: endpoint, Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
