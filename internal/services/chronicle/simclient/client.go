// Package simclient talks to the simulation service over HTTP and parses its
// responses into chronicle domain values at the boundary.
package simclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/statecraft/internal/platform/timeouts"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/calendar"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/fact"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/world"
)

const (
	tracerName = "github.com/louisbranch/statecraft/internal/services/chronicle/simclient"

	pathAdvance = "/api/turns/advance"
	pathZones   = "/api/zones"
	pathWorld   = "/api/world"

	maxResponseBytes = 16 << 20
)

// ErrMalformedResponse indicates a response body that could not be used at all.
var ErrMalformedResponse = errors.New("malformed simulation response")

// StatusError is a non-2xx response.
type StatusError struct {
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("simulation %s returned %d %s", e.Path, e.Status, http.StatusText(e.Status))
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Retries is the number of attempts for idempotent reads. Advances are
	// never retried.
	Retries      int
	RetryInitial time.Duration
	RetryMax     time.Duration
	HTTPClient   *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	base         *url.URL
	http         *http.Client
	retries      int
	retryInitial time.Duration
	retryMax     time.Duration
	tracer       trace.Tracer
}

// Turn is the parsed result of one advance.
type Turn struct {
	Date        calendar.Date
	World       world.World
	Zones       []world.Zone
	Events      []fact.RawEvent
	UnreadCount *int
	// Dropped counts zones and events discarded as malformed.
	Dropped int
}

// WorldState is the parsed current world.
type WorldState struct {
	Date  calendar.Date
	World world.World
}

// New validates cfg and builds a client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, errors.New("simulation base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse simulation base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("simulation base url %q must be http or https", raw)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = timeouts.SimulationRequest
		}
		client = newHTTPClient(timeout)
	}
	c := &Client{
		base:         base,
		http:         client,
		retries:      cfg.Retries,
		retryInitial: cfg.RetryInitial,
		retryMax:     cfg.RetryMax,
		tracer:       otel.Tracer(tracerName),
	}
	if c.retries <= 0 {
		c.retries = 1
	}
	if c.retryInitial <= 0 {
		c.retryInitial = 200 * time.Millisecond
	}
	if c.retryMax <= 0 {
		c.retryMax = 2 * time.Second
	}
	return c, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// AdvanceMonth asks the simulation to compute the next month. It is never
// retried: a repeated POST could advance twice.
func (c *Client) AdvanceMonth(ctx context.Context) (Turn, error) {
	var resp advanceResponse
	if err := c.do(ctx, http.MethodPost, pathAdvance, &resp); err != nil {
		return Turn{}, err
	}
	date, ok := parseDate(resp.CurrentDate)
	if !ok {
		return Turn{}, fmt.Errorf("%w: advance without a valid current_date", ErrMalformedResponse)
	}
	zones, droppedZones := parseZones(resp.Zones)
	events, droppedEvents := parseEvents(resp.Events)
	turn := Turn{
		Date:        date,
		World:       parseWorld(resp.World),
		Zones:       zones,
		Events:      events,
		UnreadCount: resp.UnreadEventCount,
		Dropped:     droppedZones + droppedEvents,
	}
	if turn.Dropped > 0 {
		log.Printf("simulation advance %s: dropped %d malformed zones and %d malformed events", date, droppedZones, droppedEvents)
	}
	return turn, nil
}

// Zones fetches the current zone list.
func (c *Client) Zones(ctx context.Context) ([]world.Zone, error) {
	var resp zonesResponse
	if err := c.get(ctx, pathZones, &resp); err != nil {
		return nil, err
	}
	zones, dropped := parseZones(resp.Zones)
	if dropped > 0 {
		log.Printf("simulation zones: dropped %d malformed zones", dropped)
	}
	return zones, nil
}

// WorldState fetches the current date and world.
func (c *Client) WorldState(ctx context.Context) (WorldState, error) {
	var resp worldResponse
	if err := c.get(ctx, pathWorld, &resp); err != nil {
		return WorldState{}, err
	}
	date, ok := parseDate(resp.CurrentDate)
	if !ok {
		return WorldState{}, fmt.Errorf("%w: world without a valid current_date", ErrMalformedResponse)
	}
	return WorldState{Date: date, World: parseWorld(resp.World)}, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return retry(ctx, c.retries, c.retryInitial, c.retryMax, func() error {
		return c.do(ctx, http.MethodGet, path, out)
	})
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	ctx, span := c.tracer.Start(ctx, "simulation "+method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	err := c.roundTrip(ctx, method, path, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "simulation request failed")
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, out any) error {
	endpoint := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build simulation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("simulation %s: %w", path, err)
	}
	defer resp.Body.Close()
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{Path: path, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedResponse, path, err)
	}
	return nil
}

// retry runs fn up to attempts times with exponential backoff, stopping early
// on errors a retry cannot fix.
func retry(ctx context.Context, attempts int, initial, maxDelay time.Duration, fn func() error) error {
	delay := initial
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
			delay = min(delay*2, maxDelay)
		}
		if err = fn(); err == nil || ctx.Err() != nil || !retryable(err) {
			return err
		}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, ErrMalformedResponse) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Status >= 500 || status.Status == http.StatusTooManyRequests
	}
	return true
}
