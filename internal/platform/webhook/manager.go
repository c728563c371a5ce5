// Package webhook delivers signed booking events to registered HTTP
// endpoints, with retries and a delivery log.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/medbliss/medbliss/internal/platform/events"
)

// EventBookingConfirmed is the only event type sent today.
const EventBookingConfirmed = "booking.confirmed"

const (
	StatusActive = "active"
	StatusPaused = "paused"

	DeliverySuccess = "success"
	DeliveryFailed  = "failed"
	DeliveryPending = "pending"
)

// Endpoint is a registered webhook destination.
type Endpoint struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret,omitempty"`
	Events    []string  `json:"events"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Delivery is the log entry for one event sent to one endpoint. Retries
// update the same entry.
type Delivery struct {
	ID           string          `json:"id"`
	EndpointID   string          `json:"endpointId"`
	EventType    string          `json:"eventType"`
	EventID      string          `json:"eventId"`
	Payload      json.RawMessage `json:"payload"`
	StatusCode   int             `json:"statusCode"`
	ResponseBody string          `json:"responseBody,omitempty"`
	Duration     time.Duration   `json:"durationNs"`
	Attempts     int             `json:"attempts"`
	Status       string          `json:"status"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Event is the JSON body POSTed to endpoints.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Result summarises delivering an event to one endpoint.
type Result struct {
	EndpointID string `json:"endpointId"`
	DeliveryID string `json:"deliveryId"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error,omitempty"`
}

// SignPayload returns the hex HMAC-SHA256 of payload under secret.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a hex signature, with or without the "sha256="
// prefix sent in X-Webhook-Signature.
func VerifySignature(payload []byte, secret, signature string) bool {
	signature = strings.TrimPrefix(signature, "sha256=")
	return hmac.Equal([]byte(SignPayload(payload, secret)), []byte(signature))
}

type Option func(*Manager)

func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

// WithRetryDelays sets the waits between attempts. The number of delays is
// the number of retries.
func WithRetryDelays(d ...time.Duration) Option {
	return func(m *Manager) { m.retryDelays = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager registers endpoints and delivers events to them.
type Manager struct {
	store       Store
	client      *http.Client
	retryDelays []time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		client:      &http.Client{Timeout: 10 * time.Second},
		retryDelays: []time.Duration{time.Second, 30 * time.Second, 5 * time.Minute},
		logger:      zerolog.Nop(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}

// RegisterEndpoint stores a new active endpoint. An empty secret is replaced
// with a random one; no events means booking.confirmed only.
func (m *Manager) RegisterEndpoint(ctx context.Context, rawURL, secret string, eventTypes []string) (*Endpoint, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	if secret == "" {
		s, err := generateSecret()
		if err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		secret = s
	}
	if len(eventTypes) == 0 {
		eventTypes = []string{EventBookingConfirmed}
	}

	ep := &Endpoint{
		ID:        uuid.New().String(),
		URL:       rawURL,
		Secret:    secret,
		Events:    eventTypes,
		Status:    StatusActive,
		CreatedAt: m.now(),
	}
	if err := m.store.CreateEndpoint(ctx, ep); err != nil {
		return nil, err
	}
	return ep, nil
}

func (m *Manager) Endpoints(ctx context.Context) ([]*Endpoint, error) {
	return m.store.ListEndpoints(ctx)
}

func (m *Manager) Endpoint(ctx context.Context, id string) (*Endpoint, error) {
	return m.store.GetEndpoint(ctx, id)
}

func (m *Manager) DeleteEndpoint(ctx context.Context, id string) error {
	return m.store.DeleteEndpoint(ctx, id)
}

func (m *Manager) PauseEndpoint(ctx context.Context, id string) error {
	return m.setStatus(ctx, id, StatusPaused)
}

func (m *Manager) ResumeEndpoint(ctx context.Context, id string) error {
	return m.setStatus(ctx, id, StatusActive)
}

func (m *Manager) setStatus(ctx context.Context, id, status string) error {
	ep, err := m.store.GetEndpoint(ctx, id)
	if err != nil {
		return err
	}
	ep.Status = status
	return m.store.UpdateEndpoint(ctx, ep)
}

// eventMatches supports exact types, "*" and "booking.*" style prefixes.
func eventMatches(pattern, eventType string) bool {
	if pattern == eventType || pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(eventType, pattern[:len(pattern)-1])
	}
	return false
}

func (ep *Endpoint) wants(eventType string) bool {
	for _, p := range ep.Events {
		if eventMatches(p, eventType) {
			return true
		}
	}
	return false
}

// Deliver sends ev to every active endpoint subscribed to its type, one
// goroutine per endpoint. Failed deliveries are retried and logged; they are
// reported in the results, not as an error.
func (m *Manager) Deliver(ctx context.Context, ev Event) ([]Result, error) {
	endpoints, err := m.store.ListEndpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}

	var targets []*Endpoint
	for _, ep := range endpoints {
		if ep.Status == StatusActive && ep.wants(ev.Type) {
			targets = append(targets, ep)
		}
	}

	results := make([]Result, len(targets))
	var g errgroup.Group
	for i, ep := range targets {
		i, ep := i, ep
		g.Go(func() error {
			d := m.deliver(ctx, ep, ev, payload)
			results[i] = Result{
				EndpointID: ep.ID,
				DeliveryID: d.ID,
				Success:    d.Status == DeliverySuccess,
				StatusCode: d.StatusCode,
				Error:      d.Error,
			}
			return nil
		})
	}
	g.Wait()
	return results, nil
}

// deliver makes the first attempt and then one retry per configured delay,
// stopping early on success or when ctx is done.
func (m *Manager) deliver(ctx context.Context, ep *Endpoint, ev Event, payload []byte) *Delivery {
	now := m.now()
	d := &Delivery{
		ID:         uuid.New().String(),
		EndpointID: ep.ID,
		EventType:  ev.Type,
		EventID:    ev.ID,
		Payload:    payload,
		Status:     DeliveryPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	for attempt := 0; ; attempt++ {
		m.attempt(ctx, ep, d)
		if d.Status == DeliverySuccess || attempt >= len(m.retryDelays) {
			break
		}
		t := time.NewTimer(m.retryDelays[attempt])
		select {
		case <-ctx.Done():
			t.Stop()
			m.logger.Warn().Str("endpoint", ep.URL).Str("delivery_id", d.ID).Msg("webhook retries abandoned")
			return d
		case <-t.C:
		}
	}

	if d.Status != DeliverySuccess {
		m.logger.Warn().
			Str("endpoint", ep.URL).
			Str("delivery_id", d.ID).
			Int("attempts", d.Attempts).
			Str("error", d.Error).
			Msg("webhook delivery failed")
	}
	return d
}

// attempt POSTs the payload once and records the outcome on d.
func (m *Manager) attempt(ctx context.Context, ep *Endpoint, d *Delivery) {
	d.Attempts++
	defer func() {
		d.UpdatedAt = m.now()
		if err := m.store.RecordDelivery(ctx, d); err != nil {
			m.logger.Error().Err(err).Str("delivery_id", d.ID).Msg("record webhook delivery")
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(d.Payload))
	if err != nil {
		d.Status, d.Error = DeliveryFailed, err.Error()
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", "sha256="+SignPayload(d.Payload, ep.Secret))
	req.Header.Set("X-Webhook-ID", ep.ID)
	req.Header.Set("X-Webhook-Event", d.EventType)
	req.Header.Set("X-Webhook-Timestamp", m.now().UTC().Format(time.RFC3339))

	start := time.Now()
	resp, err := m.client.Do(req)
	d.Duration = time.Since(start)
	if err != nil {
		d.Status, d.Error, d.StatusCode = DeliveryFailed, err.Error(), 0
		return
	}
	defer resp.Body.Close()

	d.StatusCode = resp.StatusCode
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	d.ResponseBody = string(body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		d.Status, d.Error = DeliverySuccess, ""
		return
	}
	d.Status, d.Error = DeliveryFailed, fmt.Sprintf("non-2xx response: %d", resp.StatusCode)
}

// Retry makes one more attempt for a logged delivery.
func (m *Manager) Retry(ctx context.Context, deliveryID string) (*Delivery, error) {
	d, err := m.store.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	ep, err := m.store.GetEndpoint(ctx, d.EndpointID)
	if err != nil {
		return nil, err
	}
	m.attempt(ctx, ep, d)
	return d, nil
}

// TestEndpoint sends a single webhook.test event without retries.
func (m *Manager) TestEndpoint(ctx context.Context, id string) (*Delivery, error) {
	ep, err := m.store.GetEndpoint(ctx, id)
	if err != nil {
		return nil, err
	}
	ev := Event{
		ID:        uuid.New().String(),
		Type:      "webhook.test",
		Data:      json.RawMessage(`{"test":true}`),
		Timestamp: m.now(),
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	now := m.now()
	d := &Delivery{
		ID:         uuid.New().String(),
		EndpointID: ep.ID,
		EventType:  ev.Type,
		EventID:    ev.ID,
		Payload:    payload,
		CreatedAt:  now,
	}
	m.attempt(ctx, ep, d)
	return d, nil
}

func (m *Manager) Deliveries(ctx context.Context, endpointID string) ([]*Delivery, error) {
	return m.store.ListDeliveries(ctx, endpointID)
}

// Subscribe forwards every bookingConfirmed event as booking.confirmed.
// Retries stop when ctx is cancelled.
func (m *Manager) Subscribe(ctx context.Context, bus *events.Bus) error {
	return bus.SubscribeAsync(events.BookingConfirmed, func(e events.Event) {
		data, err := json.Marshal(e.Data)
		if err != nil {
			m.logger.Error().Err(err).Msg("encode webhook event")
			return
		}
		ev := Event{
			ID:        uuid.New().String(),
			Type:      EventBookingConfirmed,
			SessionID: e.SessionID,
			Data:      data,
			Timestamp: e.At,
		}
		if _, err := m.Deliver(ctx, ev); err != nil {
			m.logger.Error().Err(err).Str("event_id", ev.ID).Msg("webhook dispatch failed")
		}
	})
}
