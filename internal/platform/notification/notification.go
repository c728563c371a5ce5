// Package notification sends booking emails and SMS messages from templates
// and keeps a record of every attempt for the admin routes.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

var (
	ErrNotFound        = errors.New("notification not found")
	ErrNotRetryable    = errors.New("only failed notifications can be retried")
	ErrUnknownTemplate = errors.New("unknown template")
	ErrNoSender        = errors.New("no sender configured for channel")
)

// Notification is one outbound message and its delivery state.
type Notification struct {
	ID         string     `json:"id"`
	Channel    Channel    `json:"channel"`
	Recipient  string     `json:"recipient"`
	Subject    string     `json:"subject,omitempty"`
	Body       string     `json:"body"`
	TemplateID string     `json:"templateId,omitempty"`
	Status     Status     `json:"status"`
	Attempts   int        `json:"attempts"`
	CreatedAt  time.Time  `json:"createdAt"`
	SentAt     *time.Time `json:"sentAt,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Manager renders, sends and remembers notifications. The log is in memory
// and capped at maxKept entries, oldest dropped first.
type Manager struct {
	email     EmailSender
	sms       SMSSender
	templates *Templates
	now       func() time.Time

	mu      sync.RWMutex
	byID    map[string]*Notification
	order   []string
	maxKept int
}

const defaultMaxKept = 5000

func NewManager(email EmailSender, sms SMSSender, templates *Templates) *Manager {
	if templates == nil {
		templates = NewTemplates()
	}
	return &Manager{
		email:     email,
		sms:       sms,
		templates: templates,
		now:       func() time.Time { return time.Now().UTC() },
		byID:      make(map[string]*Notification),
		maxKept:   defaultMaxKept,
	}
}

// Notify renders templateID with data and sends it to recipient. The
// notification is recorded whether or not delivery succeeded.
func (m *Manager) Notify(ctx context.Context, templateID string, data any, recipient string) (*Notification, error) {
	channel, subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, err
	}
	n := &Notification{
		Channel:    channel,
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
	}
	return n, m.Send(ctx, n)
}

// Send delivers a prepared notification and records it.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = m.now()
	n.Status = StatusPending
	m.store(n)
	return m.deliver(ctx, n)
}

func (m *Manager) store(n *Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[n.ID] = n
	m.order = append(m.order, n.ID)
	if len(m.order) > m.maxKept {
		drop := len(m.order) - m.maxKept
		for _, id := range m.order[:drop] {
			delete(m.byID, id)
		}
		m.order = append([]string(nil), m.order[drop:]...)
	}
}

func (m *Manager) deliver(ctx context.Context, n *Notification) error {
	var err error
	switch n.Channel {
	case ChannelEmail:
		if m.email == nil {
			err = fmt.Errorf("%w: %s", ErrNoSender, n.Channel)
		} else {
			err = m.email.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
		}
	case ChannelSMS:
		if m.sms == nil {
			err = fmt.Errorf("%w: %s", ErrNoSender, n.Channel)
		} else {
			err = m.sms.SendSMS(ctx, n.Recipient, n.Body)
		}
	default:
		err = fmt.Errorf("%w: %q", ErrNoSender, n.Channel)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n.Attempts++
	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		return err
	}
	sentAt := m.now()
	n.Status = StatusSent
	n.Error = ""
	n.SentAt = &sentAt
	return nil
}

// Get returns a snapshot of the notification.
func (m *Manager) Get(_ context.Context, id string) (Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.byID[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	return *n, nil
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Recipient string
	Status    Status
	Limit     int
}

// List returns notifications newest first.
func (m *Manager) List(_ context.Context, f Filter) []Notification {
	m.mu.RLock()
	out := make([]Notification, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		n := m.byID[m.order[i]]
		if f.Recipient != "" && n.Recipient != f.Recipient {
			continue
		}
		if f.Status != "" && n.Status != f.Status {
			continue
		}
		out = append(out, *n)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	m.mu.RUnlock()
	return out
}

// Retry re-sends a failed notification.
func (m *Manager) Retry(ctx context.Context, id string) (Notification, error) {
	m.mu.RLock()
	n, ok := m.byID[id]
	var status Status
	if ok {
		status = n.Status
	}
	m.mu.RUnlock()
	if !ok {
		return Notification{}, ErrNotFound
	}
	if status != StatusFailed {
		return Notification{}, ErrNotRetryable
	}
	err := m.deliver(ctx, n)
	snap, _ := m.Get(ctx, id)
	return snap, err
}

// Stats counts notifications by status, then by channel.
type Stats struct {
	ByStatus  map[Status]int  `json:"byStatus"`
	ByChannel map[Channel]int `json:"byChannel"`
}

func (m *Manager) Stats(_ context.Context) Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{ByStatus: map[Status]int{}, ByChannel: map[Channel]int{}}
	for _, n := range m.byID {
		s.ByStatus[n.Status]++
		s.ByChannel[n.Channel]++
	}
	return s
}

// Handler exposes the notification log to operators.
type Handler struct {
	manager *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{manager: mgr}
}

// RegisterRoutes mounts the routes on g, which the caller restricts to
// admins.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.HandleList)
	g.GET("/notifications/stats", h.HandleStats)
	g.GET("/notifications/:id", h.HandleGet)
	g.POST("/notifications/:id/retry", h.HandleRetry)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotRetryable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusBadGateway, "delivery failed").SetInternal(err)
}

func (h *Handler) HandleGet(c echo.Context) error {
	n, err := h.manager.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, n)
}

// HandleList handles GET /notifications?recipient=&status=&limit=
func (h *Handler) HandleList(c echo.Context) error {
	f := Filter{
		Recipient: c.QueryParam("recipient"),
		Status:    Status(c.QueryParam("status")),
		Limit:     100,
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		f.Limit = n
	}
	return c.JSON(http.StatusOK, h.manager.List(c.Request().Context(), f))
}

// HandleRetry answers 502 when the retry itself fails, with the updated
// notification left in the log.
func (h *Handler) HandleRetry(c echo.Context) error {
	n, err := h.manager.Retry(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats(c.Request().Context()))
}
