package notification

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// Template ids.
const (
	TemplateBookingConfirmed    = "booking-confirmed"
	TemplateBookingConfirmedSMS = "booking-confirmed-sms"
	TemplateReminder            = "appointment-reminder"
	TemplateReminderSMS         = "appointment-reminder-sms"
)

// BookingData is the data every built-in template renders.
type BookingData struct {
	PatientName    string
	Reference      string
	Date           string
	Time           string
	Items          []string
	Total          int64
	HomeCollection bool
	Phone          string
	Instructions   string
}

// Template is a message definition. Subject and Body are text/template
// sources; SMS templates have no subject.
type Template struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Channel Channel `json:"channel"`
	Subject string  `json:"subject,omitempty"`
	Body    string  `json:"body"`

	subject *template.Template
	body    *template.Template
}

var funcs = template.FuncMap{
	"join": strings.Join,
}

func (t *Template) parse() error {
	var err error
	if t.subject, err = template.New(t.ID + ".subject").Funcs(funcs).Option("missingkey=error").Parse(t.Subject); err != nil {
		return fmt.Errorf("parse %s subject: %w", t.ID, err)
	}
	if t.body, err = template.New(t.ID + ".body").Funcs(funcs).Option("missingkey=error").Parse(t.Body); err != nil {
		return fmt.Errorf("parse %s body: %w", t.ID, err)
	}
	return nil
}

var builtIn = []Template{
	{
		ID:      TemplateBookingConfirmed,
		Name:    "Booking confirmed",
		Channel: ChannelEmail,
		Subject: "Booking {{.Reference}} confirmed",
		Body: `Dear {{.PatientName}},

Your booking {{.Reference}} is confirmed for {{.Date}} at {{.Time}}.
Tests: {{join .Items ", "}}
Amount payable: Rs. {{.Total}}
Collection: {{if .HomeCollection}}Home collection{{else}}Visit to collection centre{{end}}
{{- with .Instructions}}
Instructions: {{.}}{{end}}

Our phlebotomist will contact you on {{.Phone}} before the visit.`,
	},
	{
		ID:      TemplateBookingConfirmedSMS,
		Name:    "Booking confirmed (SMS)",
		Channel: ChannelSMS,
		Body:    "MedBliss: booking {{.Reference}} confirmed for {{.Date}} {{.Time}}. Amount Rs. {{.Total}}.",
	},
	{
		ID:      TemplateReminder,
		Name:    "Appointment reminder",
		Channel: ChannelEmail,
		Subject: "Reminder: sample collection on {{.Date}}",
		Body: `Dear {{.PatientName}}, this is a reminder of your sample collection on {{.Date}} at {{.Time}} (booking {{.Reference}}).
Tests: {{join .Items ", "}}
{{- with .Instructions}}
Instructions: {{.}}{{end}}`,
	},
	{
		ID:      TemplateReminderSMS,
		Name:    "Appointment reminder (SMS)",
		Channel: ChannelSMS,
		Body:    "MedBliss reminder: sample collection {{.Date}} {{.Time}}, booking {{.Reference}}.",
	},
}

// Templates holds the parsed message templates.
type Templates struct {
	mu  sync.RWMutex
	set map[string]*Template
}

// NewTemplates returns the built-in booking templates.
func NewTemplates() *Templates {
	ts := &Templates{set: make(map[string]*Template, len(builtIn))}
	for _, t := range builtIn {
		if err := ts.Register(t); err != nil {
			panic(err)
		}
	}
	return ts
}

// Register parses t and adds or replaces it.
func (ts *Templates) Register(t Template) error {
	if err := t.parse(); err != nil {
		return err
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.set[t.ID] = &t
	return nil
}

func (ts *Templates) lookup(id string) (*Template, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.set[id]
	return t, ok
}

// Render executes the template with data.
func (ts *Templates) Render(id string, data any) (channel Channel, subject, body string, err error) {
	t, ok := ts.lookup(id)
	if !ok {
		return "", "", "", fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	var buf bytes.Buffer
	if err := t.subject.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render %s: %w", id, err)
	}
	subject = buf.String()
	buf.Reset()
	if err := t.body.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render %s: %w", id, err)
	}
	return t.Channel, subject, buf.String(), nil
}
