package notification

import (
	"context"
	"sync"
)

// Sent is one message captured by a Recorder.
type Sent struct {
	Channel Channel
	To      string
	Subject string
	Body    string
}

// Recorder is an in-memory sender for tests. It serves both channels and
// fails every send while Fail is set.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Fail error
}

func (r *Recorder) SendEmail(_ context.Context, to, subject, body string) error {
	return r.record(Sent{Channel: ChannelEmail, To: to, Subject: subject, Body: body})
}

func (r *Recorder) SendSMS(_ context.Context, to, body string) error {
	return r.record(Sent{Channel: ChannelSMS, To: to, Body: body})
}

func (r *Recorder) record(s Sent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	r.sent = append(r.sent, s)
	return nil
}

// SetFail changes the failure returned by later sends.
func (r *Recorder) SetFail(err error) {
	r.mu.Lock()
	r.Fail = err
	r.mu.Unlock()
}

// Sent returns the delivered messages on channel, or on every channel when
// channel is empty.
func (r *Recorder) Sent(channel Channel) []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sent
	for _, s := range r.sent {
		if channel == "" || s.Channel == channel {
			out = append(out, s)
		}
	}
	return out
}
