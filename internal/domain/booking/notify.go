package booking

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/medbliss/medbliss/internal/platform/events"
	"github.com/medbliss/medbliss/internal/platform/notification"
)

// Notifier sends the confirmation and reminder messages for a booking.
type Notifier struct {
	mgr    *notification.Manager
	logger zerolog.Logger
}

func NewNotifier(mgr *notification.Manager, logger zerolog.Logger) *Notifier {
	return &Notifier{mgr: mgr, logger: logger.With().Str("component", "booking-notifier").Logger()}
}

// Subscribe sends a confirmation for every bookingConfirmed event, off the
// request path.
func (n *Notifier) Subscribe(bus *events.Bus) error {
	return bus.SubscribeAsync(events.BookingConfirmed, func(e events.Event) {
		rec, ok := e.Data.(Record)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := n.Confirmed(ctx, &rec); err != nil {
			n.logger.Warn().Err(err).Str("booking_id", rec.ID.String()).Msg("confirmation not delivered")
		}
	})
}

// Confirmed sends the confirmation email and SMS.
func (n *Notifier) Confirmed(ctx context.Context, rec *Record) error {
	return n.send(ctx, rec, notification.TemplateBookingConfirmed, notification.TemplateBookingConfirmedSMS)
}

// Remind sends the day-before reminder.
func (n *Notifier) Remind(ctx context.Context, rec *Record) error {
	return n.send(ctx, rec, notification.TemplateReminder, notification.TemplateReminderSMS)
}

func (n *Notifier) send(ctx context.Context, rec *Record, emailTpl, smsTpl string) error {
	data := messageData(rec)
	var errs []error
	if rec.Email != "" {
		if _, err := n.mgr.Notify(ctx, emailTpl, data, rec.Email); err != nil {
			errs = append(errs, err)
		}
	}
	if rec.Phone != "" {
		if _, err := n.mgr.Notify(ctx, smsTpl, data, rec.Phone); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func messageData(rec *Record) notification.BookingData {
	items := make([]string, 0, len(rec.PatientAssignments))
	for _, a := range rec.PatientAssignments {
		items = append(items, a.TestName+" ("+a.PatientName+")")
	}
	return notification.BookingData{
		PatientName:    rec.PatientName,
		Reference:      rec.Reference,
		Date:           rec.AppointmentDate,
		Time:           rec.AppointmentTime,
		Items:          items,
		Total:          rec.TotalAmount,
		HomeCollection: rec.HomeCollection,
		Phone:          rec.Phone,
		Instructions:   rec.SpecialInstructions,
	}
}
