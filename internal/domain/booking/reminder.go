package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Reminders is the scheduled job that notifies every booking whose
// appointment is tomorrow.
type Reminders struct {
	repo     Repository
	notifier *Notifier
	now      func() time.Time
	loc      *time.Location
	logger   zerolog.Logger
}

func NewReminders(repo Repository, notifier *Notifier, loc *time.Location, logger zerolog.Logger) *Reminders {
	if loc == nil {
		loc = time.UTC
	}
	return &Reminders{repo: repo, notifier: notifier, now: time.Now, loc: loc, logger: logger}
}

// Run sends the reminders and reports how many bookings were notified.
// Cancelled bookings are skipped. A failed send is logged and does not stop
// the run.
func (r *Reminders) Run(ctx context.Context) (int, error) {
	date := minDate(r.now(), r.loc).Format(dateLayout)
	recs, err := r.repo.ListByAppointmentDate(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("list bookings for %s: %w", date, err)
	}

	sent := 0
	for _, rec := range recs {
		if rec.Status == StatusCancelled {
			continue
		}
		if err := r.notifier.Remind(ctx, rec); err != nil {
			r.logger.Warn().Err(err).Str("booking_id", rec.ID.String()).Msg("reminder not delivered")
			continue
		}
		sent++
	}
	r.logger.Info().Str("date", date).Int("bookings", len(recs)).Int("sent", sent).Msg("appointment reminders sent")
	return sent, nil
}
