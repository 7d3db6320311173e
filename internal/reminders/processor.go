// Package reminders turns due calendar reminders into in-app notifications.
package reminders

import (
	"context"
	"errors"
	"time"

	"calnotify/internal/domain"
	"calnotify/internal/metrics"
	"calnotify/internal/models"
	"github.com/rs/zerolog"
)

// Publisher is told about every notification the processor creates.
type Publisher interface {
	Created(n *models.Notification)
}

// Failure is one reminder that could not be delivered in a run.
type Failure struct {
	ReminderID int64  `json:"reminderId"`
	Error      string `json:"error"`
}

// Result summarizes one processing run.
type Result struct {
	Processed int       `json:"processed"`
	Skipped   int       `json:"skipped"`
	Failed    []Failure `json:"failed"`
}

type Processor struct {
	repo      domain.ReminderRepository
	publisher Publisher
	now       func() time.Time
	logger    zerolog.Logger
}

func NewProcessor(repo domain.ReminderRepository, publisher Publisher, logger *zerolog.Logger) *Processor {
	return &Processor{
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.With().Str("component", "reminders").Logger(),
	}
}

// Process delivers every reminder whose window contains the current time.
// Reminders are handled in the order the store returns them; one failure
// does not stop the rest. A reminder claimed by a concurrent run is skipped.
func (p *Processor) Process(ctx context.Context) (*Result, error) {
	start := time.Now()
	defer func() { metrics.ObserveReminderRun(time.Since(start).Seconds()) }()

	now := p.now().UTC()
	due, err := p.repo.FindDueReminders(ctx, now)
	if err != nil {
		return nil, err
	}

	res := &Result{Failed: []Failure{}}
	for i := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		r := &due[i]
		n, err := p.repo.DeliverReminder(ctx, r, now)
		switch {
		case errors.Is(err, domain.ErrReminderAlreadySent):
			res.Skipped++
			metrics.IncReminder("skipped")
		case err != nil:
			p.logger.Error().Err(err).Int64("reminder_id", r.ID).Int64("user_id", r.UserID).Msg("Failed to deliver reminder")
			res.Failed = append(res.Failed, Failure{ReminderID: r.ID, Error: "delivery failed"})
			metrics.IncReminder("failed")
		default:
			res.Processed++
			metrics.IncReminder("sent")
			if p.publisher != nil {
				p.publisher.Created(n)
			}
		}
	}

	if len(due) > 0 {
		p.logger.Info().
			Int("due", len(due)).
			Int("processed", res.Processed).
			Int("skipped", res.Skipped).
			Int("failed", len(res.Failed)).
			Msg("Reminders processed")
	}
	return res, nil
}
