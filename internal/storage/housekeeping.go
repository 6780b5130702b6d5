package storage

import (
	"github.com/go-co-op/gocron/v2"

	"github.com/charleshuang3/medipair/internal/gormw"
)

// Invitations are retained indefinitely for audit, so there is nothing to
// delete; this job just surfaces the backlog so operators notice runaway
// invitation creation.
func RegisterInvitationReporter(scheduler gocron.Scheduler, db *gormw.DB) {
	_, _ = scheduler.NewJob(
		gocron.CronJob(
			// 4am Daily
			"0 4 * * *",
			false,
		),
		gocron.NewTask(
			func() {
				counts, err := CountInvitationsByStatus(db)
				if err != nil {
					logger.Error().Err(err).Msg("Failed to count invitations")
					return
				}
				ev := logger.Info()
				for status, n := range counts {
					ev = ev.Int64(status, n)
				}
				ev.Msg("invitation status counts")
			},
		),
	)
}
