package background

import (
	"context"
	"log"
	"time"

	"userhub/internal/repositories"

	"github.com/go-co-op/gocron/v2"
)

// JobScheduler runs the periodic maintenance work: pruning stale token
// bookkeeping and logging a daily account summary.
type JobScheduler struct {
	scheduler gocron.Scheduler
	tokens    repositories.TokenStore
	users     repositories.UserRepository
}

func NewJobScheduler(tokens repositories.TokenStore, users repositories.UserRepository) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &JobScheduler{scheduler: scheduler, tokens: tokens, users: users}, nil
}

// Start registers the jobs and launches the scheduler.
func (j *JobScheduler) Start() error {
	// Token keys expire on their own; the per-user index sets need the
	// dead members swept out.
	_, err := j.scheduler.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(j.pruneTokenSets),
	)
	if err != nil {
		return err
	}

	_, err = j.scheduler.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(j.logAccountSummary),
	)
	if err != nil {
		return err
	}

	j.scheduler.Start()
	log.Println("Background job scheduler started")
	return nil
}

func (j *JobScheduler) Stop() error {
	return j.scheduler.Shutdown()
}

func (j *JobScheduler) pruneTokenSets() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pruned, err := j.tokens.PruneUserSets(ctx)
	if err != nil {
		log.Printf("Token set pruning failed: %v", err)
		return
	}
	if pruned > 0 {
		log.Printf("Pruned %d stale token entries", pruned)
	}
}

func (j *JobScheduler) logAccountSummary() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	now := time.Now()
	counts, err := j.users.Counts(ctx, now.AddDate(0, 0, -7), now.AddDate(0, 0, -30))
	if err != nil {
		log.Printf("Account summary failed: %v", err)
		return
	}
	log.Printf("Account summary: %d users total, %d admins, %d active in the last 30 days",
		counts.Total, counts.Admins, counts.Active)
}
