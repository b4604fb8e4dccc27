package jobs

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"filmstrip/internal/config"
	"filmstrip/internal/logger"
)

// Job is one schedulable unit of work. Run returns nil for a successful run
// (including runs with skipped items) and an error only for job-level
// failures.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Runner drives jobs on their cron schedules in a fixed timezone, reports
// their outcomes and pings the per-job healthcheck URL after a successful
// run.
type Runner struct {
	cron         *cron.Cron
	jobs         map[string]Job
	healthchecks map[string]string
	log          *logger.Logger
	httpClient   *http.Client
}

func NewRunner(cfg config.JobsConfig, log *logger.Logger) (*Runner, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid jobs timezone %q: %w", cfg.Timezone, err)
	}

	return &Runner{
		cron:         cron.New(cron.WithLocation(loc)),
		jobs:         make(map[string]Job),
		healthchecks: cfg.Healthchecks,
		log:          log,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Register schedules a job. A schedule from config overrides the job's
// default.
func (r *Runner) Register(job Job, cfg config.JobsConfig) error {
	if spec, ok := cfg.Schedules[job.Name]; ok {
		job.Schedule = spec
	}

	if _, err := r.cron.AddFunc(job.Schedule, func() { r.runJob(job) }); err != nil {
		return fmt.Errorf("failed to schedule job %q: %w", job.Name, err)
	}
	r.jobs[job.Name] = job
	return nil
}

func (r *Runner) Start() {
	r.cron.Start()
	r.log.Info("Runner", "Start", fmt.Sprintf("Scheduled %d jobs", len(r.jobs)))
}

func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}

// RunNow executes a registered job outside its schedule, used for local
// development and bootstrapping.
func (r *Runner) RunNow(name string) error {
	job, ok := r.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return r.runJob(job)
}

func (r *Runner) runJob(job Job) error {
	r.log.Info("Runner", "runJob", fmt.Sprintf("Job %q started", job.Name))

	if err := job.Run(context.Background()); err != nil {
		r.log.Error("Runner", "runJob", fmt.Sprintf("Job %q failed: %v", job.Name, err))
		return err
	}

	r.log.Info("Runner", "runJob", fmt.Sprintf("Job %q finished successfully", job.Name))
	r.pingHealthcheck(job.Name)
	return nil
}

// pingHealthcheck notifies the external monitor that the job completed. It
// is best-effort: a missing URL is fine and a failed ping never fails the
// job.
func (r *Runner) pingHealthcheck(jobName string) {
	url, ok := r.healthchecks[jobName]
	if !ok || url == "" {
		return
	}

	go func() {
		resp, err := r.httpClient.Get(url)
		if err != nil {
			r.log.Warning("Runner", "pingHealthcheck",
				fmt.Sprintf("Healthcheck ping for %q failed: %v", jobName, err))
			return
		}
		resp.Body.Close()
	}()
}
