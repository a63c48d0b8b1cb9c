package cron

import "context"

// Job is a unit of scheduled work. Run must be safe to invoke repeatedly and
// must honor ctx cancellation.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a worker executes each tick, in order.
type Registry struct {
	jobs []Job
}

func NewRegistry(jobs ...Job) *Registry {
	return &Registry{jobs: jobs}
}

func (r *Registry) Register(job Job) {
	r.jobs = append(r.jobs, job)
}

func (r *Registry) Jobs() []Job {
	return r.jobs
}
