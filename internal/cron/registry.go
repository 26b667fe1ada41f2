package cron

import "context"

// Job is one background sweep run by the cron worker. Run is expected to be
// safe to call again on the next cycle regardless of how the previous run
// ended.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a cron service drives each cycle.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry preloaded with the provided jobs. Nil entries
// are skipped.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job to the registry.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}
