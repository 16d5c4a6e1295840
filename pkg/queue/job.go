package queue

import (
	"context"
	"fmt"
)

// Job defines a queue job handler.
type Job interface {
	// Name returns the unique identifier of the job.
	Name() string

	// Type returns the type of message that the job handles.
	Type() string

	// Handle processes the job. Payload is either the value passed to Enqueue (in-memory queue)
	// or its JSON encoding (Redis queue); use ParsePayload to read it.
	Handle(ctx context.Context, payload interface{}) error
}

// runJob calls job.Handle and turns a panic into an error so one bad job cannot kill a worker.
func runJob(ctx context.Context, job Job, payload interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panic: %v", job.Name(), r)
		}
	}()
	return job.Handle(ctx, payload)
}
