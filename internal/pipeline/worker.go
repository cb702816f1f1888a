package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
)

// TaskTypeGeneration is the asynq task type for pipeline runs.
const TaskTypeGeneration = "generation:run"

// GenerationTaskPayload is the queued task body. The brief stays in the
// store; the task only carries the job identity.
type GenerationTaskPayload struct {
	JobID string `json:"jobId"`
}

// NewGenerationTask builds the queued task for a job.
func NewGenerationTask(jobID string) (*asynq.Task, error) {
	data, err := json.Marshal(GenerationTaskPayload{JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeGeneration, data), nil
}

// Worker processes generation tasks
type Worker struct {
	orchestrator *Orchestrator
}

// NewWorker creates a new generation worker
func NewWorker(orchestrator *Orchestrator) *Worker {
	return &Worker{orchestrator: orchestrator}
}

// ProcessTask runs the pipeline for a queued job. Requeues after a crash
// resume cleanly because the orchestrator skips finished passes.
func (w *Worker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload GenerationTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	log.Printf("Starting generation job: %s", payload.JobID)

	if err := w.orchestrator.Run(ctx, payload.JobID); err != nil {
		if errors.Is(err, ErrJobCanceled) {
			log.Printf("Generation job %s canceled", payload.JobID)
			return nil
		}
		// failJob already moved the job to failed; retrying would regenerate
		// against a terminal record, so the error is only surfaced for
		// transient infrastructure faults
		job, gerr := w.orchestrator.store.GetJob(ctx, payload.JobID)
		if gerr == nil && job.Terminal() {
			log.Printf("Generation job %s ended %s: %v", payload.JobID, job.Status, err)
			return nil
		}
		return err
	}

	log.Printf("Generation job %s finished", payload.JobID)
	return nil
}
