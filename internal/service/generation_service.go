package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pagecraft/api/internal/model"
	"github.com/pagecraft/api/internal/pipeline"
	"github.com/pagecraft/api/internal/store"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotDone    = errors.New("job not completed")
	ErrResultBlocked = errors.New("document blocked by quality gate")
	ErrNotCancelable = errors.New("job already finished")
)

// GenerationService handles the generation job lifecycle
type GenerationService struct {
	store        store.Store
	orchestrator *pipeline.Orchestrator
	asynqClient  *asynq.Client
}

func NewGenerationService(st store.Store, orch *pipeline.Orchestrator, asynqClient *asynq.Client) *GenerationService {
	return &GenerationService{
		store:        st,
		orchestrator: orch,
		asynqClient:  asynqClient,
	}
}

// StartGeneration persists a queued job for the brief and enqueues the
// pipeline task.
func (s *GenerationService) StartGeneration(ctx context.Context, req *model.GenerationStartRequest) (*model.GenerationStartResponse, error) {
	job, err := s.orchestrator.CreateJob(ctx, &req.Brief)
	if err != nil {
		return nil, err
	}

	task, err := pipeline.NewGenerationTask(job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("generation"),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	log.Printf("Queued generation job %s for document %s", job.ID, req.Brief.DocumentID)
	return &model.GenerationStartResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	}, nil
}

// GetStatus returns job lifecycle state.
func (s *GenerationService) GetStatus(ctx context.Context, jobID string) (*model.GenerationStatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.GenerationStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		CurrentPass: job.CurrentPass,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// GetProgress returns the per-pass progress snapshot.
func (s *GenerationService) GetProgress(ctx context.Context, jobID string) (*model.ProgressSnapshot, error) {
	snap, err := s.orchestrator.Progress(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return snap, nil
}

// GetResult delivers the finished document. Blocked documents are withheld.
func (s *GenerationService) GetResult(ctx context.Context, jobID string) (*model.GenerationResultResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Verdict != nil && job.Verdict.Class == model.GateBlock {
		return nil, ErrResultBlocked
	}
	if job.Status != model.JobStatusCompleted || job.Result == nil {
		return nil, ErrJobNotDone
	}

	changeLog, err := s.store.GetChangeLog(ctx, jobID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load change log: %w", err)
	}

	resp := &model.GenerationResultResponse{
		JobID:     job.ID,
		Status:    job.Status,
		Result:    *job.Result,
		ChangeLog: changeLog,
	}
	if job.Verdict != nil {
		resp.Verdict = *job.Verdict
	}
	return resp, nil
}

// Cancel marks a running or queued job canceled. The pipeline honors the
// cancellation at the next pass boundary, so an in-flight pass finishes.
func (s *GenerationService) Cancel(ctx context.Context, jobID string) (*model.GenerationCancelResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Terminal() {
		return nil, ErrNotCancelable
	}

	job.Status = model.JobStatusCanceled
	now := time.Now()
	job.CompletedAt = &now
	if err := s.store.UpsertJob(ctx, job); err != nil {
		return nil, fmt.Errorf("persist cancellation: %w", err)
	}

	log.Printf("Generation job %s canceled", jobID)
	return &model.GenerationCancelResponse{
		Success: true,
		JobID:   jobID,
		Status:  model.JobStatusCanceled,
	}, nil
}

func (s *GenerationService) getJob(ctx context.Context, jobID string) (*model.GenerationJob, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}
