package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/pagecraft/api/internal/model"
	"github.com/pagecraft/api/internal/store"
)

func TestGenerationTaskPayloadRoundTrip(t *testing.T) {
	task, err := NewGenerationTask("job-42")
	if err != nil {
		t.Fatalf("NewGenerationTask: %v", err)
	}
	if task.Type() != TaskTypeGeneration {
		t.Errorf("type = %q", task.Type())
	}
	if string(task.Payload()) != `{"jobId":"job-42"}` {
		t.Errorf("payload = %s", task.Payload())
	}
}

func TestProcessTaskRunsJob(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	o := newTestOrchestrator(st, &hookedGen{}, testCfg(), nil)
	w := NewWorker(o)

	job, err := o.CreateJob(ctx, testBrief())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	task, _ := NewGenerationTask(job.ID)
	if err := w.ProcessTask(ctx, task); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}

	stored, _ := st.GetJob(ctx, job.ID)
	if stored.Status != model.JobStatusCompleted {
		t.Errorf("status = %s", stored.Status)
	}
}

func TestProcessTaskDoesNotRetryTerminalJobs(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	cfg := testCfg()
	cfg.BlockThreshold = 60
	o := newTestOrchestrator(st, &hookedGen{}, cfg, lowScoreEvaluator{})
	w := NewWorker(o)

	job, err := o.CreateJob(ctx, testBrief())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	task, _ := NewGenerationTask(job.ID)

	// the gate blocks and fails the job; asynq must not see an error, or it
	// would requeue a run against the failed record
	if err := w.ProcessTask(ctx, task); err != nil {
		t.Fatalf("ProcessTask returned %v for a terminal job", err)
	}
	stored, _ := st.GetJob(ctx, job.ID)
	if stored.Status != model.JobStatusFailed {
		t.Errorf("status = %s", stored.Status)
	}
}

func TestProcessTaskTreatsCancelAsSuccess(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	var jobID string
	gen := &hookedGen{}
	gen.hook = func(calls int, _, _ string) (string, bool) {
		if calls == 1 {
			job, err := st.GetJob(context.Background(), jobID)
			if err == nil {
				job.Status = model.JobStatusCanceled
				st.UpsertJob(context.Background(), job)
			}
		}
		return "", false
	}
	o := newTestOrchestrator(st, gen, testCfg(), nil)
	w := NewWorker(o)

	job, err := o.CreateJob(ctx, testBrief())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	jobID = job.ID
	task, _ := NewGenerationTask(jobID)

	if err := w.ProcessTask(ctx, task); err != nil {
		t.Fatalf("ProcessTask returned %v for a canceled job", err)
	}
}

func TestProcessTaskRejectsBadPayload(t *testing.T) {
	w := NewWorker(newTestOrchestrator(store.NewMemoryStore(), &hookedGen{}, testCfg(), nil))
	task := asynq.NewTask(TaskTypeGeneration, []byte("not json"))

	err := w.ProcessTask(context.Background(), task)
	if err == nil || !strings.Contains(err.Error(), "unmarshal") {
		t.Fatalf("err = %v", err)
	}
}
