// Package pipeline drives a generation job through its passes in order,
// checkpointing after every pass so an interrupted run resumes where it
// stopped instead of regenerating finished work.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/pagecraft/api/internal/client"
	"github.com/pagecraft/api/internal/config"
	"github.com/pagecraft/api/internal/gate"
	"github.com/pagecraft/api/internal/markdown"
	"github.com/pagecraft/api/internal/model"
	"github.com/pagecraft/api/internal/pass"
	"github.com/pagecraft/api/internal/store"
	"github.com/pagecraft/api/internal/tracker"
	"github.com/pagecraft/api/internal/websocket"
)

var (
	ErrEmptyBrief  = errors.New("brief has no outline sections")
	ErrJobCanceled = errors.New("job canceled")
)

const introSectionKey = "introduction"

// Broadcaster is the progress fan-out the orchestrator notifies. Satisfied
// by the websocket hub; nil-safe so workers can run without one.
type Broadcaster interface {
	BroadcastProgress(jobID string, pass model.PassID, passStatus model.PassStatus, done, total int, status model.JobStatus)
	BroadcastComplete(jobID string, verdict *model.QualityVerdict, result *model.DocumentResult)
	BroadcastError(jobID string, message string)
}

var _ Broadcaster = (*websocket.Hub)(nil)

// Orchestrator owns the pass sequence for generation jobs.
type Orchestrator struct {
	store    store.Store
	gen      client.TextGenerator
	gate     *gate.Gate
	storage  client.StorageClient
	hub      Broadcaster
	cfg      config.PipelineConfig
	defs     map[model.PassID]*pass.Definition
	executor *pass.Executor
	idgen    func() string
}

func NewOrchestrator(st store.Store, gen client.TextGenerator, g *gate.Gate, storage client.StorageClient, hub Broadcaster, cfg config.PipelineConfig, idgen func() string) *Orchestrator {
	return &Orchestrator{
		store:    st,
		gen:      gen,
		gate:     g,
		storage:  storage,
		hub:      hub,
		cfg:      cfg,
		defs:     pass.Definitions(cfg),
		executor: pass.NewExecutor(gen, st, pass.DefaultRetryPolicy(cfg.MaxRetries), cfg),
		idgen:    idgen,
	}
}

// CreateJob validates the brief, persists a queued job and seeds one empty
// section per outline item.
func (o *Orchestrator) CreateJob(ctx context.Context, brief *model.Brief) (*model.GenerationJob, error) {
	if len(brief.Outline) == 0 {
		return nil, ErrEmptyBrief
	}

	job := model.NewJob(o.idgen(), *brief)
	for i, item := range brief.Outline {
		sec := &model.Section{
			JobID:   job.ID,
			Key:     item.Key,
			Order:   i + 1,
			Heading: item.Heading,
		}
		if err := o.store.UpsertSection(ctx, sec); err != nil {
			return nil, fmt.Errorf("seed section %s: %w", item.Key, err)
		}
	}
	if err := o.store.UpsertJob(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}
	return job, nil
}

// Run executes every remaining pass of a job. Safe to call again after a
// crash or requeue: completed passes are skipped and completed sections
// within an interrupted pass are not regenerated.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Terminal() {
		log.Printf("Job %s already %s, nothing to run", jobID, job.Status)
		return nil
	}

	job.Status = model.JobStatusRunning
	if job.StartedAt == nil {
		now := time.Now()
		job.StartedAt = &now
	}
	if err := o.checkpoint(ctx, job); err != nil {
		return err
	}

	sections, err := o.store.ListSections(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load sections: %w", err)
	}

	tr := tracker.New(jobID)
	if prior, err := o.store.GetChangeLog(ctx, jobID); err == nil {
		tr.Restore(prior)
	}

	run := &jobRun{job: job, sections: sections, tracker: tr}

	for _, passID := range model.PassOrder {
		st := job.PassState(passID)
		if st.Done() {
			continue
		}
		if o.canceled(ctx, jobID) {
			job.Status = model.JobStatusCanceled
			o.checkpoint(ctx, job)
			return ErrJobCanceled
		}

		job.CurrentPass = passID
		if err := st.Start(); err != nil {
			return fmt.Errorf("pass %s: %w", passID, err)
		}
		st.SectionsTotal = len(run.sections)
		st.SectionsDone = 0
		if err := o.checkpoint(ctx, job); err != nil {
			return err
		}
		o.notifyProgress(job, passID, model.PassRunning)

		selected, err := o.runPass(ctx, run, passID)
		if err != nil {
			if errors.Is(err, errGateBlocked) {
				// the audit pass itself completed; the verdict sinks the job
				st.SectionsDone = st.SectionsTotal
				st.Complete()
				o.notifyProgress(job, passID, model.PassCompleted)
				return o.failJob(ctx, run, err.Error())
			}
			st.Fail(err.Error())
			o.checkpoint(ctx, job)
			o.notifyProgress(job, passID, model.PassFailed)
			return o.failJob(ctx, run, fmt.Sprintf("pass %s: %v", passID, err))
		}

		st.SectionsDone = st.SectionsTotal
		if selected == 0 {
			if err := st.Skip("no sections need this pass"); err != nil {
				return fmt.Errorf("pass %s: %w", passID, err)
			}
		} else if err := st.Complete(); err != nil {
			return fmt.Errorf("pass %s: %w", passID, err)
		}
		if err := o.checkpoint(ctx, job); err != nil {
			return err
		}
		o.notifyProgress(job, passID, st.Status)
	}

	return o.finalize(ctx, run)
}

// jobRun bundles the mutable state threaded through one Run invocation.
type jobRun struct {
	job      *model.GenerationJob
	sections []*model.Section
	tracker  *tracker.Tracker
	document string // assembled once after the body is stable
}

var errGateBlocked = errors.New("quality gate blocked the document")

// runPass executes one pass and reports how many sections it had work for;
// zero marks the pass skipped. The document-level stages always have work.
func (o *Orchestrator) runPass(ctx context.Context, run *jobRun, passID model.PassID) (int, error) {
	switch passID {
	case model.PassIntro:
		return 1, o.runIntro(ctx, run)
	case model.PassAudit:
		return 1, o.runAudit(ctx, run)
	case model.PassMetadata:
		return 1, o.runMetadata(ctx, run)
	}

	def, ok := o.defs[passID]
	if !ok {
		return 0, fmt.Errorf("no definition for pass %s", passID)
	}
	jc := &pass.JobContext{
		JobID:    run.job.ID,
		Brief:    &run.job.Brief,
		Sections: run.sections,
		Budget:   pass.ComputeBudget(run.sections, o.cfg),
		Tracker:  run.tracker,
		Progress: func(done, total int) {
			st := run.job.PassState(passID)
			st.SectionsDone = st.SectionsTotal - total + done
			o.persistProgress(ctx, run.job)
			o.notifyProgress(run.job, passID, model.PassRunning)
		},
	}
	_, selected, err := o.executor.Apply(ctx, def, jc)
	return selected, err
}

// runIntro writes the introduction against the finished body and registers
// it as an Order-0 section so later passes and assembly include it.
func (o *Orchestrator) runIntro(ctx context.Context, run *jobRun) error {
	for _, sec := range run.sections {
		if sec.Key == introSectionKey && sec.SnapshotFor(model.PassIntro) != nil {
			return nil
		}
	}

	headings := make([]string, 0, len(run.sections))
	for _, sec := range run.sections {
		headings = append(headings, sec.Heading)
	}

	system, user := pass.IntroPrompt(&run.job.Brief, headings)
	out, err := o.gen.Generate(ctx, system, user)
	if err != nil {
		return fmt.Errorf("introduction: %w", err)
	}
	out = strings.TrimSpace(out)

	intro := &model.Section{
		JobID:   run.job.ID,
		Key:     introSectionKey,
		Order:   0,
		Heading: run.job.Brief.Title,
	}
	intro.Record(model.PassIntro, out, markdown.Census(out), model.VerdictAccepted)
	if err := o.store.UpsertSection(ctx, intro); err != nil {
		return fmt.Errorf("persist introduction: %w", err)
	}

	run.sections = append([]*model.Section{intro}, run.sections...)
	run.job.SectionKeys = append([]string{introSectionKey}, run.job.SectionKeys...)
	return nil
}

// runAudit assembles the document and scores it. A block verdict is not a
// pass failure, it is a verdict on the document, so the pass completes and
// the job fails afterwards.
func (o *Orchestrator) runAudit(ctx context.Context, run *jobRun) error {
	run.document = o.assemble(run)
	verdict := o.gate.Evaluate(ctx, run.document, bodySections(run.sections), &run.job.Brief)
	run.job.Verdict = &verdict
	log.Printf("Job %s audit: score %d (%s), algo %d, compliance %d, penalty %d",
		run.job.ID, verdict.Score, verdict.Class, verdict.AlgorithmicScore, verdict.ComplianceScore, verdict.ConsistencyPenalty)

	if verdict.Class == model.GateBlock {
		return errGateBlocked
	}
	o.gate.RememberClaims(run.document, &run.job.Brief)
	return nil
}

// runMetadata synthesizes publication metadata; an unparseable completion
// degrades to a deterministic fallback rather than failing the job.
func (o *Orchestrator) runMetadata(ctx context.Context, run *jobRun) error {
	introContent := ""
	for _, sec := range run.sections {
		if sec.Key == introSectionKey {
			introContent = sec.Content
			break
		}
	}

	system, user := pass.MetadataPrompt(&run.job.Brief, introContent)
	out, err := o.gen.Generate(ctx, system, user)
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}

	meta := parseMeta(out)
	if meta == nil {
		log.Printf("Job %s: metadata completion not parseable, using fallback", run.job.ID)
		meta = fallbackMeta(&run.job.Brief)
	}

	run.job.Result = &model.DocumentResult{Meta: *meta}
	return nil
}

// parseMeta extracts the metadata JSON object from a completion that may
// wrap it in code fences or prose.
func parseMeta(out string) *model.DocumentMeta {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end <= start {
		return nil
	}
	var meta model.DocumentMeta
	if err := json.Unmarshal([]byte(out[start:end+1]), &meta); err != nil {
		return nil
	}
	if meta.MetaTitle == "" {
		return nil
	}
	return &meta
}

func fallbackMeta(brief *model.Brief) *model.DocumentMeta {
	return &model.DocumentMeta{
		MetaTitle:       brief.Title,
		MetaDescription: "An in-depth article about " + brief.Title + ".",
		Slug:            strings.ToLower(strings.Join(strings.Fields(brief.Title), "-")),
	}
}

// finalize flushes the change log, assembles the result and optionally
// exports the artifacts to object storage.
func (o *Orchestrator) finalize(ctx context.Context, run *jobRun) error {
	job := run.job
	if err := run.tracker.Finalize(ctx, o.store); err != nil {
		return fmt.Errorf("flush change log: %w", err)
	}

	if run.document == "" {
		run.document = o.assemble(run)
	}
	counts := markdown.Census(run.document)

	result := run.job.Result
	if result == nil {
		result = &model.DocumentResult{Meta: *fallbackMeta(&job.Brief)}
	}
	result.Document = run.document
	result.WordCount = counts.Words
	result.SectionCount = len(bodySections(run.sections))

	o.exportArtifacts(ctx, run, result)

	job.Result = result
	job.Status = model.JobStatusCompleted
	now := time.Now()
	job.CompletedAt = &now
	job.CurrentPass = ""
	if err := o.checkpoint(ctx, job); err != nil {
		return err
	}

	if o.hub != nil {
		o.hub.BroadcastComplete(job.ID, job.Verdict, job.Result)
	}
	log.Printf("Job %s completed: %d sections, %d words", job.ID, result.SectionCount, result.WordCount)
	return nil
}

// exportArtifacts uploads the document and change log when storage is
// configured. Export failures are logged, not fatal: the result is already
// durable in the store.
func (o *Orchestrator) exportArtifacts(ctx context.Context, run *jobRun, result *model.DocumentResult) {
	if o.storage == nil || !o.storage.IsConfigured() {
		return
	}

	docKey := fmt.Sprintf("documents/%s/%s.md", run.job.ID, result.Meta.Slug)
	url, err := o.storage.Upload(ctx, docKey, strings.NewReader(result.Document), "text/markdown")
	if err != nil {
		log.Printf("Job %s: document export failed: %v", run.job.ID, err)
	} else {
		result.ArtifactURL = url
	}

	logBytes, err := json.MarshalIndent(run.tracker.Entries(), "", "  ")
	if err != nil {
		return
	}
	logKey := fmt.Sprintf("documents/%s/changelog.json", run.job.ID)
	url, err = o.storage.Upload(ctx, logKey, strings.NewReader(string(logBytes)), "application/json")
	if err != nil {
		log.Printf("Job %s: change log export failed: %v", run.job.ID, err)
	} else {
		result.ChangeLogURL = url
	}
}

// assemble renders the document: title, introduction prose, then each body
// section under its heading, in outline order.
func (o *Orchestrator) assemble(run *jobRun) string {
	sorted := make([]*model.Section, len(run.sections))
	copy(sorted, run.sections)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	var b strings.Builder
	b.WriteString("# " + run.job.Brief.Title + "\n")
	for _, sec := range sorted {
		if sec.Content == "" {
			continue
		}
		if sec.Key == introSectionKey {
			b.WriteString("\n" + sec.Content + "\n")
			continue
		}
		b.WriteString("\n## " + sec.Heading + "\n\n" + sec.Content + "\n")
	}
	return b.String()
}

func bodySections(sections []*model.Section) []*model.Section {
	out := make([]*model.Section, 0, len(sections))
	for _, sec := range sections {
		if sec.Key == introSectionKey {
			continue
		}
		out = append(out, sec)
	}
	return out
}

// failJob moves the job to failed after preserving the change log.
func (o *Orchestrator) failJob(ctx context.Context, run *jobRun, reason string) error {
	if err := run.tracker.Finalize(ctx, o.store); err != nil {
		log.Printf("Job %s: change log flush on failure: %v", run.job.ID, err)
	}

	job := run.job
	job.Status = model.JobStatusFailed
	job.Error = &reason
	now := time.Now()
	job.CompletedAt = &now
	if err := o.checkpoint(ctx, job); err != nil {
		return err
	}
	if o.hub != nil {
		o.hub.BroadcastError(job.ID, reason)
	}
	return errors.New(reason)
}

// checkpoint persists the job, preserving a cancellation written by the API
// while a pass was in flight.
func (o *Orchestrator) checkpoint(ctx context.Context, job *model.GenerationJob) error {
	if o.canceled(ctx, job.ID) {
		job.Status = model.JobStatusCanceled
	}
	if err := o.store.UpsertJob(ctx, job); err != nil {
		return fmt.Errorf("persist job %s: %w", job.ID, err)
	}
	if job.Status == model.JobStatusCanceled {
		return ErrJobCanceled
	}
	return nil
}

// persistProgress saves mid-pass section counts. Unlike checkpoint it never
// overrides or acts on a cancellation: cancel takes effect at the pass
// boundary, and a cancel written by the API must not be clobbered here.
func (o *Orchestrator) persistProgress(ctx context.Context, job *model.GenerationJob) {
	if o.canceled(ctx, job.ID) {
		return
	}
	if err := o.store.UpsertJob(ctx, job); err != nil {
		log.Printf("Job %s: mid-pass progress save: %v", job.ID, err)
	}
}

func (o *Orchestrator) canceled(ctx context.Context, jobID string) bool {
	stored, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return false
	}
	return stored.Status == model.JobStatusCanceled
}

func (o *Orchestrator) notifyProgress(job *model.GenerationJob, passID model.PassID, status model.PassStatus) {
	if o.hub == nil {
		return
	}
	st := job.PassState(passID)
	o.hub.BroadcastProgress(job.ID, passID, status, st.SectionsDone, st.SectionsTotal, job.Status)
}

// Progress builds the fine-grained snapshot served over HTTP and used by
// the UI between websocket frames.
func (o *Orchestrator) Progress(ctx context.Context, jobID string) (*model.ProgressSnapshot, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	passes := make(map[model.PassID]model.PassStatus, len(model.PassOrder))
	for _, p := range model.PassOrder {
		passes[p] = job.PassState(p).Status
	}

	fraction := 0.0
	if job.CurrentPass != "" {
		st := job.PassState(job.CurrentPass)
		if st.SectionsTotal > 0 {
			fraction = float64(st.SectionsDone) / float64(st.SectionsTotal)
		}
	}
	if job.Status == model.JobStatusCompleted {
		fraction = 1
	}

	return &model.ProgressSnapshot{
		JobID:           job.ID,
		Status:          job.Status,
		CurrentPass:     job.CurrentPass,
		SectionFraction: fraction,
		Passes:          passes,
		Verdict:         job.Verdict,
	}, nil
}
