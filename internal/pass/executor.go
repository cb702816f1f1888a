package pass

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/pagecraft/api/internal/chain"
	"github.com/pagecraft/api/internal/client"
	"github.com/pagecraft/api/internal/config"
	"github.com/pagecraft/api/internal/guard"
	"github.com/pagecraft/api/internal/markdown"
	"github.com/pagecraft/api/internal/model"
	"github.com/pagecraft/api/internal/store"
	"github.com/pagecraft/api/internal/tracker"
)

// RetryPolicy bounds validation retries and builds the corrective
// instruction appended to the re-prompt. One policy is shared by every
// executor instead of per-pass retry loops.
type RetryPolicy struct {
	MaxAttempts int
	Corrective  func(err error) string
}

func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Corrective: func(err error) string {
			return "Your previous attempt was rejected: " + err.Error() + ". Fix exactly that and try again."
		},
	}
}

// JobContext is the per-run state shared by a pass over all its sections.
type JobContext struct {
	JobID    string
	Brief    *model.Brief
	Sections []*model.Section // outline order, current accepted state
	Budget   Budget
	Tracker  *tracker.Tracker

	// Progress, when set, is called after every finished batch with the
	// cumulative number of sections processed this run and the number still
	// owed by the pass. Called from the batching goroutine only.
	Progress func(done, total int)
}

// Definition describes one pass. Provider-backed passes set BuildPrompt and
// Validate; local passes set Transform instead.
type Definition struct {
	ID         model.PassID
	BatchSize  int
	Sequential bool // carries a continuity digest section to section
	Protected  bool // run the preservation guard on the result

	// SelectAll picks the sections this pass processes, with per-key skip
	// reasons for the rest. Nil selects every section.
	SelectAll func(jc *JobContext) (map[string]bool, map[string]string)

	BuildPrompt func(sec *model.Section, jc *JobContext, digest model.ContinuityDigest, corrective []string) (system, user string)
	Validate    func(sec *model.Section, out string, jc *JobContext) error
	// Commit maps the raw completion onto the section's next content and may
	// update section attributes (the heading pass rewrites Heading). Nil
	// commits the completion as the body.
	Commit func(sec *model.Section, out string, jc *JobContext) string

	Transform func(sec *model.Section, jc *JobContext) (string, bool)
}

// Executor applies one pass definition to a job's sections in bounded
// batches. A validation failure in one section never aborts its siblings.
type Executor struct {
	gen     client.TextGenerator
	store   store.Store
	retry   RetryPolicy
	cfg     config.PipelineConfig
}

func NewExecutor(gen client.TextGenerator, st store.Store, retry RetryPolicy, cfg config.PipelineConfig) *Executor {
	return &Executor{gen: gen, store: st, retry: retry, cfg: cfg}
}

// Apply runs the pass over every selected section. It returns one result
// per processed section plus the number of sections the pass selected, so
// the caller can tell a no-op pass from a resumed one; a provider outage
// surfaces as an error after the current batch finishes so sibling sections
// keep their progress.
func (e *Executor) Apply(ctx context.Context, def *Definition, jc *JobContext) ([]model.PassResult, int, error) {
	selected := map[string]bool{}
	skipReasons := map[string]string{}
	if def.SelectAll != nil {
		selected, skipReasons = def.SelectAll(jc)
	} else {
		for _, sec := range jc.Sections {
			selected[sec.Key] = true
		}
	}

	var todo []*model.Section
	for _, sec := range jc.Sections {
		if !selected[sec.Key] {
			continue
		}
		// already processed on a previous (interrupted) run
		if sec.SnapshotFor(def.ID) != nil {
			continue
		}
		todo = append(todo, sec)
	}
	for key, reason := range skipReasons {
		log.Printf("Pass %s skips section %s: %s", def.ID, key, reason)
	}
	if len(todo) == 0 {
		return nil, len(selected), nil
	}

	batchSize := def.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	var results []model.PassResult
	var firstErr error
	processed := 0
	for start := 0; start < len(todo); start += batchSize {
		end := start + batchSize
		if end > len(todo) {
			end = len(todo)
		}
		batch := todo[start:end]

		batchResults := make([]*model.PassResult, len(batch))
		batchErrs := make([]error, len(batch))

		var wg sync.WaitGroup
		for i, sec := range batch {
			wg.Add(1)
			go func(i int, sec *model.Section) {
				defer wg.Done()
				digest := e.digestFor(def, jc, sec)
				res, err := e.applySection(ctx, def, jc, sec, digest)
				batchResults[i] = res
				batchErrs[i] = err
			}(i, sec)
		}
		wg.Wait()

		for i := range batch {
			if batchResults[i] != nil {
				results = append(results, *batchResults[i])
			}
			if batchErrs[i] != nil && firstErr == nil {
				firstErr = batchErrs[i]
			}
		}
		if firstErr != nil {
			return results, len(selected), firstErr
		}

		processed += len(batch)
		if jc.Progress != nil {
			jc.Progress(processed, len(todo))
		}
	}
	return results, len(selected), nil
}

// digestFor extracts continuity from the preceding section for
// order-dependent passes.
func (e *Executor) digestFor(def *Definition, jc *JobContext, sec *model.Section) model.ContinuityDigest {
	if !def.Sequential {
		return model.ContinuityDigest{}
	}
	var prev *model.Section
	for _, s := range jc.Sections {
		if s.Key == sec.Key {
			break
		}
		prev = s
	}
	if prev == nil || prev.Content == "" {
		return model.ContinuityDigest{}
	}
	return chain.ExtractForNext(prev.Content)
}

func (e *Executor) applySection(ctx context.Context, def *Definition, jc *JobContext, sec *model.Section, digest model.ContinuityDigest) (*model.PassResult, error) {
	if def.Transform != nil {
		return e.applyTransform(ctx, def, jc, sec)
	}

	result := &model.PassResult{SectionKey: sec.Key, Pass: def.ID}
	var corrective []string

	for result.Attempts < e.retry.MaxAttempts {
		result.Attempts++

		system, user := def.BuildPrompt(sec, jc, digest, corrective)
		out, err := e.gen.Generate(ctx, system, user)
		if err != nil {
			// outright provider failure after fallback: fatal for the pass,
			// already-updated siblings keep their progress
			return result, fmt.Errorf("section %s: %w", sec.Key, err)
		}
		out = strings.TrimSpace(out)

		if def.Validate != nil {
			if verr := def.Validate(sec, out, jc); verr != nil {
				result.Verdict = model.VerdictRetried
				corrective = append(corrective, e.retry.Corrective(verr))
				continue
			}
		}

		newContent := out
		if def.Commit != nil {
			newContent = def.Commit(sec, out, jc)
		}
		return e.accept(ctx, def, jc, sec, result, newContent)
	}

	// retries exhausted: keep the prior valid content
	result.Verdict = model.VerdictBlocked
	result.BlockReason = "validation retries exhausted"
	jc.Tracker.Log(def.ID, sec.Key, model.ChangeSectionBlocked, result.BlockReason)
	sec.Record(def.ID, sec.Content, sec.Counts, model.VerdictBlocked)
	if err := e.store.UpsertSection(ctx, sec); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Executor) applyTransform(ctx context.Context, def *Definition, jc *JobContext, sec *model.Section) (*model.PassResult, error) {
	result := &model.PassResult{SectionKey: sec.Key, Pass: def.ID, Attempts: 1}
	newContent, changed := def.Transform(sec, jc)
	if !changed {
		newContent = sec.Content
	}
	return e.accept(ctx, def, jc, sec, result, newContent)
}

// accept runs the preservation guard, then persists either the new content
// or, on a block, the retained prior content.
func (e *Executor) accept(ctx context.Context, def *Definition, jc *JobContext, sec *model.Section, result *model.PassResult, newContent string) (*model.PassResult, error) {
	counts := markdown.Census(newContent)

	if def.Protected {
		item := jc.Brief.OutlineItemFor(sec.Key)
		reqs := guard.Requirements{
			ListOverBudget:  jc.Budget.ListsOver(),
			TableOverBudget: jc.Budget.TablesOver(),
		}
		if item != nil {
			reqs.RequiredFormat = item.Format
		}
		v := guard.Check(sec.Counts, counts, len(sec.Content), len(newContent), reqs)
		if !v.Allow {
			result.Verdict = model.VerdictBlocked
			result.BlockReason = v.Reason
			jc.Tracker.Log(def.ID, sec.Key, model.ChangeStructureBlocked, v.Reason)
			sec.Record(def.ID, sec.Content, sec.Counts, model.VerdictBlocked)
			if err := e.store.UpsertSection(ctx, sec); err != nil {
				return result, err
			}
			return result, nil
		}
		for _, trim := range v.Trimmed {
			jc.Tracker.Log(def.ID, sec.Key, model.ChangeStructureTrimmed, trim)
		}
	}

	result.Verdict = model.VerdictAccepted
	result.Content = newContent
	sec.Record(def.ID, newContent, counts, model.VerdictAccepted)
	if err := e.store.UpsertSection(ctx, sec); err != nil {
		return result, err
	}
	return result, nil
}
