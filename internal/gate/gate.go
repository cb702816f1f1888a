// Package gate decides publishability of an assembled document: a local
// algorithmic sub-score blended with the external evaluator's compliance
// sub-score, minus a cross-document consistency penalty.
package gate

import (
	"context"
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/pagecraft/api/internal/cache"
	"github.com/pagecraft/api/internal/client"
	"github.com/pagecraft/api/internal/config"
	"github.com/pagecraft/api/internal/markdown"
	"github.com/pagecraft/api/internal/model"
)

const (
	algorithmicWeight = 0.6
	complianceWeight  = 0.4
)

type Gate struct {
	evaluator client.QualityEvaluator
	claims    *cache.TTLCache // sibling-document factual claims
	cfg       config.PipelineConfig
}

func New(evaluator client.QualityEvaluator, claims *cache.TTLCache, cfg config.PipelineConfig) *Gate {
	return &Gate{evaluator: evaluator, claims: claims, cfg: cfg}
}

// Evaluate scores the assembled document and classifies it against the
// configured thresholds. Computed once per job.
func (g *Gate) Evaluate(ctx context.Context, doc string, sections []*model.Section, brief *model.Brief) model.QualityVerdict {
	algo, findings := g.algorithmicScore(doc, sections, brief)

	compliance, evalFindings := g.complianceScore(ctx, doc, brief)
	findings = append(findings, evalFindings...)

	penalty, penaltyFindings := g.consistencyPenalty(doc, brief)
	findings = append(findings, penaltyFindings...)

	score := int(math.Round(algorithmicWeight*float64(algo) + complianceWeight*float64(compliance)))
	score -= penalty
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return model.QualityVerdict{
		Score:              score,
		Class:              g.Classify(score),
		AlgorithmicScore:   algo,
		ComplianceScore:    compliance,
		ConsistencyPenalty: penalty,
		Findings:           findings,
		ComputedAt:         time.Now(),
	}
}

// Classify maps a score to pass/warn/block. A score exactly at the block
// threshold still blocks.
func (g *Gate) Classify(score int) model.GateClass {
	switch {
	case score <= g.cfg.BlockThreshold:
		return model.GateBlock
	case score < g.cfg.PassThreshold:
		return model.GateWarn
	default:
		return model.GatePass
	}
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]\s`)

// algorithmicScore applies the local linguistic/structural heuristics.
func (g *Gate) algorithmicScore(doc string, sections []*model.Section, brief *model.Brief) (int, []model.Finding) {
	score := 100
	var findings []model.Finding

	for _, sec := range sections {
		if sec.Counts.Words < g.cfg.MinSectionWords {
			score -= 8
			findings = append(findings, model.Finding{
				Code:       "SECTION_THIN",
				Message:    fmt.Sprintf("section has %d words, floor is %d", sec.Counts.Words, g.cfg.MinSectionWords),
				SectionKey: sec.Key,
			})
		}
		if item := brief.OutlineItemFor(sec.Key); item != nil {
			if item.Format == model.FormatList && sec.Counts.Lists == 0 {
				score -= 6
				findings = append(findings, model.Finding{
					Code: "FORMAT_MISSING", Message: "brief requires a list", SectionKey: sec.Key,
				})
			}
			if item.Format == model.FormatTable && sec.Counts.Tables == 0 {
				score -= 6
				findings = append(findings, model.Finding{
					Code: "FORMAT_MISSING", Message: "brief requires a table", SectionKey: sec.Key,
				})
			}
		}
	}

	if !strings.Contains(beforeFirstSection(doc), " ") {
		score -= 10
		findings = append(findings, model.Finding{Code: "INTRO_MISSING", Message: "document opens without an introduction"})
	}

	if avg := avgSentenceWords(doc); avg > 30 {
		score -= 5
		findings = append(findings, model.Finding{
			Code: "SENTENCES_LONG", Message: fmt.Sprintf("average sentence length %.0f words", avg),
		})
	}

	if markdown.ImageAfterHeading(doc) {
		score -= 5
		findings = append(findings, model.Finding{Code: "IMAGE_PLACEMENT", Message: "image directly follows a heading"})
	}

	if score < 0 {
		score = 0
	}
	return score, findings
}

// beforeFirstSection returns the prose between the title and the first
// section heading.
func beforeFirstSection(doc string) string {
	idx := strings.Index(doc, "\n## ")
	if idx < 0 {
		return doc
	}
	head := doc[:idx]
	if nl := strings.Index(head, "\n"); nl >= 0 {
		return strings.TrimSpace(head[nl:])
	}
	return ""
}

func avgSentenceWords(doc string) float64 {
	sentences := sentenceSplitRe.Split(doc, -1)
	if len(sentences) == 0 {
		return 0
	}
	total := 0
	for _, s := range sentences {
		total += len(strings.Fields(s))
	}
	return float64(total) / float64(len(sentences))
}

// complianceScore asks the external evaluator, falling back to a local
// required-fact coverage estimate when the service is absent or down. An
// evaluator outage must not fail the job.
func (g *Gate) complianceScore(ctx context.Context, doc string, brief *model.Brief) (int, []model.Finding) {
	if g.evaluator != nil && g.evaluator.IsConfigured() {
		resp, err := g.evaluator.Evaluate(ctx, &client.EvaluateRequest{Document: doc, Brief: *brief})
		if err == nil {
			return resp.Score, resp.Findings
		}
		log.Printf("Quality evaluator unavailable, using local coverage estimate: %v", err)
	}
	return fallbackCompliance(doc, brief)
}

func fallbackCompliance(doc string, brief *model.Brief) (int, []model.Finding) {
	if len(brief.RequiredFacts) == 0 {
		return 100, nil
	}
	lower := strings.ToLower(doc)
	covered := 0
	var findings []model.Finding
	for _, fact := range brief.RequiredFacts {
		if factCovered(lower, fact.Statement) {
			covered++
		} else {
			findings = append(findings, model.Finding{
				Code: "FACT_MISSING", Message: "required fact not covered: " + fact.Statement, SectionKey: fact.SectionKey,
			})
		}
	}
	score := 60 + int(math.Round(40*float64(covered)/float64(len(brief.RequiredFacts))))
	return score, findings
}

// factCovered checks whether most of a fact's significant words appear in
// the document.
func factCovered(lowerDoc, statement string) bool {
	words := strings.Fields(strings.ToLower(statement))
	significant, hits := 0, 0
	for _, w := range words {
		w = strings.Trim(w, ".,;:'\"()")
		if len(w) < 4 {
			continue
		}
		significant++
		if strings.Contains(lowerDoc, w) {
			hits++
		}
	}
	if significant == 0 {
		return true
	}
	return hits*2 >= significant
}

var claimRe = regexp.MustCompile(`(?i)([A-Za-z][A-Za-z0-9 -]{2,40}?)\s+(?:is|are|was|were|costs?|takes?)\s+(\d[\d.,]*\s?%?\w*)`)

// consistencyPenalty compares factual claims against sibling documents of
// the same project, via the injected claims cache. Capped.
func (g *Gate) consistencyPenalty(doc string, brief *model.Brief) (int, []model.Finding) {
	if g.claims == nil {
		return 0, nil
	}
	penalty := 0
	var findings []model.Finding
	for _, m := range claimRe.FindAllStringSubmatch(doc, -1) {
		subject := normalizeClaim(m[1])
		value := strings.TrimSpace(m[2])
		key := "claim:" + brief.ProjectID + ":" + subject
		if prev, ok := g.claims.Get(key); ok {
			if prevVal, _ := prev.(string); prevVal != "" && prevVal != value {
				penalty += 2
				findings = append(findings, model.Finding{
					Code:    "CLAIM_CONFLICT",
					Message: fmt.Sprintf("%q stated as %q here but %q in a sibling document", subject, value, prevVal),
				})
			}
		}
		if penalty >= g.cfg.PenaltyCap {
			penalty = g.cfg.PenaltyCap
			break
		}
	}
	return penalty, findings
}

// RememberClaims records this document's claims for sibling comparisons.
func (g *Gate) RememberClaims(doc string, brief *model.Brief) {
	if g.claims == nil {
		return
	}
	for _, m := range claimRe.FindAllStringSubmatch(doc, -1) {
		subject := normalizeClaim(m[1])
		g.claims.Set("claim:"+brief.ProjectID+":"+subject, strings.TrimSpace(m[2]))
	}
}

func normalizeClaim(subject string) string {
	return strings.Join(strings.Fields(strings.ToLower(subject)), " ")
}
