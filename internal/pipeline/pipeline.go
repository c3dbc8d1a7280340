// Package pipeline wires the classifier, extractor, composer and store/linker
// stages into the per-batch memory extraction flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tessaro/memopipe/internal/audit"
	"github.com/tessaro/memopipe/internal/classifier"
	"github.com/tessaro/memopipe/internal/composer"
	"github.com/tessaro/memopipe/internal/extractor"
	"github.com/tessaro/memopipe/internal/linker"
	"github.com/tessaro/memopipe/internal/metrics"
	"github.com/tessaro/memopipe/internal/models"
	"github.com/tessaro/memopipe/internal/store"
)

// Request is one utterance batch to process.
type Request struct {
	Utterances []models.Utterance
	Context    models.ConversationContext
	Source     string
	ContactID  string
}

// Result is what the ingestion layer sees: the memory was recorded (possibly
// queued or merged) — rejection surfaces as a *models.ValidationError from
// Process instead.
type Result struct {
	models.SaveResult
	Memory         models.Memory             `json:"memory"`
	Classification classifier.Classification `json:"classification"`
	Relations      []models.Relation         `json:"relations,omitempty"`
}

// Pipeline composes the four stages. Classification and extraction are pure
// and run without locks; the dedupe/link/save sequence holds the partition
// lock because it reads-then-writes the partition's recent-memory index.
type Pipeline struct {
	classifier *classifier.Service
	extractor  *extractor.Extractor
	composer   *composer.Composer
	saver      *store.Saver
	st         store.Store
	linker     *linker.Linker
	index      *linker.RecentIndex
	notifier   *audit.Notifier
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a pipeline. The index is the caller-supplied per-partition
// recent-memory handle; notifier may be nil when no audit consumer exists.
func New(
	cls *classifier.Service,
	ext *extractor.Extractor,
	comp *composer.Composer,
	saver *store.Saver,
	st store.Store,
	lnk *linker.Linker,
	index *linker.RecentIndex,
	notifier *audit.Notifier,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		classifier: cls,
		extractor:  ext,
		composer:   comp,
		saver:      saver,
		st:         st,
		linker:     lnk,
		index:      index,
		notifier:   notifier,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Process runs one utterance batch through classify, extract, compose,
// dedupe, save and link. Only two outcomes reach the caller: a Result
// (recorded, possibly queued/merged) or a *models.ValidationError.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Result, error) {
	if len(req.Utterances) == 0 {
		return nil, &models.ValidationError{Field: "utterances", Reason: "batch must not be empty"}
	}
	metrics.Inc(metrics.ProcessTotal)

	text := joinTexts(req.Utterances)
	cls := p.classifier.Classify(ctx, text, &req.Context)
	entities, actions := p.extractor.Extract(req.Utterances)

	mem, err := p.composer.Compose(req.Utterances, cls, entities, actions, req.Context,
		models.Provenance{Source: req.Source, ContactID: req.ContactID})
	if err != nil {
		return nil, &models.ValidationError{Field: "utterances", Reason: err.Error()}
	}

	unlock := p.lockPartition(mem.Category, req.ContactID)
	defer unlock()

	p.warmIndex(ctx, mem.Category, req.ContactID)

	recent := p.index.Recent(mem.Category, req.ContactID)
	merged, wasMerged := p.linker.Dedupe(mem, recent)
	if wasMerged {
		metrics.Inc(metrics.DedupeMerged)
	}

	saveResult, err := p.saver.Save(ctx, merged)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			return nil, verr
		}
		return nil, fmt.Errorf("pipeline: saving memory: %w", err)
	}
	metrics.Inc(metrics.StoreTotal)
	if saveResult.Queued {
		metrics.Inc(metrics.StoreQueued)
	}
	saveResult.Merged = wasMerged
	if wasMerged {
		saveResult.MergedID = merged.ID
	}

	var relations []models.Relation
	if saveResult.Stored {
		candidates := p.index.CandidateIDs(merged.Category, req.ContactID, merged.ID)
		relations, err = p.linker.Link(ctx, &merged, candidates)
		if err != nil {
			p.logger.Warn("pipeline: linking failed, memory stored without relations", "memory_id", merged.ID, "error", err)
		}
		if len(relations) > 0 {
			metrics.LinksCreated.Add(int64(len(relations)))
			// Same retry/queue policy as the initial save, so the forward
			// half of a relation is never lost to a transient failure.
			if res, err := p.saver.Save(ctx, merged); err != nil {
				p.logger.Warn("pipeline: persisting relations failed", "memory_id", merged.ID, "error", err)
			} else if res.Queued {
				p.logger.Warn("pipeline: relation update queued for replay", "memory_id", merged.ID)
			}
		}
	}

	p.index.Remember(merged)

	if p.notifier != nil {
		p.notifier.Publish(audit.Event{
			MemoryID:   merged.ID,
			Category:   merged.Category,
			Importance: merged.Importance,
			Merged:     wasMerged,
			Queued:     saveResult.Queued,
		})
	}

	return &Result{
		SaveResult:     saveResult,
		Memory:         merged,
		Classification: cls,
		Relations:      relations,
	}, nil
}

// lockPartition serializes writers per (category, contact) partition. The
// dedupe/link step reads-then-writes the partition's recent index and is not
// safe under unserialized concurrent mutation.
func (p *Pipeline) lockPartition(category models.Category, contactID string) func() {
	key := string(category) + "/" + contactID
	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	p.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// warmIndex seeds the partition index from the store on first touch so
// dedupe sees memories persisted by earlier runs of the host.
func (p *Pipeline) warmIndex(ctx context.Context, category models.Category, contactID string) {
	if len(p.index.Recent(category, contactID)) > 0 {
		return
	}
	memories, err := p.st.ReadPartition(ctx, category, contactID, false)
	if err != nil {
		p.logger.Warn("pipeline: warming partition index failed", "category", category, "contact_id", contactID, "error", err)
		return
	}
	if len(memories) > 0 {
		p.index.Warm(category, contactID, memories)
	}
}

func joinTexts(utterances []models.Utterance) string {
	parts := make([]string, 0, len(utterances))
	for i := range utterances {
		if t := strings.TrimSpace(utterances[i].Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
