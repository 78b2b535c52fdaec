// Package agent implements the record cleaning flow: optional search
// enrichment, a model call with retries, response parsing, and a
// deterministic rule fallback when the model path fails. Clean never
// returns an error; every record gets a result one way or the other.
package agent

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/clearcare/provider-cli/internal/cache"
	"github.com/clearcare/provider-cli/internal/enrich"
	"github.com/clearcare/provider-cli/internal/extract"
	"github.com/clearcare/provider-cli/internal/model"
	"github.com/clearcare/provider-cli/internal/resilience"
	"github.com/clearcare/provider-cli/pkg/anthropic"
)

const (
	defaultModel       = "claude-haiku-4-5-20251001"
	defaultMaxTokens   = 2048
	defaultTemperature = 0.2
)

// Enricher recovers missing contact fields before cleaning. Satisfied
// by *enrich.Enricher.
type Enricher interface {
	Enrich(ctx context.Context, rec model.ProviderRecord) enrich.Result
}

// Outcome is the full result of cleaning one record.
type Outcome struct {
	Result *model.CleaningResult
	// Fallback is true when the rule-based path produced the result.
	Fallback bool
	// Cached is true when the result was served from the memo cache
	// without any external calls. Cached results are shared; treat
	// Result as read-only.
	Cached bool
	// Err is the failure that forced the fallback path; nil on the
	// model path.
	Err   error
	Usage anthropic.TokenUsage
}

// Agent cleans provider records.
type Agent struct {
	client   anthropic.Client
	enricher Enricher
	cache    *cache.Memo[Outcome]
	retry    resilience.RetryConfig
	modelID  string
	system   []anthropic.SystemBlock
	log      *zap.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithEnricher enables search enrichment for incomplete records.
func WithEnricher(e Enricher) Option {
	return func(a *Agent) { a.enricher = e }
}

// WithCache supplies a shared result cache, letting callers size it or
// share it across agents.
func WithCache(c *cache.Memo[Outcome]) Option {
	return func(a *Agent) { a.cache = c }
}

// WithRetry overrides the model-call retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(a *Agent) { a.retry = cfg }
}

// WithModel selects the cleaning model.
func WithModel(id string) Option {
	return func(a *Agent) {
		if id != "" {
			a.modelID = id
		}
	}
}

// New builds an Agent. By default there is no enricher, results are
// memoized in a 1000-entry cache, and transient model errors are
// retried twice with a fixed 5s pause.
func New(client anthropic.Client, opts ...Option) *Agent {
	a := &Agent{
		client:  client,
		retry:   resilience.FixedRetryConfig(3, 5*time.Second),
		modelID: defaultModel,
		system:  anthropic.BuildCachedSystemBlocks(cleaningSystemPrompt),
		log:     zap.L().Named("agent"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cache == nil {
		a.cache = cache.New[Outcome](1000)
	}
	if a.retry.ShouldRetry == nil {
		a.retry.ShouldRetry = retryableModelError
	}
	return a
}

// CacheStats reports hit/miss counters for the result cache.
func (a *Agent) CacheStats() cache.Stats {
	return a.cache.Stats()
}

// retryableModelError treats API-level 408/429/5xx and network-level
// transport failures as worth retrying. Parse and schema failures never
// reach the retry loop.
func retryableModelError(err error) bool {
	return anthropic.IsRetryable(err) || resilience.IsTransient(err)
}

// Clean runs the full flow for one record: cache lookup, enrichment,
// model call, validation, and rule fallback. It always returns a
// usable Outcome.
func (a *Agent) Clean(ctx context.Context, rec model.ProviderRecord) Outcome {
	key := rec.CanonicalKey()
	if hit, ok := a.cache.Get(key); ok {
		hit.Cached = true
		return hit
	}

	work := rec.Clone()
	var enriched []string
	var source string
	if a.enricher != nil && enrich.Needed(rec) {
		res := a.enricher.Enrich(ctx, rec)
		source = res.Source
		for _, field := range []string{model.FieldPhone, model.FieldEmail, model.FieldAddress} {
			if v, ok := res.Fields[field]; ok && v != "" {
				work[field] = v
				enriched = append(enriched, field)
			}
		}
	}

	out := a.cleanWithModel(ctx, work, enriched, source)
	out.Result.EnrichedFields = enriched

	// A cancellation mid-flight says nothing about the record; do not
	// memoize the fallback it forced.
	if ctx.Err() == nil {
		a.cache.Put(key, out)
	}
	return out
}

// cleanWithModel calls the model and validates its answer, falling back
// to deterministic rules on any failure.
func (a *Agent) cleanWithModel(ctx context.Context, work model.ProviderRecord, enriched []string, source string) Outcome {
	prompt := BuildPrompt(work, enriched, source)
	temp := defaultTemperature

	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       a.modelID,
			MaxTokens:   defaultMaxTokens,
			System:      a.system,
			Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
			Temperature: &temp,
		})
	})
	if err != nil {
		a.log.Warn("model call failed, using rule fallback",
			zap.String("provider", work.Get(model.FieldName)),
			zap.Error(err))
		return Outcome{Result: FallbackClean(work, enriched, err), Fallback: true, Err: err}
	}

	resp.Usage.LogCost(a.modelID, "clean")

	result, err := parseModelAnswer(anthropic.Text(resp))
	if err != nil {
		a.log.Warn("model answer unusable, using rule fallback",
			zap.String("provider", work.Get(model.FieldName)),
			zap.Error(err))
		return Outcome{Result: FallbackClean(work, enriched, err), Fallback: true, Err: err, Usage: resp.Usage}
	}

	for _, field := range enriched {
		result.Issues = append(result.Issues, "Enhanced with online search: "+field)
	}
	if len(enriched) > 0 && source != "" {
		result.Issues = append(result.Issues, "Online data source: "+source)
	}
	return Outcome{Result: result, Usage: resp.Usage}
}

// parseModelAnswer extracts and validates the JSON object in the model's
// text answer.
func parseModelAnswer(text string) (*model.CleaningResult, error) {
	raw, err := extract.JSONObject(text)
	if err != nil {
		return nil, err
	}
	return ValidateResult(raw)
}

// DeadLetter describes a fallback outcome as a dead letter entry so a
// later run can retry the record.
func DeadLetter(rec model.ProviderRecord, out Outcome, now time.Time) *resilience.DLQEntry {
	cause := "model path unavailable"
	if out.Err != nil {
		cause = out.Err.Error()
	}

	stage := "model_call"
	if errors.Is(out.Err, extract.ErrNoJSONFound) || errors.Is(out.Err, extract.ErrParse) || errors.Is(out.Err, ErrSchema) {
		stage = "parse_response"
	}

	return &resilience.DLQEntry{
		Record:       rec,
		Error:        cause,
		ErrorType:    resilience.ClassifyError(out.Err),
		FailedStage:  stage,
		MaxRetries:   3,
		NextRetryAt:  now.Add(time.Hour),
		CreatedAt:    now,
		LastFailedAt: now,
	}
}
