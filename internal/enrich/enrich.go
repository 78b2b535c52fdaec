// Package enrich recovers missing provider contact details through web
// search before a record is handed to the cleaning model. Searches are
// paced, cached by query text and fenced behind a circuit breaker;
// every recovered field is validated before it is allowed to touch the
// record.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clearcare/provider-cli/internal/cache"
	"github.com/clearcare/provider-cli/internal/extract"
	"github.com/clearcare/provider-cli/internal/model"
	"github.com/clearcare/provider-cli/internal/resilience"
)

const searchSystemPrompt = `You are a healthcare data researcher. Search for verified contact information about the medical provider in the query. Respond with ONLY a JSON object in exactly this shape, no prose:
{
  "found_info": {
    "phone": "",
    "email": "",
    "address": "",
    "website": "",
    "verified_source": ""
  },
  "confidence": "high|medium|low",
  "search_summary": ""
}
Leave any field you could not verify as an empty string. Prefer official clinic or hospital pages and established medical directories over aggregator listings.`

// Searcher is the slice of the search client the enricher needs.
type Searcher interface {
	Search(ctx context.Context, system, query string) (string, error)
}

// Result is what enrichment hands back to the caller. It never carries
// an error: a failed or empty search simply yields no fields.
type Result struct {
	// Fields maps record field names to validated recovered values.
	Fields map[string]string
	// Source is the verified source or website the values came from,
	// when the search reported one.
	Source string
	// Queried is the number of query slots consumed, cache hits included.
	Queried int
}

// Enricher runs the search-and-merge flow for one record at a time.
type Enricher struct {
	search     Searcher
	breaker    *resilience.CircuitBreaker
	cache      *cache.Memo[model.SearchResult]
	limiter    *rate.Limiter
	maxQueries int
	log        *zap.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithMaxQueries caps the number of search calls per record.
func WithMaxQueries(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.maxQueries = n
		}
	}
}

// WithCache supplies a shared query-result cache.
func WithCache(c *cache.Memo[model.SearchResult]) Option {
	return func(e *Enricher) { e.cache = c }
}

// WithLimiter overrides the search pacing limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(e *Enricher) { e.limiter = l }
}

// WithBreaker supplies a circuit breaker shared with other search users.
func WithBreaker(b *resilience.CircuitBreaker) Option {
	return func(e *Enricher) { e.breaker = b }
}

// New builds an Enricher around a search client. Defaults: 3 queries per
// record, one search per second, a 500-entry query cache and a breaker
// that opens after 5 consecutive failures.
func New(search Searcher, opts ...Option) *Enricher {
	e := &Enricher{
		search:     search,
		maxQueries: 3,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		log:        zap.L().Named("enrich"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = cache.New[model.SearchResult](500)
	}
	if e.breaker == nil {
		e.breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())
	}
	return e
}

// Enrich searches for the record's missing contact fields and returns
// whatever validated values it could recover. Queries stop early once
// phone, email and address are all filled. Enrich never fails; at worst
// the result is empty.
func (e *Enricher) Enrich(ctx context.Context, rec model.ProviderRecord) Result {
	res := Result{Fields: map[string]string{}}
	if !Needed(rec) {
		return res
	}

	var found model.FoundInfo
	for _, q := range buildQueries(rec) {
		if res.Queried >= e.maxQueries {
			break
		}
		if found.Phone != "" && found.Email != "" && found.Address != "" {
			break
		}

		sr := e.runQuery(ctx, q)
		res.Queried++
		mergeFound(&found, sr.FoundInfo)
		if res.Source == "" {
			if sr.FoundInfo.VerifiedSource != "" {
				res.Source = sr.FoundInfo.VerifiedSource
			} else if sr.FoundInfo.Website != "" {
				res.Source = sr.FoundInfo.Website
			}
		}
	}

	if !hasUsablePhone(rec) {
		if p, ok := FormatPhone(found.Phone); ok {
			res.Fields[model.FieldPhone] = p
		}
	}
	if !hasUsableEmail(rec) && ValidEmail(found.Email) {
		res.Fields[model.FieldEmail] = found.Email
	}
	if !hasUsableAddress(rec) && ValidAddress(found.Address) {
		res.Fields[model.FieldAddress] = strings.TrimSpace(found.Address)
	}
	return res
}

// runQuery executes one paced, cached, breaker-fenced search. Any error
// along the way degrades to an empty low-confidence result for this
// query alone.
func (e *Enricher) runQuery(ctx context.Context, query string) model.SearchResult {
	if hit, ok := e.cache.Get(query); ok {
		return hit
	}

	empty := model.SearchResult{Confidence: model.ConfidenceLow}
	if err := e.limiter.Wait(ctx); err != nil {
		return empty
	}

	sr, err := resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (model.SearchResult, error) {
		raw, err := e.search.Search(ctx, searchSystemPrompt, query)
		if err != nil {
			return model.SearchResult{}, err
		}
		return parseSearchResponse(raw)
	})
	if err != nil {
		e.log.Debug("search query failed",
			zap.String("query", query),
			zap.Error(err))
		sr = empty
	}

	e.cache.Put(query, sr)
	return sr
}

// buildQueries assembles search queries from most to least specific,
// skipping candidates whose inputs are missing.
func buildQueries(rec model.ProviderRecord) []string {
	name := strings.TrimSpace(rec.Get(model.FieldName))
	if name == "" {
		return nil
	}
	specialty := strings.TrimSpace(rec.Get(model.FieldSpecialty))
	city := strings.TrimSpace(rec.Get(model.FieldCity))
	address := strings.TrimSpace(rec.Get(model.FieldAddress))

	var qs []string
	if specialty != "" && city != "" {
		qs = append(qs, fmt.Sprintf("%s %s %s contact details phone email address", name, specialty, city))
	}
	if city != "" {
		qs = append(qs, fmt.Sprintf("%s clinic %s phone number email address", name, city))
	}
	qs = append(qs, fmt.Sprintf("%s doctor directory profile contact information", name))
	if specialty != "" {
		qs = append(qs, fmt.Sprintf("%s %s contact details", name, specialty))
	}
	if address != "" {
		qs = append(qs, fmt.Sprintf("%s %s full address and phone", name, address))
	}
	return qs
}

// searchWire is the raw JSON shape the search model is asked to return.
type searchWire struct {
	FoundInfo struct {
		Phone          string `json:"phone"`
		Email          string `json:"email"`
		Address        string `json:"address"`
		Website        string `json:"website"`
		VerifiedSource string `json:"verified_source"`
	} `json:"found_info"`
	Confidence    string `json:"confidence"`
	SearchSummary string `json:"search_summary"`
}

func parseSearchResponse(raw string) (model.SearchResult, error) {
	var w searchWire
	if err := extract.Into(raw, &w); err != nil {
		return model.SearchResult{}, err
	}

	conf := model.SearchConfidence(strings.ToLower(strings.TrimSpace(w.Confidence)))
	switch conf {
	case model.ConfidenceHigh, model.ConfidenceMedium, model.ConfidenceLow:
	default:
		conf = model.ConfidenceLow
	}
	return model.SearchResult{
		FoundInfo: model.FoundInfo{
			Phone:          strings.TrimSpace(w.FoundInfo.Phone),
			Email:          strings.TrimSpace(w.FoundInfo.Email),
			Address:        strings.TrimSpace(w.FoundInfo.Address),
			Website:        strings.TrimSpace(w.FoundInfo.Website),
			VerifiedSource: strings.TrimSpace(w.FoundInfo.VerifiedSource),
		},
		Confidence:    conf,
		SearchSummary: strings.TrimSpace(w.SearchSummary),
	}, nil
}

// mergeFound copies values from src into dst for fields dst has not
// filled yet. First answer wins; later queries never overwrite.
func mergeFound(dst *model.FoundInfo, src model.FoundInfo) {
	if dst.Phone == "" {
		dst.Phone = src.Phone
	}
	if dst.Email == "" {
		dst.Email = src.Email
	}
	if dst.Address == "" {
		dst.Address = src.Address
	}
	if dst.Website == "" {
		dst.Website = src.Website
	}
	if dst.VerifiedSource == "" {
		dst.VerifiedSource = src.VerifiedSource
	}
}
