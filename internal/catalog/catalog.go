// Package catalog resolves criteria and practices by id or by name for the
// assignment workflow, caching lookups in memory.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/evalgrid/postit/internal/assignment"
	"github.com/evalgrid/postit/internal/datastore/entities"
	"github.com/evalgrid/postit/internal/datastore/repository"
	"github.com/evalgrid/postit/internal/errors"
	"github.com/evalgrid/postit/internal/logger"
	"github.com/evalgrid/postit/internal/observability/metrics"
)

// DefaultTTL applies when New is given a non-positive ttl.
const DefaultTTL = 10 * time.Minute

var (
	// ErrUnknownCriterion is returned when no criterion matches.
	ErrUnknownCriterion = errors.NewStd("unknown criterion")
	// ErrUnknownPractice is returned when no practice matches.
	ErrUnknownPractice = errors.NewStd("unknown practice")
)

// Source is the part of the catalog repository the cache reads from.
type Source interface {
	GetCriterion(ctx context.Context, id uint) (*entities.Criterion, error)
	GetPractice(ctx context.Context, id uint) (*entities.Practice, error)
	ListCriteria(ctx context.Context) ([]*entities.Criterion, error)
	ListPractices(ctx context.Context) ([]*entities.Practice, error)
}

// Catalog caches criterion and practice candidates.
type Catalog struct {
	src     Source
	cache   *cache.Cache
	metrics metrics.Recorder
	log     logger.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithMetrics records cache hits and misses.
func WithMetrics(r metrics.Recorder) Option {
	return func(c *Catalog) {
		if r != nil {
			c.metrics = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Catalog) { c.log = l }
}

// New returns a catalog over src whose entries live for ttl.
func New(src Source, ttl time.Duration, opts ...Option) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Catalog{
		src:     src,
		cache:   cache.New(ttl, ttl*2),
		metrics: metrics.NewNoOpRecorder(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.NewSlogLogger(nil, logger.LogLevelError, nil)
	}
	c.log = c.log.Module("catalog")
	return c
}

func (c *Catalog) lookup(key string) (any, bool) {
	v, found := c.cache.Get(key)
	if found {
		c.metrics.RecordOperation(metrics.OpCacheGet, metrics.ResultHit)
	} else {
		c.metrics.RecordOperation(metrics.OpCacheGet, metrics.ResultMiss)
	}
	return v, found
}

// store caches v under key and publishes the cache size.
func (c *Catalog) store(key string, v any) {
	c.cache.Set(key, v, cache.DefaultExpiration)
	c.reportSize()
}

func (c *Catalog) reportSize() {
	if sr, ok := c.metrics.(metrics.CacheSizeRecorder); ok {
		sr.UpdateCacheSize(c.cache.ItemCount())
	}
}

func criterionCandidate(e *entities.Criterion) assignment.Candidate {
	cand := assignment.Candidate{ID: e.ID, Label: e.Name}
	if e.DomainID != nil {
		cand.DomainID = assignment.ID(*e.DomainID)
	}
	return cand
}

func practiceCandidate(e *entities.Practice) assignment.Candidate {
	return assignment.Candidate{ID: e.ID, Label: e.Name}
}

// Criterion returns the criterion with the given id.
func (c *Catalog) Criterion(ctx context.Context, id uint) (assignment.Candidate, error) {
	key := fmt.Sprintf("criterion:%d", id)
	if v, ok := c.lookup(key); ok {
		if cand, ok := v.(assignment.Candidate); ok {
			return cand, nil
		}
	}

	e, err := c.src.GetCriterion(ctx, id)
	if err != nil {
		return assignment.Candidate{}, c.sourceError(err, repository.ErrCriterionNotFound, ErrUnknownCriterion, "criterion_id", id)
	}
	cand := criterionCandidate(e)
	c.store(key, cand)
	return cand, nil
}

// Practice returns the practice with the given id.
func (c *Catalog) Practice(ctx context.Context, id uint) (assignment.Candidate, error) {
	key := fmt.Sprintf("practice:%d", id)
	if v, ok := c.lookup(key); ok {
		if cand, ok := v.(assignment.Candidate); ok {
			return cand, nil
		}
	}

	e, err := c.src.GetPractice(ctx, id)
	if err != nil {
		return assignment.Candidate{}, c.sourceError(err, repository.ErrPracticeNotFound, ErrUnknownPractice, "practice_id", id)
	}
	cand := practiceCandidate(e)
	c.store(key, cand)
	return cand, nil
}

// FindCriterion resolves a criterion by name, ignoring case and accents.
func (c *Catalog) FindCriterion(ctx context.Context, name string) (assignment.Candidate, error) {
	index, err := c.index(ctx, "criteria:index", func(ctx context.Context) ([]assignment.Candidate, error) {
		rows, err := c.src.ListCriteria(ctx)
		out := make([]assignment.Candidate, 0, len(rows))
		for _, e := range rows {
			out = append(out, criterionCandidate(e))
		}
		return out, err
	})
	if err != nil {
		return assignment.Candidate{}, err
	}
	cand, ok := index[Fold(name)]
	if !ok {
		return assignment.Candidate{}, c.notFound(ErrUnknownCriterion, "name", name)
	}
	return cand, nil
}

// FindPractice resolves a practice by name, ignoring case and accents.
func (c *Catalog) FindPractice(ctx context.Context, name string) (assignment.Candidate, error) {
	index, err := c.index(ctx, "practices:index", func(ctx context.Context) ([]assignment.Candidate, error) {
		rows, err := c.src.ListPractices(ctx)
		out := make([]assignment.Candidate, 0, len(rows))
		for _, e := range rows {
			out = append(out, practiceCandidate(e))
		}
		return out, err
	})
	if err != nil {
		return assignment.Candidate{}, err
	}
	cand, ok := index[Fold(name)]
	if !ok {
		return assignment.Candidate{}, c.notFound(ErrUnknownPractice, "name", name)
	}
	return cand, nil
}

// index returns the folded-name map stored under key, loading it on a miss.
// When two names fold alike the first one in list order wins.
func (c *Catalog) index(ctx context.Context, key string, load func(context.Context) ([]assignment.Candidate, error)) (map[string]assignment.Candidate, error) {
	if v, ok := c.lookup(key); ok {
		if index, ok := v.(map[string]assignment.Candidate); ok {
			return index, nil
		}
	}

	all, err := load(ctx)
	if err != nil {
		c.metrics.RecordError(metrics.OpCacheGet, string(errors.CategoryDatabase))
		return nil, errors.New(err).
			Component("catalog").
			Category(errors.CategoryDatabase).
			Context("operation", "load_"+key).
			Build()
	}

	index := make(map[string]assignment.Candidate, len(all))
	for _, cand := range all {
		k := Fold(cand.Label)
		if prev, dup := index[k]; dup {
			c.log.Warn("names fold to the same key",
				logger.String("kept", prev.Label),
				logger.String("ignored", cand.Label))
			continue
		}
		index[k] = cand
	}
	c.store(key, index)
	return index, nil
}

func (c *Catalog) sourceError(err, repoNotFound, sentinel error, key string, value any) error {
	if errors.Is(err, repoNotFound) {
		return c.notFound(sentinel, key, value)
	}
	c.metrics.RecordError(metrics.OpCacheGet, string(errors.CategoryDatabase))
	return errors.New(err).
		Component("catalog").
		Category(errors.CategoryDatabase).
		Context(key, value).
		Build()
}

func (c *Catalog) notFound(sentinel error, key string, value any) error {
	return errors.New(sentinel).
		Component("catalog").
		Category(errors.CategoryNotFound).
		Context(key, value).
		Build()
}

// Flush drops every cached entry.
func (c *Catalog) Flush() {
	c.cache.Flush()
	c.reportSize()
	c.log.Debug("catalog cache cleared")
}

// ItemCount returns the number of cached entries, expired ones included.
func (c *Catalog) ItemCount() int {
	return c.cache.ItemCount()
}
