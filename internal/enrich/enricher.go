// Package enrich attaches place details, tags and a category to
// destinations using the Places API and a generative tagger.
package enrich

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/internal/resilience"
	"github.com/sells-group/destination-cli/internal/store"
	"github.com/sells-group/destination-cli/pkg/anthropic"
	"github.com/sells-group/destination-cli/pkg/google"
)

// Result is the outcome of enriching one destination.
type Result struct {
	Record Record
	Cached bool
}

// Stats counts the paid calls an Enricher made.
type Stats struct {
	TextSearches int64
	Details      int64
	TagCalls     int64
	Usage        anthropic.TokenUsage
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithTagger enables tag generation. Without one only place details are
// fetched.
func WithTagger(t Tagger) Option {
	return func(e *Enricher) {
		e.tagger = t
	}
}

// WithCache stores successful records under the destination identity.
func WithCache(c *store.Typed[Record]) Option {
	return func(e *Enricher) {
		e.cache = c
	}
}

// Enricher combines place lookup and tagging into one Record per
// destination. It is safe for concurrent use.
type Enricher struct {
	places google.Client
	tagger Tagger
	cache  *store.Typed[Record]
	group  singleflight.Group

	textSearches atomic.Int64
	details      atomic.Int64
	tagCalls     atomic.Int64

	mu    sync.Mutex
	usage anthropic.TokenUsage
}

// NewEnricher creates an Enricher backed by places.
func NewEnricher(places google.Client, opts ...Option) *Enricher {
	e := &Enricher{places: places}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Stats returns a snapshot of call counters.
func (e *Enricher) Stats() Stats {
	e.mu.Lock()
	usage := e.usage
	e.mu.Unlock()
	return Stats{
		TextSearches: e.textSearches.Load(),
		Details:      e.details.Load(),
		TagCalls:     e.tagCalls.Load(),
		Usage:        usage,
	}
}

// Enrich returns the enrichment record for d. A cached record is returned
// without any network call. Quota and persistence errors are returned as
// is; other provider errors fail the item.
func (e *Enricher) Enrich(ctx context.Context, d model.Destination) (*Result, error) {
	key := d.Identity().Key()
	if rec, ok := e.lookup(ctx, key); ok {
		return &Result{Record: rec, Cached: true}, nil
	}

	v, err, _ := e.group.Do(key, func() (any, error) {
		if rec, ok := e.lookup(ctx, key); ok {
			return &Result{Record: rec, Cached: true}, nil
		}
		return e.enrich(ctx, d, key)
	})
	if err != nil {
		return nil, err
	}
	res := *v.(*Result)
	return &res, nil
}

func (e *Enricher) lookup(ctx context.Context, key string) (Record, bool) {
	if e.cache == nil {
		return Record{}, false
	}
	rec, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("enrich: cache read failed", zap.String("identity", key), zap.Error(err))
		return Record{}, false
	}
	return rec, ok && rec.Found()
}

func (e *Enricher) enrich(ctx context.Context, d model.Destination, key string) (*Result, error) {
	log := zap.L().With(zap.String("identity", key))

	rec, pending := e.pendingPlace(ctx, key)
	if pending {
		log.Debug("enrich: reusing place details", zap.String("place_id", rec.PlaceID))
	} else {
		var err error
		if rec, err = e.lookupPlace(ctx, d); err != nil {
			return nil, err
		}
	}

	typesCategory := CategoryFromTypes(rec.GoogleTypes)

	if e.tagger != nil {
		e.tagCalls.Add(1)
		tags, err := e.tagger.Tags(ctx, Facts{
			Name:             d.Name,
			City:             d.City,
			Category:         d.Category,
			Description:      firstNonEmpty(d.Description, d.Content),
			EditorialSummary: firstNonEmpty(rec.EditorialSummary, d.EditorialSummary),
			GoogleTypes:      rec.GoogleTypes,
			WantTagline:      d.Description == "" && d.Content == "",
		})
		if err != nil {
			e.keepPlace(ctx, key, rec)
			return nil, err
		}
		if tags == nil {
			tags = &Tags{}
		}
		rec.Tags = tags.Tags
		rec.SuggestedCategory = tags.SuggestedCategory
		rec.Tagline = tags.Tagline
		e.mu.Lock()
		e.usage.Add(tags.Usage)
		e.mu.Unlock()
	}

	rec.Category = ResolveCategory(typesCategory, rec.SuggestedCategory, d.Category)

	if rec.Found() && e.cache != nil {
		if err := e.cache.Put(ctx, key, rec); err != nil {
			return nil, resilience.NewPersistError("write enrich cache", err)
		}
	}

	log.Debug("enrich: resolved",
		zap.String("place_id", rec.PlaceID),
		zap.Int("tags", len(rec.Tags)),
		zap.String("category", rec.Category),
	)
	return &Result{Record: rec}, nil
}

// lookupPlace runs text search (unless d already has a place ID) and
// details. A destination with no match yields an empty Record.
func (e *Enricher) lookupPlace(ctx context.Context, d model.Destination) (Record, error) {
	var rec Record
	placeID := d.PlaceID
	if placeID == "" {
		e.textSearches.Add(1)
		resp, err := e.places.TextSearch(ctx, searchQuery(d))
		if err != nil {
			return Record{}, err
		}
		if len(resp.Places) == 0 {
			zap.L().Debug("enrich: no place match", zap.String("identity", d.Identity().Key()))
			return rec, nil
		}
		placeID = resp.Places[0].ID
		rec.fillFromPlace(&resp.Places[0])
	}

	e.details.Add(1)
	place, err := e.places.PlaceDetails(ctx, placeID)
	if err != nil {
		return Record{}, err
	}
	rec.fillFromPlace(place)
	if rec.PlaceID == "" {
		rec.PlaceID = placeID
	}
	return rec, nil
}

// placeKey holds the Places half of a record whose tagging was cut short.
func placeKey(key string) string {
	return key + model.IdentitySeparator + "places"
}

func (e *Enricher) pendingPlace(ctx context.Context, key string) (Record, bool) {
	if e.cache == nil {
		return Record{}, false
	}
	rec, ok, err := e.cache.Get(ctx, placeKey(key))
	if err != nil {
		zap.L().Warn("enrich: cache read failed", zap.String("identity", key), zap.Error(err))
		return Record{}, false
	}
	return rec, ok && rec.PlaceID != ""
}

// keepPlace caches paid place details before the tagger error unwinds the
// item, so the resumed run only repeats the tagging.
func (e *Enricher) keepPlace(ctx context.Context, key string, rec Record) {
	if e.cache == nil || rec.PlaceID == "" {
		return
	}
	rec.Tags, rec.SuggestedCategory, rec.Tagline = nil, "", ""
	if err := e.cache.Put(context.WithoutCancel(ctx), placeKey(key), rec); err != nil {
		zap.L().Warn("enrich: keep place details failed", zap.String("identity", key), zap.Error(err))
	}
}

func searchQuery(d model.Destination) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{d.Name, d.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
