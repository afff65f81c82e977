package changelog

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/healthagent/internal/metrics"
)

// ErrNoExistingRecord is returned when a metric change targets a user who has never
// recorded a metric. It is user-correctable: record a metric first.
var ErrNoExistingRecord = errors.New("no existing metric record")

// FieldMap holds coerced values keyed by field name, all within a single scope.
type FieldMap map[string]Value

// RecordStore is the record-update capability the router needs. Each call must be
// applied atomically.
type RecordStore interface {
	// UpdateMetricFields partially updates the user's latest metric snapshot and
	// returns ErrNoExistingRecord when there is none.
	UpdateMetricFields(ctx context.Context, userID int64, fields FieldMap) error
	// UpsertPreferenceFields partially updates the user's preference snapshot,
	// creating it first if necessary.
	UpsertPreferenceFields(ctx context.Context, userID int64, fields FieldMap) error
}

// DropReason explains why a change item was not applied.
type DropReason string

const (
	DropUnknownField     DropReason = "unknown_field"
	DropUnusableValue    DropReason = "unusable_value"
	DropNoExistingRecord DropReason = "no_existing_record"
	DropStoreError       DropReason = "store_error"
)

// AppliedChange is one field written to the store.
type AppliedChange struct {
	Field  string  `json:"field"`
	Scope  Scope   `json:"scope"`
	Value  Value   `json:"-"`
	Text   string  `json:"value"`
	Reason *string `json:"reason,omitempty"`
}

// DroppedChange is one change item that was skipped.
type DroppedChange struct {
	Item ChangeItem `json:"item"`
	Why  DropReason `json:"why"`
}

// Result describes what Apply did with a batch.
type Result struct {
	Applied []AppliedChange `json:"applied"`
	Dropped []DroppedChange `json:"dropped"`
}

// plannedChange is a coerced item waiting for its scope update.
type plannedChange struct {
	item  ChangeItem
	rule  FieldRule
	value Value
}

// plan holds per-scope buckets. order keeps the first-seen order of fields so
// results are deterministic; the map keeps the last value for a repeated field.
type plan struct {
	metric      FieldMap
	metricOrder []string
	pref        FieldMap
	prefOrder   []string
	latest      map[string]plannedChange
	dropped     []DroppedChange
}

// Router validates sanitized change items against the field rule table and applies
// them to the record store, one atomic update per scope.
type Router struct {
	store   RecordStore
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewRouter creates a Router. m may be nil.
func NewRouter(store RecordStore, logger zerolog.Logger, m *metrics.Metrics) *Router {
	return &Router{
		store:   store,
		log:     logger.With().Str("component", "changelog").Logger(),
		metrics: m,
	}
}

// Apply routes the items to their scopes and updates the store. Unknown fields and
// unusable values are dropped with a warning. A metric failure does not prevent the
// preference update; the returned error joins the per-scope failures and matches
// ErrNoExistingRecord via errors.Is when the user has no metric yet.
func (r *Router) Apply(ctx context.Context, userID int64, items []ChangeItem) (*Result, error) {
	p := r.plan(userID, items)
	res := &Result{Dropped: p.dropped}

	var errs []error
	if len(p.metric) > 0 {
		if err := r.store.UpdateMetricFields(ctx, userID, p.metric); err != nil {
			why := DropStoreError
			if errors.Is(err, ErrNoExistingRecord) {
				why = DropNoExistingRecord
			}
			r.metrics.RecordUpdate(string(ScopeMetric), string(why))
			r.log.Warn().Err(err).Int64("user_id", userID).Strs("fields", p.metricOrder).Msg("metric update rejected")
			res.Dropped = append(res.Dropped, p.droppedAll(p.metricOrder, why)...)
			errs = append(errs, fmt.Errorf("updating metric fields: %w", err))
		} else {
			r.metrics.RecordUpdate(string(ScopeMetric), "ok")
			res.Applied = append(res.Applied, p.appliedAll(p.metricOrder)...)
		}
	}

	if len(p.pref) > 0 {
		if err := r.store.UpsertPreferenceFields(ctx, userID, p.pref); err != nil {
			r.metrics.RecordUpdate(string(ScopePreference), string(DropStoreError))
			r.log.Error().Err(err).Int64("user_id", userID).Strs("fields", p.prefOrder).Msg("preference update failed")
			res.Dropped = append(res.Dropped, p.droppedAll(p.prefOrder, DropStoreError)...)
			errs = append(errs, fmt.Errorf("updating preference fields: %w", err))
		} else {
			r.metrics.RecordUpdate(string(ScopePreference), "ok")
			res.Applied = append(res.Applied, p.appliedAll(p.prefOrder)...)
		}
	}

	for range res.Applied {
		r.metrics.RecordChangeItem("applied")
	}
	return res, errors.Join(errs...)
}

func (r *Router) plan(userID int64, items []ChangeItem) *plan {
	p := &plan{
		metric: FieldMap{},
		pref:   FieldMap{},
		latest: map[string]plannedChange{},
	}

	for _, item := range items {
		rule, ok := Lookup(item.Field)
		if !ok {
			r.log.Warn().Int64("user_id", userID).Str("field", item.Field).Msg("ignoring change item for unknown field")
			r.metrics.RecordChangeItem(string(DropUnknownField))
			p.dropped = append(p.dropped, DroppedChange{Item: item, Why: DropUnknownField})
			continue
		}

		value, ok := Coerce(rule.Type, item.Value)
		if !ok {
			r.log.Warn().Int64("user_id", userID).Str("field", item.Field).Str("value", item.Value).Msg("cannot parse change item value")
			r.metrics.RecordChangeItem(string(DropUnusableValue))
			p.dropped = append(p.dropped, DroppedChange{Item: item, Why: DropUnusableValue})
			continue
		}

		switch rule.Scope {
		case ScopeMetric:
			if _, seen := p.metric[item.Field]; !seen {
				p.metricOrder = append(p.metricOrder, item.Field)
			}
			p.metric[item.Field] = value
		case ScopePreference:
			if _, seen := p.pref[item.Field]; !seen {
				p.prefOrder = append(p.prefOrder, item.Field)
			}
			p.pref[item.Field] = value
		}
		p.latest[item.Field] = plannedChange{item: item, rule: rule, value: value}
	}
	return p
}

func (p *plan) appliedAll(fields []string) []AppliedChange {
	out := make([]AppliedChange, 0, len(fields))
	for _, f := range fields {
		pc := p.latest[f]
		out = append(out, AppliedChange{
			Field:  f,
			Scope:  pc.rule.Scope,
			Value:  pc.value,
			Text:   pc.value.String(),
			Reason: pc.item.Reason,
		})
	}
	return out
}

func (p *plan) droppedAll(fields []string, why DropReason) []DroppedChange {
	out := make([]DroppedChange, 0, len(fields))
	for _, f := range fields {
		out = append(out, DroppedChange{Item: p.latest[f].item, Why: why})
	}
	return out
}
