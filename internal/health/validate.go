package health

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

var (
	// ErrInvalidMetric marks metric payloads that fail range checks.
	ErrInvalidMetric = errors.New("invalid metric")
	// ErrInvalidPreference marks preference payloads that fail range checks.
	ErrInvalidPreference = errors.New("invalid preference")
	// ErrNoMetric is returned by operations that need at least one recorded metric.
	ErrNoMetric = errors.New("尚未记录健康数据，请先添加体测记录。")
)

// ValidationError reports a single rejected field. Message is safe to show to users.
type ValidationError struct {
	Kind    error
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Kind }

// bound is an open or closed numeric interval.
type bound struct {
	min, max         float64
	minOpen, maxOpen bool
}

func (b bound) contains(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if b.minOpen && v <= b.min || !b.minOpen && v < b.min {
		return false
	}
	if b.maxOpen && v >= b.max || !b.maxOpen && v > b.max {
		return false
	}
	return true
}

func (b bound) String() string {
	lo, hi := "[", "]"
	if b.minOpen {
		lo = "("
	}
	if b.maxOpen {
		hi = ")"
	}
	return fmt.Sprintf("%s%g, %g%s", lo, b.min, b.max, hi)
}

var (
	weightBound   = bound{min: 0, max: 500, minOpen: true, maxOpen: true}
	bodyFatBound  = bound{min: 2, max: 75}
	bmiBound      = bound{min: 10, max: 70, minOpen: true, maxOpen: true}
	muscleBound   = bound{min: 10, max: 80}
	waterBound    = bound{min: 20, max: 80}
	calorieBound  = bound{min: 600, max: 5000, minOpen: true, maxOpen: true}
	sleepBound    = bound{min: 4, max: 12}
	hydrateBound  = bound{min: 1, max: 6}
	maxNoteLen    = 200
	maxDietLen    = 80
	maxActivityLn = 40
)

// ValidateMetric checks ranges for a new metric. The body-fat plus muscle rule
// applies here only; change-log edits to an existing metric skip it.
func ValidateMetric(in MetricInput) error {
	checks := []struct {
		field string
		v     float64
		b     bound
	}{
		{"weight_kg", in.WeightKg, weightBound},
		{"body_fat_percent", in.BodyFatPercent, bodyFatBound},
		{"bmi", in.BMI, bmiBound},
		{"muscle_percent", in.MusclePercent, muscleBound},
		{"water_percent", in.WaterPercent, waterBound},
	}
	for _, c := range checks {
		if !c.b.contains(c.v) {
			return &ValidationError{Kind: ErrInvalidMetric, Field: c.field, Message: "must be within " + c.b.String()}
		}
	}
	if in.Note != nil && utf8.RuneCountInString(*in.Note) > maxNoteLen {
		return &ValidationError{Kind: ErrInvalidMetric, Field: "note", Message: fmt.Sprintf("must be at most %d characters", maxNoteLen)}
	}
	if in.BodyFatPercent+in.MusclePercent > 100 {
		return &ValidationError{Kind: ErrInvalidMetric, Message: "体脂率与肌肉率之和不能超过 100%。"}
	}
	return nil
}

// NormalizePreference validates in and returns a copy with floats rounded to one
// decimal and blank strings cleared.
func NormalizePreference(in PreferenceInput) (PreferenceInput, error) {
	out := in

	floats := []struct {
		field string
		v     **float64
		b     bound
	}{
		{"target_weight_kg", &out.TargetWeightKg, weightBound},
		{"sleep_goal_hours", &out.SleepGoalHours, sleepBound},
		{"hydration_goal_liters", &out.HydrationGoalLiters, hydrateBound},
	}
	for _, f := range floats {
		if *f.v == nil {
			continue
		}
		if !f.b.contains(**f.v) {
			return in, &ValidationError{Kind: ErrInvalidPreference, Field: f.field, Message: "must be within " + f.b.String()}
		}
		rounded := math.Round(**f.v*10) / 10
		*f.v = &rounded
	}

	if out.CalorieBudgetKcal != nil && !calorieBound.contains(float64(*out.CalorieBudgetKcal)) {
		return in, &ValidationError{Kind: ErrInvalidPreference, Field: "calorie_budget_kcal", Message: "must be within " + calorieBound.String()}
	}

	strs := []struct {
		field string
		v     **string
		max   int
	}{
		{"dietary_preference", &out.DietaryPreference, maxDietLen},
		{"activity_level", &out.ActivityLevel, maxActivityLn},
	}
	for _, s := range strs {
		if *s.v == nil {
			continue
		}
		trimmed := strings.TrimSpace(**s.v)
		if utf8.RuneCountInString(trimmed) > s.max {
			return in, &ValidationError{Kind: ErrInvalidPreference, Field: s.field, Message: fmt.Sprintf("must be at most %d characters", s.max)}
		}
		if trimmed == "" {
			*s.v = nil
			continue
		}
		*s.v = &trimmed
	}

	return out, nil
}
