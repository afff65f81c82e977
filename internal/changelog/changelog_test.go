package changelog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKnownAndUnknownFields(t *testing.T) {
	rule, ok := Lookup("body_fat_percent")
	require.True(t, ok)
	assert.Equal(t, FieldRule{Scope: ScopeMetric, Type: TypeFloat}, rule)

	rule, ok = Lookup("calorie_budget_kcal")
	require.True(t, ok)
	assert.Equal(t, FieldRule{Scope: ScopePreference, Type: TypeInt}, rule)

	_, ok = Lookup("bogus_field")
	assert.False(t, ok)

	assert.Len(t, Fields(), 12)
	assert.Equal(t, []string{"bmi", "body_fat_percent", "muscle_percent", "note", "water_percent", "weight_kg"}, FieldsInScope(ScopeMetric))
}

func TestCoerceNumeric(t *testing.T) {
	tests := []struct {
		name string
		typ  ValueType
		raw  string
		want Value
	}{
		{"percent ascii", TypeFloat, "70%", FloatValue(70)},
		{"percent full width", TypeFloat, "20％", FloatValue(20)},
		{"unit suffix", TypeFloat, " 2.8 L ", FloatValue(2.8)},
		{"rounded to two places", TypeFloat, "65.456kg", FloatValue(65.46)},
		{"exponent", TypeFloat, "1.5e1", FloatValue(15)},
		{"negative", TypeFloat, "-3.2", FloatValue(-3.2)},
		{"leading text", TypeFloat, "about 72 kg", FloatValue(72)},
		{"first number wins", TypeFloat, "from 70 to 68", FloatValue(70)},
		{"int plain", TypeInt, "2000 kcal", IntValue(2000)},
		{"int rounds half up", TypeInt, "1800.5", IntValue(1801)},
		{"int rounds half away from zero", TypeInt, "-2.5", IntValue(-3)},
		{"int rounds 2.5 up", TypeInt, "2.5", IntValue(3)},
		{"int rounds down", TypeInt, "1999.4", IntValue(1999)},
		{"int lower bound", TypeInt, "-9223372036854775808", IntValue(-9223372036854775808)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Coerce(tt.typ, tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceUnusable(t *testing.T) {
	for _, raw := range []string{"", "   ", "abc", "%", "很多"} {
		_, ok := Coerce(TypeFloat, raw)
		assert.False(t, ok, "float %q", raw)
		_, ok = Coerce(TypeInt, raw)
		assert.False(t, ok, "int %q", raw)
	}
}

func TestCoerceIntOutOfRange(t *testing.T) {
	for _, raw := range []string{"9223372036854775807", "9223372036854775808", "1e19", "-1e19"} {
		v, ok := Coerce(TypeInt, raw)
		assert.False(t, ok, "int %q coerced to %v", raw, v)
	}
	v, ok := Coerce(TypeInt, "9007199254740992")
	require.True(t, ok)
	assert.Equal(t, IntValue(9007199254740992), v)
}

func TestCoerceString(t *testing.T) {
	got, ok := Coerce(TypeString, "  高蛋白  ")
	require.True(t, ok)
	assert.Equal(t, StringValue("高蛋白"), got)

	got, ok = Coerce(TypeString, "   ")
	require.True(t, ok)
	assert.Equal(t, StringValue(""), got)
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "2.8", FloatValue(2.8).String())
	assert.Equal(t, "2000", IntValue(2000).String())
	assert.Equal(t, "moderate", StringValue("moderate").String())
	assert.Equal(t, int64(7), IntValue(7).Any())
}

func TestSanitizeKeepsWellFormedItems(t *testing.T) {
	reason := Text("用户主动调整饮水目标")
	raw := []RawItem{
		{Field: " hydration_goal_liters ", Value: " 2.8 L ", Reason: &reason},
		{Field: "target_weight_kg", Value: "65.5"},
	}

	got := Sanitize(raw)

	require.Len(t, got, 2)
	assert.Equal(t, "hydration_goal_liters", got[0].Field)
	assert.Equal(t, "2.8 L", got[0].Value)
	require.NotNil(t, got[0].Reason)
	assert.Equal(t, "用户主动调整饮水目标", *got[0].Reason)
	assert.Equal(t, "target_weight_kg", got[1].Field)
	assert.Nil(t, got[1].Reason)
}

func TestSanitizeDropsEmptyEntries(t *testing.T) {
	raw := []RawItem{
		{Field: "unknown_field", Value: "1"},
		{Field: "note", Value: " "},
		{Field: "", Value: "abc"},
		{Field: "  ", Value: "1"},
	}

	got := Sanitize(raw)

	// Unknown fields are the router's concern, not the sanitizer's.
	require.Len(t, got, 1)
	assert.Equal(t, "unknown_field", got[0].Field)
	for _, item := range got {
		assert.NotEmpty(t, item.Field)
		assert.NotEmpty(t, item.Value)
	}
}

func TestSanitizeNil(t *testing.T) {
	got := Sanitize(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRawItemDecodesLooseJSON(t *testing.T) {
	var raw []RawItem
	err := json.Unmarshal([]byte(`[
		{"field": "weight_kg", "value": 71.5},
		{"field": "note", "value": null},
		{"field": "activity_level", "value": "moderate", "reason": "用户说明"},
		{"field": "bmi", "value": [1, 2]},
		{"field": "calorie_budget_kcal", "value": true}
	]`), &raw)
	require.NoError(t, err)

	got := Sanitize(raw)
	require.Len(t, got, 3)
	assert.Equal(t, ChangeItem{Field: "weight_kg", Value: "71.5"}, got[0])
	assert.Equal(t, "moderate", got[1].Value)
	assert.Equal(t, "true", got[2].Value)
}

// fakeStore records every update and can reject metric updates.
type fakeStore struct {
	hasMetric   bool
	metric      FieldMap
	pref        FieldMap
	metricCalls int
	prefCalls   int
	prefErr     error
}

func newFakeStore(hasMetric bool) *fakeStore {
	return &fakeStore{hasMetric: hasMetric, metric: FieldMap{}, pref: FieldMap{}}
}

func (f *fakeStore) UpdateMetricFields(_ context.Context, _ int64, fields FieldMap) error {
	f.metricCalls++
	if !f.hasMetric {
		return ErrNoExistingRecord
	}
	for k, v := range fields {
		f.metric[k] = v
	}
	return nil
}

func (f *fakeStore) UpsertPreferenceFields(_ context.Context, _ int64, fields FieldMap) error {
	f.prefCalls++
	if f.prefErr != nil {
		return f.prefErr
	}
	for k, v := range fields {
		f.pref[k] = v
	}
	return nil
}

func newTestRouter(store RecordStore) *Router {
	return NewRouter(store, zerolog.Nop(), nil)
}

func TestApplyMetricChange(t *testing.T) {
	store := newFakeStore(true)
	router := newTestRouter(store)

	res, err := router.Apply(context.Background(), 1, []ChangeItem{{Field: "body_fat_percent", Value: "20%"}})
	require.NoError(t, err)

	assert.Equal(t, 1, store.metricCalls)
	assert.Equal(t, 0, store.prefCalls)
	assert.Equal(t, FloatValue(20), store.metric["body_fat_percent"])
	require.Len(t, res.Applied, 1)
	assert.Equal(t, ScopeMetric, res.Applied[0].Scope)
	assert.Equal(t, "20", res.Applied[0].Text)
}

func TestApplyPreferenceAndUnknownField(t *testing.T) {
	store := newFakeStore(true)
	router := newTestRouter(store)

	res, err := router.Apply(context.Background(), 1, []ChangeItem{
		{Field: "hydration_goal_liters", Value: "2.8 L"},
		{Field: "bogus_field", Value: "x"},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, store.metricCalls)
	assert.Equal(t, 1, store.prefCalls)
	assert.Equal(t, FieldMap{"hydration_goal_liters": FloatValue(2.8)}, store.pref)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, DropUnknownField, res.Dropped[0].Why)
}

func TestApplyOnlyInvalidItemsTouchesNothing(t *testing.T) {
	store := newFakeStore(true)
	router := newTestRouter(store)

	res, err := router.Apply(context.Background(), 1, []ChangeItem{
		{Field: "bogus_field", Value: "x"},
		{Field: "weight_kg", Value: "heavy"},
	})
	require.NoError(t, err)

	assert.Zero(t, store.metricCalls)
	assert.Zero(t, store.prefCalls)
	assert.Empty(t, res.Applied)
	require.Len(t, res.Dropped, 2)
	assert.Equal(t, DropUnusableValue, res.Dropped[1].Why)
}

func TestApplyNoExistingRecordStillAppliesPreference(t *testing.T) {
	store := newFakeStore(false)
	router := newTestRouter(store)

	res, err := router.Apply(context.Background(), 7, []ChangeItem{
		{Field: "weight_kg", Value: "70"},
		{Field: "sleep_goal_hours", Value: "8h"},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoExistingRecord))
	assert.Equal(t, 1, store.prefCalls)
	assert.Equal(t, FloatValue(8), store.pref["sleep_goal_hours"])
	require.Len(t, res.Applied, 1)
	assert.Equal(t, "sleep_goal_hours", res.Applied[0].Field)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, DropNoExistingRecord, res.Dropped[0].Why)
}

func TestApplyPreferenceFailureDoesNotMaskMetricSuccess(t *testing.T) {
	store := newFakeStore(true)
	store.prefErr = errors.New("disk full")
	router := newTestRouter(store)

	res, err := router.Apply(context.Background(), 1, []ChangeItem{
		{Field: "bmi", Value: "22.1"},
		{Field: "activity_level", Value: "high"},
	})

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoExistingRecord))
	require.Len(t, res.Applied, 1)
	assert.Equal(t, "bmi", res.Applied[0].Field)
}

func TestApplyRepeatedFieldLastValueWins(t *testing.T) {
	store := newFakeStore(true)
	router := newTestRouter(store)

	res, err := router.Apply(context.Background(), 1, []ChangeItem{
		{Field: "weight_kg", Value: "70"},
		{Field: "weight_kg", Value: "69.5"},
	})
	require.NoError(t, err)

	assert.Equal(t, FloatValue(69.5), store.metric["weight_kg"])
	require.Len(t, res.Applied, 1)
	assert.Equal(t, "69.5", res.Applied[0].Text)
}

func TestApplyIsIdempotent(t *testing.T) {
	store := newFakeStore(true)
	router := newTestRouter(store)
	batch := []ChangeItem{
		{Field: "weight_kg", Value: "70.123"},
		{Field: "calorie_budget_kcal", Value: "1800.5"},
		{Field: "dietary_preference", Value: "低碳水"},
	}

	_, err := router.Apply(context.Background(), 1, batch)
	require.NoError(t, err)
	firstMetric := cloneMap(store.metric)
	firstPref := cloneMap(store.pref)

	_, err = router.Apply(context.Background(), 1, batch)
	require.NoError(t, err)

	assert.Equal(t, firstMetric, store.metric)
	assert.Equal(t, firstPref, store.pref)
	assert.Equal(t, IntValue(1801), store.pref["calorie_budget_kcal"])
}

func cloneMap(m FieldMap) FieldMap {
	out := FieldMap{}
	for k, v := range m {
		out[k] = v
	}
	return out
}
