package health

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/healthagent/internal/changelog"
	"github.com/ziadkadry99/healthagent/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func sampleMetric() MetricInput {
	return MetricInput{
		WeightKg:       70,
		BodyFatPercent: 20,
		BMI:            22,
		MusclePercent:  40,
		WaterPercent:   55,
	}
}

func strPtr(s string) *string { return &s }
func floatPtr(f float64) *float64 { return &f }
func int64Ptr(i int64) *int64 { return &i }

func TestCreateAndLatestMetric(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	older := sampleMetric()
	older.RecordedAt = base
	newer := sampleMetric()
	newer.WeightKg = 69.5
	newer.RecordedAt = base.Add(24 * time.Hour)
	newer.Note = strPtr(" 早餐前 ")

	// Insert the newer one first so that ordering cannot rely on id.
	_, err := s.CreateMetric(ctx, 1, newer)
	require.NoError(t, err)
	_, err = s.CreateMetric(ctx, 1, older)
	require.NoError(t, err)

	latest, err := s.LatestMetric(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 69.5, latest.WeightKg)
	assert.True(t, latest.RecordedAt.Equal(newer.RecordedAt))
	require.NotNil(t, latest.Note)
	assert.Equal(t, "早餐前", *latest.Note)

	list, err := s.ListMetrics(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 69.5, list[0].WeightKg)

	none, err := s.LatestMetric(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestLatestMetricTieBreaksOnID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	first := sampleMetric()
	first.RecordedAt = at
	second := sampleMetric()
	second.RecordedAt = at
	second.WeightKg = 71

	_, err := s.CreateMetric(ctx, 1, first)
	require.NoError(t, err)
	_, err = s.CreateMetric(ctx, 1, second)
	require.NoError(t, err)

	latest, err := s.LatestMetric(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 71.0, latest.WeightKg)
}

func TestCreateMetricValidation(t *testing.T) {
	s := newTestStore(t)
	in := sampleMetric()
	in.BodyFatPercent = 50
	in.MusclePercent = 60

	_, err := s.CreateMetric(context.Background(), 1, in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidMetric))
	assert.Equal(t, "体脂率与肌肉率之和不能超过 100%。", err.Error())
}

func TestUpdateMetricFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpdateMetricFields(ctx, 1, changelog.FieldMap{"weight_kg": changelog.FloatValue(68)})
	assert.ErrorIs(t, err, changelog.ErrNoExistingRecord)

	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	old := sampleMetric()
	old.RecordedAt = at
	cur := sampleMetric()
	cur.RecordedAt = at.Add(time.Hour)
	_, err = s.CreateMetric(ctx, 1, old)
	require.NoError(t, err)
	_, err = s.CreateMetric(ctx, 1, cur)
	require.NoError(t, err)

	err = s.UpdateMetricFields(ctx, 1, changelog.FieldMap{
		"weight_kg": changelog.FloatValue(68.25),
		"note":      changelog.StringValue("AI 修改"),
	})
	require.NoError(t, err)

	list, err := s.ListMetrics(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 68.25, list[0].WeightKg)
	require.NotNil(t, list[0].Note)
	assert.Equal(t, "AI 修改", *list[0].Note)
	assert.Equal(t, 70.0, list[1].WeightKg, "older metric must be untouched")
}

func TestUpdateMetricFieldsRejectsForeignColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateMetric(ctx, 1, sampleMetric())
	require.NoError(t, err)

	err = s.UpdateMetricFields(ctx, 1, changelog.FieldMap{"target_weight_kg": changelog.FloatValue(60)})
	assert.Error(t, err)
	err = s.UpdateMetricFields(ctx, 1, changelog.FieldMap{"user_id": changelog.IntValue(2)})
	assert.Error(t, err)
}

func TestUpsertPreferenceFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.GetPreference(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, s.UpsertPreferenceFields(ctx, 1, changelog.FieldMap{
		"calorie_budget_kcal": changelog.IntValue(1800),
	}))
	require.NoError(t, s.UpsertPreferenceFields(ctx, 1, changelog.FieldMap{
		"activity_level": changelog.StringValue("moderate"),
	}))

	p, err = s.GetPreference(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NotNil(t, p.CalorieBudgetKcal)
	assert.Equal(t, int64(1800), *p.CalorieBudgetKcal)
	require.NotNil(t, p.ActivityLevel)
	assert.Equal(t, "moderate", *p.ActivityLevel)
	assert.Nil(t, p.TargetWeightKg)
}

func TestUpsertPreference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.UpsertPreference(ctx, 1, PreferenceInput{
		TargetWeightKg:    floatPtr(65.26),
		CalorieBudgetKcal: int64Ptr(2000),
		DietaryPreference: strPtr("  低碳水 "),
		SleepGoalHours:    floatPtr(7.56),
	})
	require.NoError(t, err)
	assert.Equal(t, 65.3, *p.TargetWeightKg)
	assert.Equal(t, 7.6, *p.SleepGoalHours)
	assert.Equal(t, "低碳水", *p.DietaryPreference)

	// Full replace clears omitted fields.
	p, err = s.UpsertPreference(ctx, 1, PreferenceInput{ActivityLevel: strPtr("high")})
	require.NoError(t, err)
	assert.Nil(t, p.TargetWeightKg)
	assert.Nil(t, p.CalorieBudgetKcal)
	assert.Equal(t, "high", *p.ActivityLevel)

	_, err = s.UpsertPreference(ctx, 1, PreferenceInput{CalorieBudgetKcal: int64Ptr(600)})
	assert.ErrorIs(t, err, ErrInvalidPreference)
}

func TestRecommendations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	none, err := s.LatestRecommendation(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = s.CreateRecommendation(ctx, 1, Suggestion{Summary: "first"})
	require.NoError(t, err)
	rec, err := s.CreateRecommendation(ctx, 1, Suggestion{Summary: "second", MealPlan: []string{"燕麦"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"燕麦"}, rec.MealPlan)
	assert.Equal(t, []string{}, rec.Hydration)

	latest, err := s.LatestRecommendation(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "second", latest.Summary)
}

func TestMessagesOldestFirstAndBounded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := s.AppendMessage(ctx, Message{
			UserID:    1,
			Role:      RoleUser,
			Content:   strings.Repeat("x", i+1),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	msgs, err := s.ListMessages(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "xxx", msgs[0].Content)
	assert.Equal(t, "xxxxx", msgs[2].Content)
	assert.Equal(t, []changelog.ChangeItem{}, msgs[0].ChangeLog)
}

func TestAppendExchange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	reason := "用户要求"
	out, err := s.AppendExchange(ctx,
		Message{UserID: 1, Role: RoleUser, Content: "我今天 68kg"},
		Message{UserID: 1, Role: RoleAssistant, Content: "已更新", NeedChange: true, ChangeLog: []changelog.ChangeItem{
			{Field: "weight_kg", Value: "68", Reason: &reason},
		}},
	)
	require.NoError(t, err)
	require.Len(t, out, 2)

	msgs, err := s.ListMessages(ctx, 1, 50)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.True(t, msgs[1].NeedChange)
	require.Len(t, msgs[1].ChangeLog, 1)
	assert.Equal(t, "weight_kg", msgs[1].ChangeLog[0].Field)
	assert.Equal(t, "用户要求", *msgs[1].ChangeLog[0].Reason)
}

func TestAppendExchangeRollsBackOnBadRole(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AppendExchange(ctx,
		Message{UserID: 1, Role: RoleUser, Content: "hi"},
		Message{UserID: 1, Role: "system", Content: "nope"},
	)
	require.Error(t, err)

	msgs, err := s.ListMessages(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestImportCSV(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := `weight_kg,body_fat_percent,bmi,muscle_percent,water_percent,recorded_at,note
70.2,20%,22.1,40,55,2026-05-01,晨起
abc,20,22,40,55,,
70,60,22,50,55,2026-05-02T07:00:00Z,
69.8,19.5,21.9,41,56,2026-05-03 07:00:00,
`
	res, err := s.ImportCSV(ctx, 1, strings.NewReader(data), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Errors, 2)
	var rowErr *RowError
	require.ErrorAs(t, res.Errors[0], &rowErr)
	assert.Equal(t, 3, rowErr.Line)

	latest, err := s.LatestMetric(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 69.8, latest.WeightKg)
}

func TestImportCSVMissingColumn(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ImportCSV(context.Background(), 1, strings.NewReader("weight_kg,bmi\n70,22\n"), nil)
	assert.ErrorContains(t, err, "body_fat_percent")
}
