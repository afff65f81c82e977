package health

import (
	"time"

	"github.com/ziadkadry99/healthagent/internal/changelog"
)

// Metric is one body-composition measurement. The latest metric for a user is
// the one with the greatest RecordedAt, ties broken by the greatest ID.
type Metric struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	WeightKg       float64   `json:"weight_kg"`
	BodyFatPercent float64   `json:"body_fat_percent"`
	BMI            float64   `json:"bmi"`
	MusclePercent  float64   `json:"muscle_percent"`
	WaterPercent   float64   `json:"water_percent"`
	RecordedAt     time.Time `json:"recorded_at"`
	Note           *string   `json:"note"`
}

// MetricInput is the payload for recording a new metric. A zero RecordedAt means now.
type MetricInput struct {
	WeightKg       float64   `json:"weight_kg"`
	BodyFatPercent float64   `json:"body_fat_percent"`
	BMI            float64   `json:"bmi"`
	MusclePercent  float64   `json:"muscle_percent"`
	WaterPercent   float64   `json:"water_percent"`
	RecordedAt     time.Time `json:"recorded_at"`
	Note           *string   `json:"note"`
}

// Preference holds a user's health goals. Every field is optional; at most one
// row exists per user and it is created lazily on first write.
type Preference struct {
	UserID              int64     `json:"user_id"`
	TargetWeightKg      *float64  `json:"target_weight_kg"`
	CalorieBudgetKcal   *int64    `json:"calorie_budget_kcal"`
	DietaryPreference   *string   `json:"dietary_preference"`
	ActivityLevel       *string   `json:"activity_level"`
	SleepGoalHours      *float64  `json:"sleep_goal_hours"`
	HydrationGoalLiters *float64  `json:"hydration_goal_liters"`
	UpdatedAt           time.Time `json:"updated_at,omitzero"`
}

// PreferenceInput replaces every preference field at once; nil clears a field.
type PreferenceInput struct {
	TargetWeightKg      *float64 `json:"target_weight_kg"`
	CalorieBudgetKcal   *int64   `json:"calorie_budget_kcal"`
	DietaryPreference   *string  `json:"dietary_preference"`
	ActivityLevel       *string  `json:"activity_level"`
	SleepGoalHours      *float64 `json:"sleep_goal_hours"`
	HydrationGoalLiters *float64 `json:"hydration_goal_liters"`
}

// Suggestion is the model's structured health advice.
type Suggestion struct {
	Summary           string   `json:"summary"`
	MealPlan          []string `json:"meal_plan"`
	CalorieManagement []string `json:"calorie_management"`
	WeightManagement  []string `json:"weight_management"`
	Hydration         []string `json:"hydration"`
	Lifestyle         []string `json:"lifestyle"`
}

// Recommendation is a stored Suggestion.
type Recommendation struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`
	Suggestion
	CreatedAt time.Time `json:"created_at"`
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one stored conversation turn. Messages are append-only.
type Message struct {
	ID         int64                  `json:"id"`
	UserID     int64                  `json:"user_id"`
	Role       Role                   `json:"role"`
	Content    string                 `json:"content"`
	NeedChange bool                   `json:"need_change"`
	ChangeLog  []changelog.ChangeItem `json:"change_log"`
	CreatedAt  time.Time              `json:"created_at"`
}
