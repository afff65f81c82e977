package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ziadkadry99/healthagent/internal/changelog"
	"github.com/ziadkadry99/healthagent/internal/db"
)

// Store provides persistence for metrics, preferences, recommendations and
// assistant messages. It implements changelog.RecordStore.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

var _ changelog.RecordStore = (*Store)(nil)

const metricColumns = `id, user_id, weight_kg, body_fat_percent, bmi, muscle_percent, water_percent, recorded_at, note`

// latestMetricID selects the id of a user's latest metric.
const latestMetricID = `SELECT id FROM health_metrics WHERE user_id = ? ORDER BY recorded_at DESC, id DESC LIMIT 1`

// --- Metrics ---

// CreateMetric validates and inserts a new metric.
func (s *Store) CreateMetric(ctx context.Context, userID int64, in MetricInput) (*Metric, error) {
	if err := ValidateMetric(in); err != nil {
		return nil, err
	}
	recorded := in.RecordedAt
	if recorded.IsZero() {
		recorded = s.now()
	}
	var note sql.NullString
	if in.Note != nil {
		note = sql.NullString{String: strings.TrimSpace(*in.Note), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO health_metrics (user_id, weight_kg, body_fat_percent, bmi, muscle_percent, water_percent, recorded_at, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, in.WeightKg, in.BodyFatPercent, in.BMI, in.MusclePercent, in.WaterPercent,
		db.FormatTime(recorded), note, db.FormatTime(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting metric: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading metric id: %w", err)
	}
	return s.getMetric(ctx, id)
}

func (s *Store) getMetric(ctx context.Context, id int64) (*Metric, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+metricColumns+` FROM health_metrics WHERE id = ?`, id)
	m, err := scanMetric(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting metric: %w", err)
	}
	return m, nil
}

// LatestMetric returns the user's latest metric, or nil if none exists.
func (s *Store) LatestMetric(ctx context.Context, userID int64) (*Metric, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+metricColumns+` FROM health_metrics
		WHERE user_id = ? ORDER BY recorded_at DESC, id DESC LIMIT 1`, userID)
	m, err := scanMetric(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest metric: %w", err)
	}
	return m, nil
}

// ListMetrics returns up to limit metrics, newest first. limit <= 0 means all.
func (s *Store) ListMetrics(ctx context.Context, userID int64, limit int) ([]Metric, error) {
	query := `SELECT ` + metricColumns + ` FROM health_metrics WHERE user_id = ? ORDER BY recorded_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing metrics: %w", err)
	}
	defer rows.Close()

	var metrics []Metric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning metric: %w", err)
		}
		metrics = append(metrics, *m)
	}
	return metrics, rows.Err()
}

// UpdateMetricFields partially updates the user's latest metric in a single
// statement. It returns changelog.ErrNoExistingRecord when the user has none.
func (s *Store) UpdateMetricFields(ctx context.Context, userID int64, fields changelog.FieldMap) error {
	set, args, err := assignments(changelog.ScopeMetric, fields)
	if err != nil {
		return err
	}
	args = append(args, userID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE health_metrics SET `+strings.Join(set, ", ")+` WHERE id = (`+latestMetricID+`)`, args...)
	if err != nil {
		return fmt.Errorf("updating metric: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating metric: %w", err)
	}
	if n == 0 {
		return changelog.ErrNoExistingRecord
	}
	return nil
}

// --- Preferences ---

const preferenceColumns = `user_id, target_weight_kg, calorie_budget_kcal, dietary_preference, activity_level, sleep_goal_hours, hydration_goal_liters, updated_at`

// GetPreference returns the user's preference, or nil if none exists.
func (s *Store) GetPreference(ctx context.Context, userID int64) (*Preference, error) {
	var (
		p                        Preference
		target, sleep, hydration sql.NullFloat64
		calories                 sql.NullInt64
		diet, activity           sql.NullString
		updated                  string
	)
	err := s.db.QueryRowContext(ctx, `SELECT `+preferenceColumns+` FROM health_preferences WHERE user_id = ?`, userID).
		Scan(&p.UserID, &target, &calories, &diet, &activity, &sleep, &hydration, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting preference: %w", err)
	}

	p.TargetWeightKg = nullFloat(target)
	p.SleepGoalHours = nullFloat(sleep)
	p.HydrationGoalLiters = nullFloat(hydration)
	if calories.Valid {
		p.CalorieBudgetKcal = &calories.Int64
	}
	p.DietaryPreference = nullString(diet)
	p.ActivityLevel = nullString(activity)
	if t, err := db.ParseTime(updated); err == nil {
		p.UpdatedAt = t
	}
	return &p, nil
}

// UpsertPreference validates in and replaces every preference field.
func (s *Store) UpsertPreference(ctx context.Context, userID int64, in PreferenceInput) (*Preference, error) {
	in, err := NormalizePreference(in)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO health_preferences (user_id, target_weight_kg, calorie_budget_kcal, dietary_preference, activity_level, sleep_goal_hours, hydration_goal_liters, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			target_weight_kg = excluded.target_weight_kg,
			calorie_budget_kcal = excluded.calorie_budget_kcal,
			dietary_preference = excluded.dietary_preference,
			activity_level = excluded.activity_level,
			sleep_goal_hours = excluded.sleep_goal_hours,
			hydration_goal_liters = excluded.hydration_goal_liters,
			updated_at = excluded.updated_at`,
		userID, nullable(in.TargetWeightKg), nullable(in.CalorieBudgetKcal), nullable(in.DietaryPreference),
		nullable(in.ActivityLevel), nullable(in.SleepGoalHours), nullable(in.HydrationGoalLiters), db.FormatTime(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("upserting preference: %w", err)
	}
	return s.GetPreference(ctx, userID)
}

// UpsertPreferenceFields partially updates the user's preference in a single
// statement, creating the row first if necessary.
func (s *Store) UpsertPreferenceFields(ctx context.Context, userID int64, fields changelog.FieldMap) error {
	cols, args, err := columnValues(changelog.ScopePreference, fields)
	if err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+2), ", ")
	update := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		update = append(update, c+" = excluded."+c)
	}
	update = append(update, "updated_at = excluded.updated_at")

	query := `INSERT INTO health_preferences (user_id, ` + strings.Join(cols, ", ") + `, updated_at)
		VALUES (` + placeholders + `)
		ON CONFLICT(user_id) DO UPDATE SET ` + strings.Join(update, ", ")

	all := append([]any{userID}, args...)
	all = append(all, db.FormatTime(s.now()))
	if _, err := s.db.ExecContext(ctx, query, all...); err != nil {
		return fmt.Errorf("upserting preference fields: %w", err)
	}
	return nil
}

// columnValues turns a FieldMap into sorted column names and their arguments.
// Only names from the field rule table in the expected scope are accepted, which
// keeps column names out of reach of model output.
func columnValues(scope changelog.Scope, fields changelog.FieldMap) ([]string, []any, error) {
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("no %s fields to update", scope)
	}
	cols := make([]string, 0, len(fields))
	for name := range fields {
		rule, ok := changelog.Lookup(name)
		if !ok || rule.Scope != scope {
			return nil, nil, fmt.Errorf("field %q is not a %s field", name, scope)
		}
		cols = append(cols, name)
	}
	slices.Sort(cols)

	args := make([]any, 0, len(cols))
	for _, c := range cols {
		args = append(args, fields[c].Any())
	}
	return cols, args, nil
}

func assignments(scope changelog.Scope, fields changelog.FieldMap) ([]string, []any, error) {
	cols, args, err := columnValues(scope, fields)
	if err != nil {
		return nil, nil, err
	}
	set := make([]string, len(cols))
	for i, c := range cols {
		set[i] = c + " = ?"
	}
	return set, args, nil
}

// --- Recommendations ---

// CreateRecommendation stores a suggestion for the user.
func (s *Store) CreateRecommendation(ctx context.Context, userID int64, sug Suggestion) (*Recommendation, error) {
	lists := [][]string{sug.MealPlan, sug.CalorieManagement, sug.WeightManagement, sug.Hydration, sug.Lifestyle}
	encoded := make([]any, 0, len(lists))
	for _, l := range lists {
		if l == nil {
			l = []string{}
		}
		data, err := json.Marshal(l)
		if err != nil {
			return nil, fmt.Errorf("marshalling recommendation: %w", err)
		}
		encoded = append(encoded, string(data))
	}

	args := append([]any{userID, sug.Summary}, encoded...)
	args = append(args, db.FormatTime(s.now()))
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO health_recommendations (user_id, summary, meal_plan, calorie_management, weight_management, hydration, lifestyle, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return nil, fmt.Errorf("inserting recommendation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading recommendation id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT id, user_id, summary, meal_plan, calorie_management, weight_management, hydration, lifestyle, created_at
		FROM health_recommendations WHERE id = ?`, id)
	return scanRecommendation(row)
}

// LatestRecommendation returns the user's newest recommendation, or nil.
func (s *Store) LatestRecommendation(ctx context.Context, userID int64) (*Recommendation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, user_id, summary, meal_plan, calorie_management, weight_management, hydration, lifestyle, created_at
		FROM health_recommendations WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, userID)
	rec, err := scanRecommendation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// --- Messages ---

// AppendMessage stores one conversation message.
func (s *Store) AppendMessage(ctx context.Context, msg Message) (*Message, error) {
	var out *Message
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = s.insertMessage(ctx, tx, msg)
		return err
	})
	return out, err
}

// AppendExchange stores a user message and the assistant reply atomically.
func (s *Store) AppendExchange(ctx context.Context, user, assistant Message) ([]Message, error) {
	var out []Message
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, msg := range []Message{user, assistant} {
			m, err := s.insertMessage(ctx, tx, msg)
			if err != nil {
				return err
			}
			out = append(out, *m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) insertMessage(ctx context.Context, tx *sql.Tx, msg Message) (*Message, error) {
	if msg.Role != RoleUser && msg.Role != RoleAssistant {
		return nil, fmt.Errorf("invalid message role %q", msg.Role)
	}
	if msg.ChangeLog == nil {
		msg.ChangeLog = []changelog.ChangeItem{}
	}
	data, err := json.Marshal(msg.ChangeLog)
	if err != nil {
		return nil, fmt.Errorf("marshalling change log: %w", err)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC().Truncate(time.Millisecond)

	res, err := tx.ExecContext(ctx, `
		INSERT INTO assistant_messages (user_id, role, content, need_change, change_log, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.UserID, string(msg.Role), msg.Content, msg.NeedChange, string(data), db.FormatTime(msg.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}
	msg.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading message id: %w", err)
	}
	return &msg, nil
}

// ListMessages returns the newest limit messages of the user, oldest first.
// limit <= 0 means all.
func (s *Store) ListMessages(ctx context.Context, userID int64, limit int) ([]Message, error) {
	query := `SELECT id, user_id, role, content, need_change, change_log, created_at
		FROM assistant_messages WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var (
			m       Message
			role    string
			logJSON string
			created string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &role, &m.Content, &m.NeedChange, &logJSON, &created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = Role(role)
		if err := json.Unmarshal([]byte(logJSON), &m.ChangeLog); err != nil || m.ChangeLog == nil {
			m.ChangeLog = []changelog.ChangeItem{}
		}
		if t, err := db.ParseTime(created); err == nil {
			m.CreatedAt = t
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMetric(sc scanner) (*Metric, error) {
	var (
		m        Metric
		recorded string
		note     sql.NullString
	)
	if err := sc.Scan(&m.ID, &m.UserID, &m.WeightKg, &m.BodyFatPercent, &m.BMI, &m.MusclePercent, &m.WaterPercent, &recorded, &note); err != nil {
		return nil, err
	}
	t, err := db.ParseTime(recorded)
	if err != nil {
		return nil, err
	}
	m.RecordedAt = t
	m.Note = nullString(note)
	return &m, nil
}

func scanRecommendation(sc scanner) (*Recommendation, error) {
	var (
		r       Recommendation
		lists   [5]string
		created string
	)
	if err := sc.Scan(&r.ID, &r.UserID, &r.Summary, &lists[0], &lists[1], &lists[2], &lists[3], &lists[4], &created); err != nil {
		return nil, err
	}
	targets := []*[]string{&r.MealPlan, &r.CalorieManagement, &r.WeightManagement, &r.Hydration, &r.Lifestyle}
	for i, raw := range lists {
		if err := json.Unmarshal([]byte(raw), targets[i]); err != nil || *targets[i] == nil {
			*targets[i] = []string{}
		}
	}
	if t, err := db.ParseTime(created); err == nil {
		r.CreatedAt = t
	}
	return &r, nil
}

// nullable converts an optional value into a driver argument.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
