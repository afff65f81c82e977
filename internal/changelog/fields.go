package changelog

import "sort"

// Scope identifies which snapshot a field belongs to.
type Scope string

const (
	ScopeMetric     Scope = "metric"
	ScopePreference Scope = "preference"
)

// ValueType is the declared type of a mutable field.
type ValueType string

const (
	TypeFloat  ValueType = "float"
	TypeInt    ValueType = "int"
	TypeString ValueType = "string"
)

// FieldRule routes a field to its scope and declares how its raw value is coerced.
type FieldRule struct {
	Scope Scope
	Type  ValueType
}

// fieldRules is the single source of truth for which fields the assistant may change.
// Adding a mutable field means adding exactly one entry here.
var fieldRules = map[string]FieldRule{
	"weight_kg":             {Scope: ScopeMetric, Type: TypeFloat},
	"body_fat_percent":      {Scope: ScopeMetric, Type: TypeFloat},
	"bmi":                   {Scope: ScopeMetric, Type: TypeFloat},
	"muscle_percent":        {Scope: ScopeMetric, Type: TypeFloat},
	"water_percent":         {Scope: ScopeMetric, Type: TypeFloat},
	"note":                  {Scope: ScopeMetric, Type: TypeString},
	"target_weight_kg":      {Scope: ScopePreference, Type: TypeFloat},
	"calorie_budget_kcal":   {Scope: ScopePreference, Type: TypeInt},
	"dietary_preference":    {Scope: ScopePreference, Type: TypeString},
	"activity_level":        {Scope: ScopePreference, Type: TypeString},
	"sleep_goal_hours":      {Scope: ScopePreference, Type: TypeFloat},
	"hydration_goal_liters": {Scope: ScopePreference, Type: TypeFloat},
}

// Lookup returns the rule for a field name.
func Lookup(field string) (FieldRule, bool) {
	rule, ok := fieldRules[field]
	return rule, ok
}

// Fields returns every mutable field name in sorted order.
func Fields() []string {
	names := make([]string, 0, len(fieldRules))
	for name := range fieldRules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldsInScope returns the sorted field names that belong to scope.
func FieldsInScope(scope Scope) []string {
	var names []string
	for _, name := range Fields() {
		if fieldRules[name].Scope == scope {
			names = append(names, name)
		}
	}
	return names
}
