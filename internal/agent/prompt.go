package agent

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/healthagent/internal/changelog"
	"github.com/ziadkadry99/healthagent/internal/conversation"
	"github.com/ziadkadry99/healthagent/internal/health"
	"github.com/ziadkadry99/healthagent/internal/llm"
)

const chatInstructions = `你是一名专业、友善的健康助手，根据用户的体测数据和偏好回答问题。

必须只输出一个 JSON 对象，不要输出任何其他文字：
{"content": "给用户的回复", "need_change": false, "change_log": [{"field": "字段名", "value": "新值", "reason": "修改原因"}]}

规则：
- content 使用中文回答。
- 只有当用户明确要求修改记录时，need_change 才为 true，并在 change_log 中列出修改项。
- 不需要修改时 change_log 为空数组。
- field 只能取以下字段之一：%s
- value 只写数值或文本本身，不要带单位。`

const suggestionInstructions = `你是一名健康管理顾问。根据用户最新的体测数据和偏好给出个性化建议。

必须只输出一个 JSON 对象，不要输出任何其他文字：
{"summary": "一句话总结", "meal_plan": [], "calorie_management": [], "weight_management": [], "hydration": [], "lifestyle": []}

每个列表给出 2 到 4 条简短、可执行的中文建议。`

// chatMessages renders a conversation request into the model prompt: system
// instructions, the context snapshot, replayed history, then the utterance.
func chatMessages(req *conversation.Request) []llm.Message {
	msgs := make([]llm.Message, 0, len(req.History)+3)
	msgs = append(msgs,
		llm.Message{Role: llm.RoleSystem, Content: fmt.Sprintf(chatInstructions, strings.Join(changelog.Fields(), ", "))},
		llm.Message{Role: llm.RoleSystem, Content: describeContext(req.Context)},
	)
	for _, m := range req.History {
		role := llm.RoleUser
		if m.Role == health.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: req.Utterance})
	return msgs
}

func suggestionMessages(c conversation.Context) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: suggestionInstructions},
		{Role: llm.RoleUser, Content: describeContext(c)},
	}
}

// describeContext renders the user's health state as plain text.
func describeContext(c conversation.Context) string {
	var b strings.Builder
	b.WriteString("用户当前健康数据：\n")
	if m := c.Metric; m != nil {
		fmt.Fprintf(&b, "- weight_kg: %.1f\n", m.WeightKg)
		fmt.Fprintf(&b, "- body_fat_percent: %.1f\n", m.BodyFatPercent)
		fmt.Fprintf(&b, "- bmi: %.1f\n", m.BMI)
		fmt.Fprintf(&b, "- muscle_percent: %.1f\n", m.MusclePercent)
		fmt.Fprintf(&b, "- water_percent: %.1f\n", m.WaterPercent)
		fmt.Fprintf(&b, "- recorded_at: %s\n", m.RecordedAt.Format("2006-01-02 15:04"))
		if m.Note != nil {
			fmt.Fprintf(&b, "- note: %s\n", *m.Note)
		}
	} else {
		b.WriteString("- 尚未记录体测数据\n")
	}

	p := c.Preference
	if p == nil {
		b.WriteString("用户偏好：未设置\n")
		return b.String()
	}
	b.WriteString("用户偏好：\n")
	if p.TargetWeightKg != nil {
		fmt.Fprintf(&b, "- target_weight_kg: %.1f\n", *p.TargetWeightKg)
	}
	if p.CalorieBudgetKcal != nil {
		fmt.Fprintf(&b, "- calorie_budget_kcal: %d\n", *p.CalorieBudgetKcal)
	}
	if p.DietaryPreference != nil {
		fmt.Fprintf(&b, "- dietary_preference: %s\n", *p.DietaryPreference)
	}
	if p.ActivityLevel != nil {
		fmt.Fprintf(&b, "- activity_level: %s\n", *p.ActivityLevel)
	}
	if p.SleepGoalHours != nil {
		fmt.Fprintf(&b, "- sleep_goal_hours: %.1f\n", *p.SleepGoalHours)
	}
	if p.HydrationGoalLiters != nil {
		fmt.Fprintf(&b, "- hydration_goal_liters: %.1f\n", *p.HydrationGoalLiters)
	}
	return b.String()
}
