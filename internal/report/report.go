// Package report renders a user's health data as a markdown summary and as a
// standalone HTML page.
package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ziadkadry99/healthagent/internal/health"
)

// DefaultHistory is the number of metric rows shown in the history table.
const DefaultHistory = 10

// Source is the read side of the health store used to build a report.
type Source interface {
	ListMetrics(ctx context.Context, userID int64, limit int) ([]health.Metric, error)
	GetPreference(ctx context.Context, userID int64) (*health.Preference, error)
	LatestRecommendation(ctx context.Context, userID int64) (*health.Recommendation, error)
}

// Generator builds reports from a Source.
type Generator struct {
	source  Source
	history int
	md      goldmark.Markdown
	tmpl    *template.Template
}

// NewGenerator creates a Generator. history <= 0 selects DefaultHistory.
func NewGenerator(source Source, history int) *Generator {
	if history <= 0 {
		history = DefaultHistory
	}
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
	return &Generator{
		source:  source,
		history: history,
		md:      md,
		tmpl:    template.Must(template.New("report").Parse(pageTemplate)),
	}
}

// Markdown returns the report for userID as markdown.
func (g *Generator) Markdown(ctx context.Context, userID int64) (string, error) {
	metrics, err := g.source.ListMetrics(ctx, userID, g.history)
	if err != nil {
		return "", fmt.Errorf("loading metrics: %w", err)
	}
	pref, err := g.source.GetPreference(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("loading preference: %w", err)
	}
	rec, err := g.source.LatestRecommendation(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("loading recommendation: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# 健康报告\n\n用户：%d\n\n", userID)
	writeLatest(&b, metrics)
	writeHistory(&b, metrics)
	writePreference(&b, pref)
	writeRecommendation(&b, rec)
	return b.String(), nil
}

// HTML returns the report for userID as a complete HTML document.
func (g *Generator) HTML(ctx context.Context, userID int64) ([]byte, error) {
	src, err := g.Markdown(ctx, userID)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	if err := g.md.Convert([]byte(src), &body); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}

	var out bytes.Buffer
	err = g.tmpl.Execute(&out, pageData{
		Title:   fmt.Sprintf("健康报告 #%d", userID),
		Content: template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}
	return out.Bytes(), nil
}

type pageData struct {
	Title   string
	Content template.HTML
}

func writeLatest(b *strings.Builder, metrics []health.Metric) {
	b.WriteString("## 最新体测\n\n")
	if len(metrics) == 0 {
		b.WriteString("尚未记录体测数据。\n\n")
		return
	}
	m := metrics[0]
	fmt.Fprintf(b, "记录时间：%s\n\n", m.RecordedAt.UTC().Format(time.DateTime))
	b.WriteString("| 指标 | 数值 |\n| --- | --- |\n")
	fmt.Fprintf(b, "| 体重 (kg) | %.1f |\n", m.WeightKg)
	fmt.Fprintf(b, "| 体脂率 (%%) | %.1f |\n", m.BodyFatPercent)
	fmt.Fprintf(b, "| BMI | %.1f |\n", m.BMI)
	fmt.Fprintf(b, "| 肌肉率 (%%) | %.1f |\n", m.MusclePercent)
	fmt.Fprintf(b, "| 水分率 (%%) | %.1f |\n", m.WaterPercent)
	if m.Note != nil && *m.Note != "" {
		fmt.Fprintf(b, "\n备注：%s\n", escapeCell(*m.Note))
	}
	b.WriteString("\n")
}

func writeHistory(b *strings.Builder, metrics []health.Metric) {
	if len(metrics) < 2 {
		return
	}
	b.WriteString("## 历史记录\n\n")
	b.WriteString("| 时间 | 体重 | 体脂率 | BMI | 肌肉率 | 水分率 |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	for _, m := range metrics {
		fmt.Fprintf(b, "| %s | %.1f | %.1f | %.1f | %.1f | %.1f |\n",
			m.RecordedAt.UTC().Format(time.DateOnly),
			m.WeightKg, m.BodyFatPercent, m.BMI, m.MusclePercent, m.WaterPercent)
	}
	first, last := metrics[len(metrics)-1], metrics[0]
	fmt.Fprintf(b, "\n体重变化：%+.1f kg\n\n", last.WeightKg-first.WeightKg)
}

func writePreference(b *strings.Builder, p *health.Preference) {
	b.WriteString("## 健康偏好\n\n")
	if p == nil {
		b.WriteString("未设置。\n\n")
		return
	}
	row := func(label, value string) {
		fmt.Fprintf(b, "- %s：%s\n", label, value)
	}
	row("目标体重", floatOr(p.TargetWeightKg, "%.1f kg"))
	if p.CalorieBudgetKcal != nil {
		row("每日热量预算", fmt.Sprintf("%d kcal", *p.CalorieBudgetKcal))
	} else {
		row("每日热量预算", "未设置")
	}
	row("饮食偏好", stringOr(p.DietaryPreference))
	row("活动水平", stringOr(p.ActivityLevel))
	row("睡眠目标", floatOr(p.SleepGoalHours, "%.1f 小时"))
	row("饮水目标", floatOr(p.HydrationGoalLiters, "%.1f 升"))
	b.WriteString("\n")
}

func writeRecommendation(b *strings.Builder, rec *health.Recommendation) {
	b.WriteString("## 最新建议\n\n")
	if rec == nil {
		b.WriteString("暂无健康建议。\n")
		return
	}
	fmt.Fprintf(b, "生成时间：%s\n\n", rec.CreatedAt.UTC().Format(time.DateTime))
	fmt.Fprintf(b, "%s\n\n", rec.Summary)
	sections := []struct {
		title string
		items []string
	}{
		{"饮食计划", rec.MealPlan},
		{"热量管理", rec.CalorieManagement},
		{"体重管理", rec.WeightManagement},
		{"补水", rec.Hydration},
		{"生活方式", rec.Lifestyle},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		fmt.Fprintf(b, "### %s\n\n", s.title)
		for _, item := range s.items {
			fmt.Fprintf(b, "- %s\n", item)
		}
		b.WriteString("\n")
	}
}

func floatOr(v *float64, format string) string {
	if v == nil {
		return "未设置"
	}
	return fmt.Sprintf(format, *v)
}

func stringOr(v *string) string {
	if v == nil || *v == "" {
		return "未设置"
	}
	return *v
}

// escapeCell keeps user text from breaking table or paragraph layout.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

const pageTemplate = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
  <style>
    body { font-family: -apple-system, "PingFang SC", "Microsoft YaHei", sans-serif; max-width: 860px; margin: 2rem auto; padding: 0 1rem; color: #1f2328; }
    table { border-collapse: collapse; margin: 1rem 0; }
    th, td { border: 1px solid #d0d7de; padding: 0.4rem 0.8rem; text-align: left; }
    th { background: #f6f8fa; }
    h1, h2 { border-bottom: 1px solid #d0d7de; padding-bottom: 0.3rem; }
  </style>
</head>
<body>
<article>
{{.Content}}
</article>
</body>
</html>`
