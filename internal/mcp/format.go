package mcp

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/healthagent/internal/health"
)

// formatMessages renders a conversation as a transcript for AI agent consumption.
func formatMessages(msgs []health.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d message(s):\n", len(msgs))

	for _, m := range msgs {
		fmt.Fprintf(&sb, "\n[%s] %s:\n%s\n", m.CreatedAt.Format("2006-01-02 15:04"), m.Role, m.Content)
		if m.NeedChange && len(m.ChangeLog) > 0 {
			sb.WriteString("Proposed changes:\n")
			for _, c := range m.ChangeLog {
				fmt.Fprintf(&sb, "  - %s = %s", c.Field, c.Value)
				if c.Reason != nil {
					fmt.Fprintf(&sb, " (%s)", *c.Reason)
				}
				sb.WriteString("\n")
			}
		}
	}

	return sb.String()
}
