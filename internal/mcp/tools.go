package mcp

import "github.com/mark3labs/mcp-go/mcp"

func userIDParam() mcp.ToolOption {
	return mcp.WithNumber("user_id",
		mcp.Required(),
		mcp.Description("Numeric id of the user"),
	)
}

// getLatestMetricTool defines the get_latest_metric MCP tool.
var getLatestMetricTool = mcp.NewTool("get_latest_metric",
	mcp.WithDescription("Get the user's most recent body-composition measurement (weight, body fat, BMI, muscle, water)."),
	userIDParam(),
)

// listMetricsTool defines the list_metrics MCP tool.
var listMetricsTool = mcp.NewTool("list_metrics",
	mcp.WithDescription("List the user's measurements, newest first."),
	userIDParam(),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of measurements to return (default 30)"),
	),
)

// getPreferencesTool defines the get_preferences MCP tool.
var getPreferencesTool = mcp.NewTool("get_preferences",
	mcp.WithDescription("Get the user's health goals: target weight, calorie budget, diet, activity, sleep and hydration."),
	userIDParam(),
)

// listMessagesTool defines the list_messages MCP tool.
var listMessagesTool = mcp.NewTool("list_messages",
	mcp.WithDescription("List the user's assistant conversation, oldest first."),
	userIDParam(),
	mcp.WithNumber("limit",
		mcp.Description("Number of most recent messages to return (default 50)"),
	),
)

// listFieldsTool defines the list_fields MCP tool.
var listFieldsTool = mcp.NewTool("list_fields",
	mcp.WithDescription("List the record fields that apply_change_log can modify, with their scope and value type."),
)

// applyChangeLogTool defines the apply_change_log MCP tool.
var applyChangeLogTool = mcp.NewTool("apply_change_log",
	mcp.WithDescription("Apply field-level edits to the user's latest measurement and preferences. Unknown fields and unreadable values are skipped."),
	userIDParam(),
	mcp.WithString("changes",
		mcp.Required(),
		mcp.Description(`JSON array of {"field": "...", "value": "...", "reason": "..."} objects`),
	),
)
