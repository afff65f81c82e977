package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/healthagent/internal/audit"
	"github.com/ziadkadry99/healthagent/internal/changelog"
)

func (s *Server) handleGetLatestMetric(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUserID(request)
	if errResult != nil {
		return errResult, nil
	}

	m, err := s.store.LatestMetric(ctx, userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading metric failed: %v", err)), nil
	}
	if m == nil {
		return mcp.NewToolResultText("No measurement recorded for this user yet."), nil
	}
	return jsonResult(m)
}

func (s *Server) handleListMetrics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUserID(request)
	if errResult != nil {
		return errResult, nil
	}
	limit := request.GetInt("limit", 30)
	if limit <= 0 {
		limit = 30
	}

	metrics, err := s.store.ListMetrics(ctx, userID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing metrics failed: %v", err)), nil
	}
	if len(metrics) == 0 {
		return mcp.NewToolResultText("No measurement recorded for this user yet."), nil
	}
	return jsonResult(metrics)
}

func (s *Server) handleGetPreferences(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUserID(request)
	if errResult != nil {
		return errResult, nil
	}

	p, err := s.store.GetPreference(ctx, userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading preferences failed: %v", err)), nil
	}
	if p == nil {
		return mcp.NewToolResultText("No preferences set for this user."), nil
	}
	return jsonResult(p)
}

func (s *Server) handleListMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUserID(request)
	if errResult != nil {
		return errResult, nil
	}
	limit := request.GetInt("limit", 50)
	if limit <= 0 {
		limit = 50
	}

	msgs, err := s.store.ListMessages(ctx, userID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing messages failed: %v", err)), nil
	}
	if len(msgs) == 0 {
		return mcp.NewToolResultText("No conversation yet."), nil
	}
	return mcp.NewToolResultText(formatMessages(msgs)), nil
}

func (s *Server) handleListFields(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sb strings.Builder
	for _, name := range changelog.Fields() {
		rule, _ := changelog.Lookup(name)
		fmt.Fprintf(&sb, "%s\t%s\t%s\n", name, rule.Scope, rule.Type)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleApplyChangeLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUserID(request)
	if errResult != nil {
		return errResult, nil
	}
	raw, err := decodeChanges(request.GetArguments()["changes"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	items := changelog.Sanitize(raw)
	if len(items) == 0 {
		return mcp.NewToolResultError("no usable change items: every item needs a field and a value"), nil
	}

	res, applyErr := s.router.Apply(ctx, userID, items)
	if s.audit != nil {
		entries := audit.FromResult(userID, nil, res)
		for i := range entries {
			entries[i].ActorType = audit.ActorSystem
		}
		if err := s.audit.LogBatch(ctx, entries); err != nil {
			s.logger.Error().Err(err).Msg("writing audit entries")
		}
	}

	body, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	if errors.Is(applyErr, changelog.ErrNoExistingRecord) {
		return mcp.NewToolResultError("The user has no measurement yet, so metric fields cannot be changed.\n" + string(body)), nil
	}
	if applyErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("applying changes failed: %v\n%s", applyErr, body)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// decodeChanges accepts the changes argument either as a JSON string or as an
// already decoded array.
func decodeChanges(v any) ([]changelog.RawItem, error) {
	var data []byte
	switch t := v.(type) {
	case nil:
		return nil, errors.New("missing required parameter: changes")
	case string:
		data = []byte(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("invalid changes: %v", err)
		}
		data = b
	}
	var raw []changelog.RawItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("changes must be a JSON array of {field, value, reason} objects: %v", err)
	}
	return raw, nil
}

func requireUserID(request mcp.CallToolRequest) (int64, *mcp.CallToolResult) {
	id, err := request.RequireInt("user_id")
	if err != nil || id <= 0 {
		return 0, mcp.NewToolResultError("missing or invalid parameter: user_id")
	}
	return int64(id), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}
