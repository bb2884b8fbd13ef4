package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/geopmd/core/internal/runtimeservice"
)

// mcpServer wraps an MCP server instance exposing RuntimeService over
// stdio, adapted from internal/mcp/server.go with its get_health/
// collect_metrics tools replaced by set_policy/get_report/
// enforce_policy. This is demonstration wiring only: the core
// contract lives in internal/runtimeservice, not here.
type mcpServer struct {
	mcpServer *server.MCPServer
	svc       *runtimeservice.Service
}

func newMCPServer(version string, svc *runtimeservice.Service) *mcpServer {
	s := server.NewMCPServer("geopmd", version, server.WithLogging())
	m := &mcpServer{mcpServer: s, svc: svc}
	m.registerTools()
	return m
}

func (m *mcpServer) Start(ctx context.Context) error {
	stdioServer := server.NewStdioServer(m.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func (m *mcpServer) registerTools() {
	setPolicyTool := mcp.NewTool("set_policy",
		mcp.WithDescription("Install a new runtime policy for the active agent. Takes effect on the next controller tick."),
		mcp.WithString("agent_name",
			mcp.Description("Agent name (monitor, power_governor, frequency_balancer), checked against the compiled-in agents and stored with the policy; the running daemon keeps the agent it started with"),
		),
		mcp.WithNumber("period",
			mcp.Description("Tick period in seconds, stored with the policy; the running daemon does not change its tick period"),
		),
		mcp.WithString("profile_name",
			mcp.Description("Profile label recorded in the report header"),
		),
		mcp.WithString("params",
			mcp.Description("Policy parameter vector as a JSON array, agent-specific (e.g. \"[150]\" for a power cap in watts)"),
		),
	)
	m.mcpServer.AddTool(setPolicyTool, m.handleSetPolicy)

	getReportTool := mcp.NewTool("get_report",
		mcp.WithDescription("Return the accumulated per-metric statistics since the last call, then reset them."),
	)
	m.mcpServer.AddTool(getReportTool, m.handleGetReport)

	enforcePolicyTool := mcp.NewTool("enforce_policy",
		mcp.WithDescription("Install a policy parameter vector for the current agent. It goes through the same path as set_policy and takes effect at the next policy poll."),
		mcp.WithString("params",
			mcp.Required(),
			mcp.Description("Policy parameter vector to enforce now, as a JSON array"),
		),
	)
	m.mcpServer.AddTool(enforcePolicyTool, m.handleEnforcePolicy)
}

func (m *mcpServer) handleSetPolicy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	policy := runtimeservice.Policy{
		AgentName:   stringArg(args, "agent_name", ""),
		Period:      floatArg(args, "period", 0),
		ProfileName: stringArg(args, "profile_name", ""),
		Params:      parseParamsArg(args),
	}
	if err := m.svc.SetPolicy(policy); err != nil {
		return errResult(fmt.Sprintf("set_policy failed: %v", err)), nil
	}
	return newTextResult("policy accepted"), nil
}

func (m *mcpServer) handleGetReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snapshots := m.svc.GetReport()
	data, err := json.MarshalIndent(snapshots, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(data)), nil
}

func (m *mcpServer) handleEnforcePolicy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	params := parseParamsArg(args)
	if len(params) == 0 {
		return errResult("params is required"), nil
	}
	if err := m.svc.SetPolicy(runtimeservice.Policy{Params: params}); err != nil {
		return errResult(fmt.Sprintf("enforce_policy failed: %v", err)), nil
	}
	return newTextResult("policy enforced"), nil
}

// getArgs safely extracts the arguments map from a CallToolRequest.
func getArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

func stringArg(args map[string]interface{}, key, defaultVal string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return defaultVal
	}
	return s
}

func floatArg(args map[string]interface{}, key string, defaultVal float64) float64 {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	f, ok := val.(float64)
	if !ok {
		return defaultVal
	}
	return f
}

// parseParamsArg decodes the "params" argument, a JSON-encoded array of
// numbers (e.g. "[150]"), into a policy parameter vector. An absent,
// empty, or malformed value yields nil rather than an error: an
// agent's ValidatePolicy is the place that rejects a bad policy.
func parseParamsArg(args map[string]interface{}) []float64 {
	s := stringArg(args, "params", "")
	if s == "" {
		return nil
	}
	var out []float64
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
	}
}
