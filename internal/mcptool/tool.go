// Package mcptool exposes the calculator as a Model Context Protocol tool.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"calculator-api/internal/calculator"
	"calculator-api/internal/observability"
	"calculator-api/internal/service"
)

const ToolName = "calculate"

// Tool describes the calculate tool and its arguments.
func Tool() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription("Apply a basic arithmetic operation to two numbers"),
		mcp.WithString("operation",
			mcp.Required(),
			mcp.Description("One of: "+calculator.SupportedNames()),
		),
		mcp.WithNumber("a",
			mcp.Required(),
			mcp.Description("Left operand"),
		),
		mcp.WithNumber("b",
			mcp.Required(),
			mcp.Description("Right operand"),
		),
	)
}

// Handler runs calculations for the tool. Calculation failures are tool
// errors the model can read; only internal failures are protocol errors.
func Handler(svc *service.Service, log *zap.Logger) server.ToolHandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = observability.ContextWithRequestID(ctx, observability.NewRequestID())

		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}

		res, err := svc.CalculateFields(ctx, args)
		if err != nil {
			if calculator.IsClientError(err) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			log.Error("mcp calculate failed", zap.Error(err))
			return nil, fmt.Errorf("calculate: %s", observability.InternalErrorMessage)
		}

		body, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}
		return mcp.NewToolResultText(string(body)), nil
	}
}

// NewServer returns an MCP server named "calculator" with the calculate tool.
func NewServer(version string, svc *service.Service, log *zap.Logger) *server.MCPServer {
	s := server.NewMCPServer("calculator", version, server.WithToolCapabilities(false))
	s.AddTool(Tool(), Handler(svc, log))
	return s
}
