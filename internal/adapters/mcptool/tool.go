package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/customs-duty-engine/internal/adapters/dto"
	"github.com/kirillkom/customs-duty-engine/internal/core/ports"
)

const ToolName = "calculate_import_duty"

type Tool struct {
	calculator ports.DutyCalculator
	minorUnits int32
	logger     *slog.Logger
}

func New(calculator ports.DutyCalculator, minorUnits int32, logger *slog.Logger) *Tool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tool{calculator: calculator, minorUnits: minorUnits, logger: logger}
}

// NewServer registers the duty tool on an MCP server suitable for ServeStdio.
func NewServer(tool *Tool, version string) *server.MCPServer {
	s := server.NewMCPServer("customs-duty-engine", version, server.WithToolCapabilities(false))
	s.AddTool(tool.Definition(), tool.Handle)
	return s
}

func (t *Tool) Definition() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription("Resolve the cheapest applicable duty regime for an import line and compute duty, GST and total landed amount. Returns the full step-by-step calculation as JSON."),
		mcp.WithString("hs_code", mcp.Required(), mcp.Description("Tariff classification code, 4 to 10 digits, dots allowed (e.g. 7208.10.00)")),
		mcp.WithString("country", mcp.Required(), mcp.Description("Country of origin, ISO 3166-1 alpha-2 or alpha-3")),
		mcp.WithString("customs_value", mcp.Required(), mcp.Description("Customs value as a positive decimal")),
		mcp.WithString("quantity", mcp.Description("Quantity in the tariff unit, required for specific rates")),
		mcp.WithString("as_of", mcp.Description("Calculation date YYYY-MM-DD, defaults to today")),
		mcp.WithString("exporter", mcp.Description("Exporter name for exporter-specific anti-dumping cases")),
		mcp.WithString("value_basis", mcp.Description("Valuation basis: FOB, CIF, CFR, EXW, DDP or DDU")),
	)
}

func (t *Tool) Handle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := decodeArguments(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	domainReq, err := req.ToDomain()
	if err != nil {
		return mcp.NewToolResultError(describeError(err)), nil
	}

	result, err := t.calculator.Calculate(ctx, domainReq)
	if err != nil {
		t.logger.Warn("mcp_tool_calculation_failed", "tool", ToolName, "error", err)
		return mcp.NewToolResultError(describeError(err)), nil
	}

	raw, err := json.MarshalIndent(dto.FromResult(result, t.minorUnits), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// decodeArguments reuses the HTTP request decoding so numbers and strings are both accepted for amounts.
func decodeArguments(args map[string]any) (dto.CalculateRequest, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return dto.CalculateRequest{}, fmt.Errorf("invalid arguments: %w", err)
	}
	var req dto.CalculateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return dto.CalculateRequest{}, fmt.Errorf("invalid arguments: %w", err)
	}
	return req, nil
}

func describeError(err error) string {
	body := dto.ErrorFromError(err)
	if len(body.Fields) == 0 {
		return body.Code + ": " + body.Message
	}
	parts := make([]string, 0, len(body.Fields))
	for _, f := range body.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return body.Code + ": " + strings.Join(parts, "; ")
}
