package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/lumina/internal/catalog"
	"github.com/kalambet/lumina/internal/flow"
	"github.com/kalambet/lumina/internal/vault"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Vault  *vault.Vault
	AI     AI
	Timing flow.Timing
}

// NewMCPServer creates an MCP server exposing the studio's tools and vault resources.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"lumina",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Lumina Digital studio: client inquiries, brand audits, digital visions and the studio catalog."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("list_inquiries",
			mcp.WithDescription("List stored client inquiries, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of inquiries (default 10)")),
		),
		mcpListInquiries(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_vision",
			mcp.WithDescription("Draft and store a digital vision for an industry and keyword."),
			mcp.WithString("industry", mcp.Description("Client industry"), mcp.Required()),
			mcp.WithString("keyword", mcp.Description("Brand keyword or feeling"), mcp.Required()),
		),
		mcpGenerateVision(deps),
	)

	s.AddTool(
		mcp.NewTool("brand_audit",
			mcp.WithDescription("Score a brand's digital presence and store the audit."),
			mcp.WithString("business_name", mcp.Description("Business name"), mcp.Required()),
			mcp.WithString("industry", mcp.Description("Business industry"), mcp.Required()),
		),
		mcpBrandAudit(deps),
	)

	s.AddTool(
		mcp.NewTool("service_insight",
			mcp.WithDescription("Strategic deep dive into one of the studio's services."),
			mcp.WithString("service", mcp.Description("Service title, e.g. Custom Website Designing"), mcp.Required()),
		),
		mcpServiceInsight(deps),
	)

	s.AddTool(
		mcp.NewTool("phase_details",
			mcp.WithDescription("Explain one phase of the studio's delivery process."),
			mcp.WithString("phase", mcp.Description("Phase id (01-03) or title"), mcp.Required()),
		),
		mcpPhaseDetails(deps),
	)

	s.AddTool(
		mcp.NewTool("brand_thesis",
			mcp.WithDescription("Draft and store the studio's brand thesis."),
		),
		mcpBrandThesis(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"vault://inquiries",
			"Client Inquiries",
			mcp.WithResourceDescription("All stored inquiries with lead intelligence"),
			mcp.WithMIMEType("application/json"),
		),
		mcpJSONResource(func() (any, error) { return deps.Vault.GetInquiries() }),
	)

	s.AddResource(
		mcp.NewResource(
			"vault://visions",
			"Digital Visions",
			mcp.WithResourceDescription("All generated digital visions"),
			mcp.WithMIMEType("application/json"),
		),
		mcpJSONResource(func() (any, error) { return deps.Vault.GetVisions() }),
	)

	s.AddResource(
		mcp.NewResource(
			"catalog://plans",
			"Pricing Plans",
			mcp.WithResourceDescription("The studio's pricing tiers"),
			mcp.WithMIMEType("application/json"),
		),
		mcpJSONResource(func() (any, error) { return catalog.Plans(), nil }),
	)

	return s
}

func mcpListInquiries(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}

		items, err := deps.Vault.GetInquiries()
		if err != nil {
			return mcpError(fmt.Sprintf("reading inquiries: %v", err)), nil
		}
		if len(items) > limit {
			items = items[:limit]
		}
		return mcpJSON(items)
	}
}

func mcpGenerateVision(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		industry, err := req.RequireString("industry")
		if err != nil {
			return mcpError("industry is required"), nil
		}
		keyword, err := req.RequireString("keyword")
		if err != nil {
			return mcpError("keyword is required"), nil
		}

		rec, err := flow.NewVision(deps.AI, deps.Vault).Generate(ctx, industry, keyword)
		if err != nil {
			return mcpError(fmt.Sprintf("generating vision: %v", err)), nil
		}
		return mcpJSON(rec)
	}
}

func mcpBrandAudit(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("business_name")
		if err != nil {
			return mcpError("business_name is required"), nil
		}
		industry, err := req.RequireString("industry")
		if err != nil {
			return mcpError("industry is required"), nil
		}

		// No reveal pause for tool callers.
		timing := deps.Timing
		timing.Scale = 0
		rec, err := flow.NewScanner(deps.AI, deps.Vault, timing).Scan(ctx, name, industry)
		if err != nil {
			return mcpError(fmt.Sprintf("auditing brand: %v", err)), nil
		}
		return mcpJSON(rec)
	}
}

func mcpServiceInsight(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		service, err := req.RequireString("service")
		if err != nil {
			return mcpError("service is required"), nil
		}
		insight, err := flow.OpenInsight(ctx, flow.NewInsight(deps.AI), service)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(insight)
	}
}

func mcpPhaseDetails(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		phase, err := req.RequireString("phase")
		if err != nil {
			return mcpError("phase is required"), nil
		}
		details, err := flow.OpenPhase(ctx, flow.NewPhase(deps.AI), phase)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(details), nil
	}
}

func mcpBrandThesis(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		timing := deps.Timing
		timing.Scale = 0
		rec, err := flow.NewThesis(deps.AI, deps.Vault, timing).Download(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("drafting thesis: %v", err)), nil
		}
		return mcpText(rec.Content), nil
	}
}

func mcpJSONResource(load func() (any, error)) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		v, err := load()
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", req.Params.URI, err)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s: %w", req.Params.URI, err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
