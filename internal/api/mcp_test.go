package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/lumina/internal/flow"
	"github.com/kalambet/lumina/internal/storage"
	"github.com/kalambet/lumina/internal/vault"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	v, err := vault.New(storage.NewMemory())
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}
	return MCPDeps{Vault: v, AI: &mockAI{}, Timing: flow.DefaultTiming()}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPServer_RegistersTools(t *testing.T) {
	s := NewMCPServer(newTestMCPDeps(t))
	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshaling response: %v", err)
	}
	for _, name := range []string{"list_inquiries", "generate_vision", "brand_audit", "service_insight", "phase_details", "brand_thesis"} {
		if !strings.Contains(string(b), `"name":"`+name+`"`) {
			t.Errorf("tool %q not listed in %s", name, b)
		}
	}
}

func TestMCPTool_ListInquiries(t *testing.T) {
	deps := newTestMCPDeps(t)
	for _, name := range []string{"Ada", "Grace", "Linus"} {
		if _, err := deps.Vault.SaveInquiry(vault.Inquiry{ID: name, ContactForm: vault.ContactForm{Name: name}}); err != nil {
			t.Fatalf("SaveInquiry: %v", err)
		}
	}

	result, err := mcpListInquiries(deps)(context.Background(), makeCallToolRequest("list_inquiries", map[string]interface{}{
		"limit": float64(2),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool returned error: %s", toolText(t, result))
	}

	var items []vault.Inquiry
	if err := json.Unmarshal([]byte(toolText(t, result)), &items); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d inquiries, want 2", len(items))
	}
	if items[0].Name != "Linus" {
		t.Errorf("first inquiry = %q, want newest (Linus)", items[0].Name)
	}
}

func TestMCPTool_ListInquiriesEmpty(t *testing.T) {
	deps := newTestMCPDeps(t)
	result, err := mcpListInquiries(deps)(context.Background(), makeCallToolRequest("list_inquiries", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := toolText(t, result); got != "[]" {
		t.Errorf("result = %q, want []", got)
	}
}

func TestMCPTool_GenerateVision(t *testing.T) {
	deps := newTestMCPDeps(t)

	result, err := mcpGenerateVision(deps)(context.Background(), makeCallToolRequest("generate_vision", map[string]interface{}{
		"industry": "Hospitality",
		"keyword":  "serene",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var rec vault.VisionRecord
	if err := json.Unmarshal([]byte(toolText(t, result)), &rec); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if rec.ID == "" || rec.Data.Vision != "Hospitality/serene" {
		t.Errorf("record = %+v", rec)
	}

	stored, _ := deps.Vault.GetVisions()
	if len(stored) != 1 {
		t.Errorf("stored %d visions, want 1", len(stored))
	}
}

func TestMCPTool_GenerateVisionMissingArgs(t *testing.T) {
	deps := newTestMCPDeps(t)
	result, err := mcpGenerateVision(deps)(context.Background(), makeCallToolRequest("generate_vision", map[string]interface{}{
		"industry": "Hospitality",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if got := toolText(t, result); got != "keyword is required" {
		t.Errorf("message = %q", got)
	}
}

func TestMCPTool_BrandAuditSkipsReveal(t *testing.T) {
	deps := newTestMCPDeps(t)

	result, err := mcpBrandAudit(deps)(context.Background(), makeCallToolRequest("brand_audit", map[string]interface{}{
		"business_name": "Aurora",
		"industry":      "Hospitality",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool returned error: %s", toolText(t, result))
	}
	var rec vault.AuditRecord
	if err := json.Unmarshal([]byte(toolText(t, result)), &rec); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if rec.Score != 81 || rec.BusinessName != "Aurora" {
		t.Errorf("audit = %+v", rec)
	}
}

func TestMCPTool_ServiceInsight(t *testing.T) {
	deps := newTestMCPDeps(t)

	result, _ := mcpServiceInsight(deps)(context.Background(), makeCallToolRequest("service_insight", map[string]interface{}{
		"service": "seo & performance ops",
	}))
	if result.IsError {
		t.Fatalf("tool returned error: %s", toolText(t, result))
	}
	var insight struct {
		Advice string `json:"strategic_advice"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &insight); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if insight.Advice != "SEO & Performance Ops" {
		t.Errorf("advice = %q, want canonical service title", insight.Advice)
	}

	result, _ = mcpServiceInsight(deps)(context.Background(), makeCallToolRequest("service_insight", map[string]interface{}{
		"service": "Blockchain",
	}))
	if !result.IsError {
		t.Error("expected error for unknown service")
	}
}

func TestMCPTool_PhaseDetails(t *testing.T) {
	deps := newTestMCPDeps(t)

	result, _ := mcpPhaseDetails(deps)(context.Background(), makeCallToolRequest("phase_details", map[string]interface{}{
		"phase": "03",
	}))
	if got := toolText(t, result); got != "details for Launch" {
		t.Errorf("details = %q", got)
	}
}

func TestMCPTool_BrandThesis(t *testing.T) {
	deps := newTestMCPDeps(t)

	result, err := mcpBrandThesis(deps)(context.Background(), makeCallToolRequest("brand_thesis", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := toolText(t, result); got != "THE THESIS" {
		t.Errorf("thesis = %q", got)
	}
	doc, _ := deps.Vault.Snapshot()
	if len(doc.Theses) != 1 {
		t.Errorf("stored %d theses, want 1", len(doc.Theses))
	}
}

func TestMCPResource_Plans(t *testing.T) {
	handler := mcpJSONResource(func() (any, error) { return []string{"Regular", "Advance"}, nil })

	contents, err := handler(context.Background(), makeReadResourceRequest("catalog://plans"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "catalog://plans" || tc.MIMEType != "application/json" {
		t.Errorf("contents = %+v", tc)
	}
	if tc.Text != `["Regular","Advance"]` {
		t.Errorf("text = %s", tc.Text)
	}
}
