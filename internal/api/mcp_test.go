package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is not text: %T", result.Content[0])
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

func TestMCPTool_ExtractContract(t *testing.T) {
	deps := testDeps(t)
	handler := mcpExtractContract(deps)

	req := makeCallToolRequest("extract_contract", map[string]interface{}{
		"contract_text": "This agreement is made between Acme Corp and Jane Doe.",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var details map[string]interface{}
	if err := json.Unmarshal([]byte(toolText(t, result)), &details); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if details["agreement_value"] != 6500.0 {
		t.Errorf("agreement_value = %v", details["agreement_value"])
	}
	if _, ok := details["party_one"]; !ok {
		t.Error("party_one key missing from result")
	}

	extractor := deps.Extractor.(*fakeExtractor)
	if !extractor.gotRAG {
		t.Error("rag defaulted to false, want true")
	}
}

func TestMCPTool_ExtractContract_MissingText(t *testing.T) {
	handler := mcpExtractContract(testDeps(t))

	result, err := handler(context.Background(), makeCallToolRequest("extract_contract", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing contract_text")
	}
}

func TestMCPTool_ExtractContract_NoStructuredData(t *testing.T) {
	deps := testDeps(t)
	deps.Extractor = &fakeExtractor{details: nil}
	handler := mcpExtractContract(deps)

	req := makeCallToolRequest("extract_contract", map[string]interface{}{
		"contract_text": "A sufficiently long contract text.",
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error when nothing could be extracted")
	}
}

func TestMCPTool_PopulateDatabase(t *testing.T) {
	deps := testDeps(t)
	populator := deps.Populator.(*fakePopulator)
	handler := mcpPopulateDatabase(deps)

	req := makeCallToolRequest("populate_database", map[string]interface{}{
		"force": true,
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	if populator.calls != 1 || !populator.gotForce {
		t.Errorf("populator calls = %d, force = %v", populator.calls, populator.gotForce)
	}
	if text := toolText(t, result); !strings.Contains(text, "3 documents") {
		t.Errorf("result text = %q", text)
	}
}

func TestMCPTool_PopulateDatabase_MissingFile(t *testing.T) {
	handler := mcpPopulateDatabase(testDeps(t))

	req := makeCallToolRequest("populate_database", map[string]interface{}{
		"file_path": "/nonexistent/contracts.xlsx",
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing file")
	}
}

func TestMCPTool_PopulateDatabase_Failure(t *testing.T) {
	deps := testDeps(t)
	deps.Populator = &fakePopulator{err: errors.New("embedding unavailable")}
	handler := mcpPopulateDatabase(deps)

	result, err := handler(context.Background(), makeCallToolRequest("populate_database", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error when population fails")
	}
}

func TestMCPResource_DBStatus(t *testing.T) {
	deps := testDeps(t)
	handler := mcpResourceDBStatus(deps)

	contents, err := handler(context.Background(), makeReadResourceRequest("pactex://db-status"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}

	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents are not text: %T", contents[0])
	}

	var status DBStatusResponse
	if err := json.Unmarshal([]byte(text.Text), &status); err != nil {
		t.Fatal(err)
	}
	if status.CollectionName != "contracts_v1" || status.ItemCount != 3 || !status.IsHealthy {
		t.Errorf("status = %+v", status)
	}
}
