package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/trad/internal/arbiter"
	"github.com/kalambet/trad/internal/storage"
)

func newTestMCPDeps(t *testing.T, inf arbiter.Inferer) (MCPDeps, *storage.Store) {
	t.Helper()
	app := setupApp(t, inf)
	return MCPDeps{
		Translator: app.deps.Translator,
		Feedback:   app.deps.Feedback,
		Languages:  app.deps.Languages,
		Stats:      app.deps.Stats,
	}, app.store
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

func TestMCPTool_Translate(t *testing.T) {
	deps, _ := newTestMCPDeps(t, &echoInferer{})
	handler := mcpTranslate(deps)

	result, err := handler(context.Background(), makeCallToolRequest("translate", map[string]interface{}{
		"src_lang": "quy_Latn",
		"dst_lang": "spa_Latn",
		"text":     "yaku",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "spa_Latn(yaku)" {
		t.Errorf("text = %q", got)
	}
}

func TestMCPTool_TranslateErrors(t *testing.T) {
	tests := []struct {
		name string
		inf  *echoInferer
		args map[string]interface{}
		want string
	}{
		{"missing text", &echoInferer{}, map[string]interface{}{"src_lang": "spa_Latn", "dst_lang": "quy_Latn"}, "text is required"},
		{"unknown language", &echoInferer{}, map[string]interface{}{"src_lang": "spa_Latn", "dst_lang": "xx", "text": "hola"}, "dst_lang"},
		{"backend failure", &echoInferer{err: errors.New("gpu melted")}, map[string]interface{}{"src_lang": "spa_Latn", "dst_lang": "quy_Latn", "text": "hola"}, "translation backend error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, _ := newTestMCPDeps(t, tt.inf)
			result, err := mcpTranslate(deps)(context.Background(), makeCallToolRequest("translate", tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Fatal("expected error result")
			}
			if got := toolText(t, result); !strings.Contains(got, tt.want) {
				t.Errorf("text = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestMCPTool_Feedback(t *testing.T) {
	deps, store := newTestMCPDeps(t, &echoInferer{})
	args := map[string]interface{}{
		"src_lang": "spa_Latn",
		"dst_lang": "quy_Latn",
		"src_text": "agua",
		"dst_text": "unu",
	}

	result, err := mcpSubmit(deps, false)(context.Background(), makeCallToolRequest("reject_translation", args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError || !strings.Contains(toolText(t, result), "suggestion") {
		t.Fatalf("reject without suggestion = %+v", result)
	}

	args["suggestion"] = "yaku"
	result, err = mcpSubmit(deps, false)(context.Background(), makeCallToolRequest("reject_translation", args))
	if err != nil || result.IsError {
		t.Fatalf("reject: %v %s", err, toolText(t, result))
	}

	result, err = mcpSubmit(deps, true)(context.Background(), makeCallToolRequest("accept_translation", args))
	if err != nil || result.IsError {
		t.Fatalf("accept: %v %s", err, toolText(t, result))
	}

	recs, err := store.ListRecords(context.Background(), storage.RecordFilter{})
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("stored %d records, want 2", len(recs))
	}
	for _, r := range recs {
		if r.Validated || r.ActingUser != "" {
			t.Errorf("anonymous feedback record = %+v", r)
		}
	}
}

func TestMCPTool_ListLanguages(t *testing.T) {
	deps, _ := newTestMCPDeps(t, &echoInferer{})

	result, err := mcpListLanguages(deps)(context.Background(), makeCallToolRequest("list_languages", map[string]interface{}{
		"code": "quy",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := toolText(t, result)
	if !strings.Contains(got, "quy_Latn\tQuechua\tnative") || strings.Contains(got, "spa_Latn") {
		t.Errorf("text = %q", got)
	}

	result, _ = mcpListLanguages(deps)(context.Background(), makeCallToolRequest("list_languages", map[string]interface{}{
		"code": "zzz",
	}))
	if toolText(t, result) != "No matching languages." {
		t.Errorf("empty text = %q", toolText(t, result))
	}
}

func TestMCPResource_Stats(t *testing.T) {
	deps, _ := newTestMCPDeps(t, &echoInferer{})
	if _, err := deps.Translator.TranslateCodes(context.Background(), nil, "eng_Latn", "spa_Latn", "hi"); err != nil {
		t.Fatalf("TranslateCodes: %v", err)
	}

	contents, err := mcpResourceStats(deps)(context.Background(), makeReadResourceRequest("records://stats"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	var st storage.RecordStats
	if err := json.Unmarshal([]byte(tc.Text), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.Total != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestMCPDeps(t, &echoInferer{})
	if NewMCPServer(deps) == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
