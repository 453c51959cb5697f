package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/trad/internal/arbiter"
	"github.com/kalambet/trad/internal/storage"
)

// MCPDeps holds dependencies for the MCP server. Every tool call runs as
// the anonymous principal.
type MCPDeps struct {
	Translator *arbiter.Translator
	Feedback   *arbiter.Feedback
	Languages  LanguageLister
	Stats      StatsSource
}

// NewMCPServer creates an MCP server with the translation tools and the
// record stats resource registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"trad",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("trad translates between catalog languages, pivoting through the hub language for native-model languages, and collects feedback on translations."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("translate",
			mcp.WithDescription("Translate text between two catalog language codes, e.g. spa_Latn to quy_Latn"),
			mcp.WithString("src_lang", mcp.Description("Source language code"), mcp.Required()),
			mcp.WithString("dst_lang", mcp.Description("Destination language code"), mcp.Required()),
			mcp.WithString("text", mcp.Description("Text to translate"), mcp.Required()),
		),
		mcpTranslate(deps),
	)

	s.AddTool(
		mcp.NewTool("accept_translation",
			mcp.WithDescription("Mark a translation as good"),
			mcp.WithString("src_lang", mcp.Description("Source language code"), mcp.Required()),
			mcp.WithString("dst_lang", mcp.Description("Destination language code"), mcp.Required()),
			mcp.WithString("src_text", mcp.Description("Original text"), mcp.Required()),
			mcp.WithString("dst_text", mcp.Description("Translated text"), mcp.Required()),
			mcp.WithString("model_name", mcp.Description("Model that produced the translation")),
		),
		mcpSubmit(deps, true),
	)

	s.AddTool(
		mcp.NewTool("reject_translation",
			mcp.WithDescription("Mark a translation as wrong and propose a better one"),
			mcp.WithString("src_lang", mcp.Description("Source language code"), mcp.Required()),
			mcp.WithString("dst_lang", mcp.Description("Destination language code"), mcp.Required()),
			mcp.WithString("src_text", mcp.Description("Original text"), mcp.Required()),
			mcp.WithString("dst_text", mcp.Description("Translated text"), mcp.Required()),
			mcp.WithString("suggestion", mcp.Description("Corrected translation"), mcp.Required()),
			mcp.WithString("model_name", mcp.Description("Model that produced the translation")),
		),
		mcpSubmit(deps, false),
	)

	s.AddTool(
		mcp.NewTool("list_languages",
			mcp.WithDescription("List catalog languages, optionally filtered by a code substring"),
			mcp.WithString("code", mcp.Description("Code substring, e.g. quy")),
		),
		mcpListLanguages(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"records://stats",
			"Record Stats",
			mcp.WithResourceDescription("Counts of stored translation records by review state"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpTranslate(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		src, err := req.RequireString("src_lang")
		if err != nil {
			return mcpError("src_lang is required"), nil
		}
		dst, err := req.RequireString("dst_lang")
		if err != nil {
			return mcpError("dst_lang is required"), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		rec, err := deps.Translator.TranslateCodes(ctx, nil, src, dst, text)
		if err != nil {
			return mcpErrorFor(err), nil
		}
		return mcpText(rec.DstText), nil
	}
}

func mcpSubmit(deps MCPDeps, accept bool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var s arbiter.Submission
		for _, f := range []struct {
			key string
			dst *string
		}{
			{"src_lang", &s.SrcLang},
			{"dst_lang", &s.DstLang},
			{"src_text", &s.SrcText},
			{"dst_text", &s.DstText},
		} {
			v, err := req.RequireString(f.key)
			if err != nil {
				return mcpError(f.key + " is required"), nil
			}
			*f.dst = v
		}
		s.ModelName = req.GetString("model_name", "")

		var (
			recs []storage.Record
			err  error
		)
		if accept {
			recs, err = deps.Feedback.SubmitAccept(ctx, nil, s)
		} else {
			s.Suggestion = req.GetString("suggestion", "")
			recs, err = deps.Feedback.SubmitReject(ctx, nil, s)
		}
		if err != nil {
			return mcpErrorFor(err), nil
		}

		ids := make([]string, len(recs))
		for i, r := range recs {
			ids[i] = r.ID
		}
		return mcpText(fmt.Sprintf("Recorded feedback %s", strings.Join(ids, ", "))), nil
	}
}

func mcpListLanguages(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		langs, err := deps.Languages.List(ctx, req.GetString("code", ""))
		if err != nil {
			return mcpError(fmt.Sprintf("listing languages: %v", err)), nil
		}
		if len(langs) == 0 {
			return mcpText("No matching languages."), nil
		}

		var sb strings.Builder
		for _, l := range langs {
			fmt.Fprintf(&sb, "%s\t%s", l.Code, l.Name)
			if l.IsNative {
				sb.WriteString("\tnative")
			}
			sb.WriteByte('\n')
		}
		return mcpText(sb.String()), nil
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		st, err := deps.Stats.RecordStats(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get record stats: %w", err)
		}

		b, err := json.Marshal(st)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal record stats: %w", err)
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

func mcpErrorFor(err error) *mcp.CallToolResult {
	var ve *arbiter.ValidationError
	switch {
	case errors.As(err, &ve):
		return mcpError(ve.Error())
	case errors.Is(err, arbiter.ErrInference):
		return mcpError(arbiter.ErrInference.Error())
	case errors.Is(err, arbiter.ErrUnauthorized):
		return mcpError("authentication required")
	default:
		return mcpError(fmt.Sprintf("request failed: %v", err))
	}
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
