package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"strategy-mcp/internal/portfolio"
	"strategy-mcp/internal/trigger"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// ResponseEnvelope is the JSON body of every successful tool call.
type ResponseEnvelope struct {
	Data     any      `json:"data"`
	Warnings []string `json:"warnings,omitempty"`
	Guidance []string `json:"_guidance,omitempty"`
}

// WrapResponse builds the envelope for a tool result.
func WrapResponse(data any, warnings []string, guidance []string) ResponseEnvelope {
	return ResponseEnvelope{Data: data, Warnings: warnings, Guidance: guidance}
}

func (s *Server) formatResult(env ResponseEnvelope) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(out)}},
	}, nil
}

// errorResult reports a tool failure to the client instead of failing the protocol call.
func errorResult(tool string, err error) *mcp.CallToolResult {
	var verrs portfolio.ValidationErrors
	var nf *portfolio.NotFoundError

	kind := "error"
	switch {
	case errors.As(err, &verrs):
		kind = "validation failed"
	case errors.As(err, &nf):
		kind = "not found"
	case errors.Is(err, trigger.ErrReviewClosed):
		kind = "conflict"
	}

	log.Warn().Err(err).Str("tool", tool).Str("kind", kind).Msg("Tool call failed")
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%s: %v", kind, err)}},
	}
}

// parseDate reads YYYY-MM-DD or RFC 3339. An empty string yields the zero time.
func parseDate(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: expected YYYY-MM-DD or RFC 3339, got %q", field, v)
	}
	return t, nil
}

func parseOptionalDate(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := parseDate(field, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
