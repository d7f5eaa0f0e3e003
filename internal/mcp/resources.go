package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (h *handlers) catalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	courses, err := h.ds.ListCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, courses)
}

func (h *handlers) enrolledCourses(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	h.sess.RecordActivity()
	courses, err := h.ds.ListEnrollments(ctx, h.sess.Current())
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, courses)
}
