package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Resource URIs.
const (
	FieldsURI = "fuzzidx://fields"
	StatusURI = "fuzzidx://status"
)

// FieldOutput is one entry of the fields resource.
type FieldOutput struct {
	OwnerType string `json:"owner_type"`
	Field     string `json:"field"`
}

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        "fields",
		URI:         FieldsURI,
		Description: "Searchable owner types and fields",
		MIMEType:    "application/json",
	}, s.handleFieldsResource)

	s.mcp.AddResource(&mcp.Resource{
		Name:        "status",
		URI:         StatusURI,
		Description: "Index statistics and reindex progress",
		MIMEType:    "application/json",
	}, s.handleStatusResource)
}

func (s *Server) handleFieldsResource(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	fields := []FieldOutput{}
	for _, ownerType := range s.registry.OwnerTypes() {
		for _, field := range s.registry.Fields(ownerType) {
			fields = append(fields, FieldOutput{OwnerType: ownerType, Field: field})
		}
	}
	return jsonResource(FieldsURI, fields)
}

func (s *Server) handleStatusResource(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	out, err := s.handleIndexStatus(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(StatusURI, out)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(content),
		}},
	}, nil
}
