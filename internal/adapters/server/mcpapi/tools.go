package mcpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hylla/atelier/internal/adapters/server/common"
	"github.com/hylla/atelier/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// mutationKindNames lists every accepted mutation kind for tool schemas.
func mutationKindNames() []string {
	kinds := domain.Kinds()
	out := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, string(kind))
	}
	return out
}

// registerMutationTools registers submit, drain, and connectivity tools.
func registerMutationTools(srv *mcpserver.MCPServer, sync common.SyncService) {
	srv.AddTool(
		mcp.NewTool(
			"atelier.submit_mutation",
			mcp.WithDescription("Submit one item or room mutation. It is sent now when online with an empty queue and queued otherwise."),
			mcp.WithString("kind", mcp.Required(), mcp.Description("Mutation kind"), mcp.Enum(mutationKindNames()...)),
			mcp.WithObject("payload", mcp.Required(), mcp.Description("Mutation payload object; must include project_id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				Kind    string          `json:"kind"`
				Payload json.RawMessage `json:"payload"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.Kind) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "kind" not found`), nil
			}
			if len(args.Payload) == 0 || string(args.Payload) == "null" {
				return mcp.NewToolResultError(`invalid_request: required argument "payload" not found`), nil
			}
			res, err := sync.SubmitMutation(ctx, common.SubmitMutationRequest{
				Kind:    args.Kind,
				Payload: args.Payload,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(res)
			if err != nil {
				return nil, fmt.Errorf("encode submit_mutation result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"atelier.drain",
			mcp.WithDescription("Replay queued mutations in order until the queue empties, a mutation fails, or connectivity drops."),
			mcp.WithBoolean("force", mcp.Description("Ignore an open backoff window")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			run, err := sync.Drain(ctx, common.DrainRequest{Force: req.GetBool("force", false)})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(run)
			if err != nil {
				return nil, fmt.Errorf("encode drain result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"atelier.set_connectivity",
			mcp.WithDescription("Report an online or offline transition; going online triggers a drain."),
			mcp.WithBoolean("online", mcp.Required(), mcp.Description("Whether the remote is reachable")),
			mcp.WithString("source", mcp.Description("Signal source label")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			online, err := req.RequireBool("online")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			res, err := sync.SetConnectivity(ctx, common.SetConnectivityRequest{
				Online: online,
				Source: req.GetString("source", "mcp"),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(res)
			if err != nil {
				return nil, fmt.Errorf("encode set_connectivity result: %w", err)
			}
			return result, nil
		},
	)
}

// registerProjectTools registers the project read and offline cache tools.
func registerProjectTools(srv *mcpserver.MCPServer, sync common.SyncService) {
	srv.AddTool(
		mcp.NewTool(
			"atelier.get_project",
			mcp.WithDescription("Return project state, from the remote when online or the cached snapshot otherwise, with pending mutations overlaid."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projectID, err := req.RequireString("project_id")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			view, err := sync.LoadProject(ctx, projectID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(view)
			if err != nil {
				return nil, fmt.Errorf("encode get_project result: %w", err)
			}
			return result, nil
		},
	)
	srv.AddTool(
		mcp.NewTool(
			"atelier.list_cached_projects",
			mcp.WithDescription("List projects with an offline snapshot, with fetch time and pending mutation counts."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projects, err := sync.ListCachedProjects(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"projects": projects})
			if err != nil {
				return nil, fmt.Errorf("encode list_cached_projects result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"atelier.forget_project",
			mcp.WithDescription("Drop one project's offline snapshot. Queued mutations for it are kept."),
			mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			projectID, err := req.RequireString("project_id")
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			if err := sync.ForgetProject(ctx, projectID); err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"project_id": projectID, "forgotten": true})
			if err != nil {
				return nil, fmt.Errorf("encode forget_project result: %w", err)
			}
			return result, nil
		},
	)
}
