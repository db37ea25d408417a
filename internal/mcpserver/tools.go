package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/joestump/client-radar/internal/extract"
	"github.com/joestump/client-radar/internal/timeline"
)

// --- Tool Definitions ---

func readContactsTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"read_contacts",
		"Read the address book (individual contacts only) from a decrypted MicroMsg database.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"db_path": {
					"type": "string",
					"description": "Path to the decrypted MicroMsg database file"
				}
			},
			"required": ["db_path"]
		}`),
	)
}

func readPostsTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"read_posts",
		"Read timeline posts from a decrypted SNS database, newest first. The table and column layout is detected automatically; when detection fails the error lists the tables or columns that were found.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"db_path": {
					"type": "string",
					"description": "Path to the decrypted SNS database file"
				},
				"parse": {
					"type": "boolean",
					"description": "Also parse each post's XML payload into text and media (default: false)"
				}
			},
			"required": ["db_path"]
		}`),
	)
}

func inspectDatabaseTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"inspect_database",
		"List every table with its columns and row count, and report which timeline table and columns would be used.",
		json.RawMessage(`{
			"type": "object",
			"properties": {
				"db_path": {
					"type": "string",
					"description": "Path to the database file"
				}
			},
			"required": ["db_path"]
		}`),
	)
}

func runDecryptionTool() mcp.Tool {
	return mcp.NewToolWithRawSchema(
		"run_decryption",
		"Run the external decryption helper and return its output, normally a JSON document with status, database paths and feeds.",
		json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
	)
}

// --- Tool Handlers ---

// dbArgs is shared by the database tools.
type dbArgs struct {
	DBPath string `json:"db_path"`
	Parse  bool   `json:"parse"`
}

func bindDB(req mcp.CallToolRequest) (dbArgs, *mcp.CallToolResult) {
	var args dbArgs
	if err := req.BindArguments(&args); err != nil {
		return args, mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err))
	}
	if args.DBPath == "" {
		return args, mcp.NewToolResultError("db_path is required")
	}
	return args, nil
}

func (s *Server) handleReadContacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, bad := bindDB(req)
	if bad != nil {
		return bad, nil
	}
	contacts, err := s.engine.ReadContacts(ctx, args.DBPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if contacts == nil {
		contacts = []extract.ContactRecord{}
	}
	return resultJSON(contacts)
}

// postResult mirrors a read_posts entry.
type postResult struct {
	extract.PostRecord
	Parsed *timeline.Content `json:"parsed,omitempty"`
}

func (s *Server) handleReadPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, bad := bindDB(req)
	if bad != nil {
		return bad, nil
	}
	posts, err := s.engine.ReadPosts(ctx, args.DBPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out := make([]postResult, len(posts))
	for i, p := range posts {
		out[i].PostRecord = p
		if args.Parse {
			if c, ok := timeline.Parse(p.RawContent); ok {
				out[i].Parsed = &c
			}
		}
	}
	return resultJSON(out)
}

func (s *Server) handleInspectDatabase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, bad := bindDB(req)
	if bad != nil {
		return bad, nil
	}
	in, err := s.engine.Inspect(ctx, args.DBPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return resultJSON(in)
}

func (s *Server) handleRunDecryption(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := s.newDecryptor()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := d.Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if res.Output == "" {
		return mcp.NewToolResultError(fmt.Sprintf("decryptor produced no output (exit code %d)", res.ExitCode)), nil
	}
	return mcp.NewToolResultText(res.Output), nil
}

// resultJSON marshals v to JSON and returns it as a tool result.
func resultJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
