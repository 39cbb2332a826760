package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gamma-omg/rag-chat/retriever"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type chunkSearcher interface {
	Search(ctx context.Context, query string, n int) ([]retriever.Result, error)
}

func NewRagServer(a asker, searcher chunkSearcher, results int) *server.MCPServer {
	srv := server.NewMCPServer("RAG chat", "0.1.0", server.WithToolCapabilities(false))

	ask := mcp.NewTool("ask",
		mcp.WithDescription("Answer a question about the ingested document, grounded on its most relevant passages"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Question about the document"),
		))

	srv.AddTool(ask, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		res := a.Ask(ctx, q)
		if res.Status != StatusSuccess {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %s", res.Kind, res.Error)), nil
		}

		return mcp.NewToolResultText(res.Response), nil
	})

	search := mcp.NewTool("search",
		mcp.WithDescription("Search the ingested document and get the closest passages for RAG"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		))

	srv.AddTool(search, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		res, err := searcher.Search(ctx, q, results)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var response string
		for _, r := range res {
			raw, err := json.Marshal(struct {
				Score   float32 `json:"score"`
				Source  string  `json:"source"`
				ChunkID int     `json:"chunk_id"`
				Text    string  `json:"text"`
			}{
				Score:   r.Relevance,
				Source:  r.Source,
				ChunkID: r.ChunkID,
				Text:    r.Text,
			})
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}

			response += fmt.Sprintf("%s\n", string(raw))
		}

		return mcp.NewToolResultText(response), nil
	})

	return srv
}
