package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/oops"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	CodeQueryInvalid    = "query.invalid"
	CodeRetrievalFailed = "retrieval.failed"
	CodeInternalFailure = "internal.failure"

	errorResponse = "An error occurred processing your query."
)

// QueryResult is the outcome of one query: an answer on success, or an error
// kind and message otherwise.
type QueryResult struct {
	Response string `json:"response"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

type contextRetriever interface {
	Retrieve(ctx context.Context, query string, n int) (string, error)
}

type answerGenerator interface {
	Generate(ctx context.Context, context, query string) string
}

// Asker serves the query path. It only reads from the index and keeps no
// per-request state, so concurrent calls are safe.
type Asker struct {
	log       *slog.Logger
	retriever contextRetriever
	generator answerGenerator
	results   int
}

func (a *Asker) Ask(ctx context.Context, query string) (res QueryResult) {
	defer func() {
		if r := recover(); r != nil {
			res = errorResult(oops.Code(CodeInternalFailure).Errorf("panic: %v", r))
			a.log.Error("query panicked", slog.Any("panic", r))
		}
	}()

	answer, err := a.answer(ctx, query)
	if err != nil {
		a.log.Error("failed to process query", slog.String("error", err.Error()))
		return errorResult(err)
	}

	return QueryResult{
		Response: answer,
		Status:   StatusSuccess,
	}
}

func (a *Asker) answer(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", oops.Code(CodeQueryInvalid).Errorf("query is empty")
	}

	relevant, err := a.retriever.Retrieve(ctx, query, a.results)
	if err != nil {
		return "", oops.Code(CodeRetrievalFailed).With("query", query).Wrapf(err, "failed to retrieve context")
	}

	return a.generator.Generate(ctx, relevant, query), nil
}

func errorResult(err error) QueryResult {
	return QueryResult{
		Response: errorResponse,
		Status:   StatusError,
		Error:    err.Error(),
		Kind:     codeOf(err),
	}
}

func codeOf(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return CodeInternalFailure
	}

	code := oopsErr.Code()
	if code == nil {
		return CodeInternalFailure
	}
	if s := fmt.Sprintf("%v", code); s != "" {
		return s
	}

	return CodeInternalFailure
}
