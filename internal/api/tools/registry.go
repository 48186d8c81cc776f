package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/MintuTF/tripply/app/tracer"
	"github.com/MintuTF/tripply/internal/types"
)

// Tool is one callable capability exposed to the model: a name, a
// machine-checkable argument schema, and a bounded read-only lookup.
type Tool interface {
	Name() string
	Declaration() *genai.FunctionDeclaration
	Execute(ctx context.Context, args map[string]any) types.ToolResult
}

// Registry holds the tools attached to a model call and runs them with a
// per-execution timeout. Failures are captured in the result rather than
// returned, so one failing tool never aborts an orchestration round.
type Registry struct {
	logger  *slog.Logger
	timeout time.Duration
	tools   map[string]Tool
	order   []string
}

func NewRegistry(logger *slog.Logger, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Registry{
		logger:  logger,
		timeout: timeout,
		tools:   make(map[string]Tool),
	}
}

func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Declarations returns the function schemas in registration order, ready
// to attach to a GenerateContentConfig.
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(r.order))
	for _, name := range r.order {
		decls = append(decls, r.tools[name].Declaration())
	}
	return decls
}

// Execute runs one tool call under the registry timeout. Unknown tools
// and timeouts come back as failed results.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) types.ToolResult {
	ctx, span := otel.Tracer("ToolRegistry").Start(ctx, "Execute", trace.WithAttributes(
		attribute.String("tool.name", name),
	))
	defer span.End()

	tool, ok := r.tools[name]
	if !ok {
		r.logger.WarnContext(ctx, "Model requested unknown tool", slog.String("tool", name))
		tracer.RecordToolExecution(ctx, name, true)
		return FailedResult(fmt.Sprintf("unknown tool %q", name))
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	result := tool.Execute(execCtx, args)
	if execCtx.Err() != nil && !result.Failed {
		result = FailedResult(fmt.Sprintf("tool %q timed out after %s", name, r.timeout))
	}

	if result.Failed {
		span.SetAttributes(attribute.String("tool.error", result.Message))
		r.logger.WarnContext(ctx, "Tool execution failed",
			slog.String("tool", name),
			slog.String("message", result.Message),
			slog.Duration("elapsed", time.Since(start)),
		)
	} else {
		r.logger.DebugContext(ctx, "Tool execution resolved",
			slog.String("tool", name),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
	tracer.RecordToolExecution(ctx, name, result.Failed)
	return result
}

// FailedResult captures a tool failure as data.
func FailedResult(message string) types.ToolResult {
	return types.ToolResult{Failed: true, Message: message}
}
