package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/StockQA/internal/metrics"
)

// Registry is the fixed set of tools offered to the reasoning loop.
// It is read-only after construction and safe for concurrent use.
type Registry struct {
	tools map[string]tool.InvokableTool
	infos map[string]*schema.ToolInfo
	names []string
}

// NewRegistry indexes tools by the name reported by their Info. Names must be unique.
func NewRegistry(ctx context.Context, tools ...tool.InvokableTool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]tool.InvokableTool, len(tools)),
		infos: make(map[string]*schema.ToolInfo, len(tools)),
		names: make([]string, 0, len(tools)),
	}
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("get tool info: %w", err)
		}
		if info.Name == "" {
			return nil, fmt.Errorf("tool has no name")
		}
		if _, dup := r.tools[info.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", info.Name)
		}
		r.tools[info.Name] = t
		r.infos[info.Name] = info
		r.names = append(r.names, info.Name)
	}
	return r, nil
}

// NewPriceRegistry builds the registry holding the real-time and historical price tools.
func NewPriceRegistry(ctx context.Context, realtime *RealtimePriceTool, historical *HistoricalPriceTool) (*Registry, error) {
	return NewRegistry(ctx, realtime, historical)
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func (r *Registry) Lookup(name string) (tool.InvokableTool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Describe renders one "name: description" line per tool for the prompt.
func (r *Registry) Describe() string {
	var b strings.Builder
	for i, name := range r.names {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", name, r.infos[name].Desc)
	}
	return b.String()
}

// Invoke runs the named tool on the raw input text.
// An unregistered name yields an *UnknownToolError and no tool runs.
func (r *Registry) Invoke(ctx context.Context, name, input string) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", &UnknownToolError{Name: name, Available: r.Names()}
	}

	out, err := t.InvokableRun(ctx, input)
	metrics.RecordToolInvocation(name, err != nil || strings.HasPrefix(out, "Error"))
	if err != nil {
		return "", fmt.Errorf("invoke tool %s: %w", name, err)
	}
	return out, nil
}
