package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dyike/StockQA/internal/metrics"
	"github.com/dyike/StockQA/internal/tools"
	"github.com/dyike/StockQA/pkg/logger"
)

const (
	DefaultMaxIterations = 5
	reactPromptName      = "react"
)

var ErrIterationLimitExceeded = errors.New("max iterations exceeded")

type State string

const (
	StateThinking  State = "THINKING"
	StateActing    State = "ACTING"
	StateObserving State = "OBSERVING"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
)

// AgentStep is one think/act/observe iteration.
type AgentStep struct {
	Thought     string `json:"thought"`
	ActionName  string `json:"action_name,omitempty"`
	ActionInput string `json:"action_input,omitempty"`
	Observation string `json:"observation"`
	// ParseError is set when the oracle output could not be read as an action.
	ParseError string `json:"parse_error,omitempty"`
	Log        string `json:"log"`
}

// AgentResult is the outcome of one run. Exactly one of FinalAnswer and FailureReason is set.
type AgentResult struct {
	State         State       `json:"state"`
	FinalAnswer   string      `json:"final_answer,omitempty"`
	FailureReason string      `json:"failure_reason,omitempty"`
	Steps         []AgentStep `json:"steps"`
}

func (r *AgentResult) Succeeded() bool {
	return r.State == StateDone
}

// Err returns ErrIterationLimitExceeded for a failed run and nil otherwise.
func (r *AgentResult) Err() error {
	if r.State == StateFailed {
		return ErrIterationLimitExceeded
	}
	return nil
}

// ToolInvoker is the view of tools.Registry the loop depends on.
type ToolInvoker interface {
	Names() []string
	Describe() string
	Invoke(ctx context.Context, name, input string) (string, error)
}

// StepObserver is called after every recorded step, with 1-based iteration numbers.
type StepObserver func(iteration int, step AgentStep)

type LoopOption func(*ReasoningLoop)

func WithMaxIterations(n int) LoopOption {
	return func(l *ReasoningLoop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

func WithLogger(l *zap.SugaredLogger) LoopOption {
	return func(loop *ReasoningLoop) { loop.logger = logger.Nop(l) }
}

func WithStepObserver(o StepObserver) LoopOption {
	return func(l *ReasoningLoop) { l.observer = o }
}

// ReasoningLoop drives the ReAct cycle for a query. It holds no per-query state and
// may run any number of queries concurrently.
type ReasoningLoop struct {
	completer     Completer
	tools         ToolInvoker
	template      string
	maxIterations int
	logger        *zap.SugaredLogger
	observer      StepObserver
}

func NewReasoningLoop(completer Completer, toolset ToolInvoker, opts ...LoopOption) (*ReasoningLoop, error) {
	if completer == nil {
		return nil, fmt.Errorf("reasoning loop requires a completer")
	}
	if toolset == nil {
		return nil, fmt.Errorf("reasoning loop requires tools")
	}

	template, err := LoadPrompt(reactPromptName)
	if err != nil {
		return nil, err
	}

	l := &ReasoningLoop{
		completer:     completer,
		tools:         toolset,
		template:      template,
		maxIterations: DefaultMaxIterations,
		logger:        logger.Nop(nil),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *ReasoningLoop) MaxIterations() int {
	return l.maxIterations
}

// Run answers query. Exhausting the iteration budget is reported in the result, not as an error;
// errors are oracle failures and context cancellation.
func (l *ReasoningLoop) Run(ctx context.Context, query string) (*AgentResult, error) {
	steps := make([]AgentStep, 0, l.maxIterations)
	state := StateThinking

	for i := 1; i <= l.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l.logger.Debugw("reasoning iteration", "iteration", i)

		output, err := l.completer.Complete(ctx, l.BuildPrompt(query, steps))
		if err != nil {
			return nil, fmt.Errorf("oracle call failed on iteration %d: %w", i, err)
		}

		decision := ParseOutput(output)
		var step AgentStep

		switch decision.Kind {
		case DecisionFinal:
			state = l.transition(i, state, StateDone)
			metrics.AgentIterations.Observe(float64(i))
			l.logger.Infow("final answer reached", "iteration", i)
			return &AgentResult{State: state, FinalAnswer: decision.FinalAnswer, Steps: steps}, nil

		case DecisionInvalid:
			metrics.AgentParseErrors.Inc()
			l.logger.Warnw("unparsable oracle output", "iteration", i, "reason", decision.Err.Reason)
			step = AgentStep{
				Thought:     decision.Thought,
				Observation: decision.Err.Error(),
				ParseError:  decision.Err.Reason,
				Log:         decision.Log,
			}

		case DecisionAction:
			state = l.transition(i, state, StateActing)
			step = AgentStep{
				Thought:     decision.Thought,
				ActionName:  decision.Action,
				ActionInput: decision.ActionInput,
				Log:         decision.Log,
			}
			step.Observation = l.act(ctx, i, &step)
		}

		state = l.transition(i, state, StateObserving)
		steps = append(steps, step)
		if l.observer != nil {
			l.observer(i, step)
		}
		state = l.transition(i, state, StateThinking)
	}

	l.transition(l.maxIterations, state, StateFailed)
	metrics.AgentIterations.Observe(float64(l.maxIterations))
	l.logger.Warnw("iteration limit reached", "max_iterations", l.maxIterations)
	return &AgentResult{
		State:         StateFailed,
		FailureReason: ErrIterationLimitExceeded.Error(),
		Steps:         steps,
	}, nil
}

// act invokes the chosen tool and returns the observation. An unknown tool is
// recorded as a parse error on step.
func (l *ReasoningLoop) act(ctx context.Context, iteration int, step *AgentStep) string {
	l.logger.Infow("executing tool", "iteration", iteration, "tool", step.ActionName, "input", step.ActionInput)

	observation, err := l.tools.Invoke(ctx, step.ActionName, step.ActionInput)
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		metrics.AgentParseErrors.Inc()
		step.ParseError = err.Error()
		return err.Error()
	case err != nil:
		l.logger.Warnw("tool failed", "tool", step.ActionName, "error", err)
		return fmt.Sprintf("Error: %v", err)
	}

	l.logger.Debugw("tool executed", "tool", step.ActionName, "observation", truncate(observation, 200))
	return observation
}

func (l *ReasoningLoop) transition(iteration int, from, to State) State {
	l.logger.Debugw("state transition", "iteration", iteration, "from", from, "to", to)
	return to
}

// BuildPrompt renders the full prompt for the next oracle call.
func (l *ReasoningLoop) BuildPrompt(query string, steps []AgentStep) string {
	return renderPrompt(l.template, map[string]string{
		"Tools":      l.tools.Describe(),
		"ToolNames":  strings.Join(l.tools.Names(), ", "),
		"Input":      query,
		"Scratchpad": scratchpad(steps),
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
