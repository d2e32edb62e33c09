package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/StockQA/internal/tools"
)

// scriptedCompleter returns its outputs in order and repeats the last one.
type scriptedCompleter struct {
	outputs []string
	prompts []string
	err     error
}

func (s *scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	i := len(s.prompts) - 1
	if i >= len(s.outputs) {
		i = len(s.outputs) - 1
	}
	return s.outputs[i], nil
}

type fakeTools struct {
	calls []string
}

func (f *fakeTools) Names() []string {
	return []string{tools.RealtimePriceToolName, tools.HistoricalPriceToolName}
}

func (f *fakeTools) Describe() string {
	return "get_realtime_stock_price: current price\nget_historical_stock_price: history"
}

func (f *fakeTools) Invoke(_ context.Context, name, input string) (string, error) {
	f.calls = append(f.calls, name+"|"+input)
	switch name {
	case tools.RealtimePriceToolName:
		return fmt.Sprintf("Current price of %s is $150.25", strings.ToUpper(input)), nil
	case tools.HistoricalPriceToolName:
		return `{"symbol": "AAPL"}`, nil
	default:
		return "", &tools.UnknownToolError{Name: name, Available: f.Names()}
	}
}

func newTestLoop(t *testing.T, c Completer, ti ToolInvoker, opts ...LoopOption) *ReasoningLoop {
	t.Helper()
	loop, err := NewReasoningLoop(c, ti, opts...)
	require.NoError(t, err)
	return loop
}

func TestRunReachesFinalAnswer(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{
		"I should look up the price.\nAction: get_realtime_stock_price\nAction Input: AAPL",
		"I now know the final answer\nFinal Answer: Apple is trading at $150.25.",
	}}
	ti := &fakeTools{}
	loop := newTestLoop(t, c, ti)

	result, err := loop.Run(context.Background(), "What is the current price of Apple stock?")
	require.NoError(t, err)

	assert.True(t, result.Succeeded())
	assert.NoError(t, result.Err())
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, "Apple is trading at $150.25.", result.FinalAnswer)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, tools.RealtimePriceToolName, result.Steps[0].ActionName)
	assert.Equal(t, "AAPL", result.Steps[0].ActionInput)
	assert.Equal(t, "Current price of AAPL is $150.25", result.Steps[0].Observation)
	assert.Equal(t, []string{"get_realtime_stock_price|AAPL"}, ti.calls)

	require.Len(t, c.prompts, 2)
	assert.Contains(t, c.prompts[1], "Action Input: AAPL\nObservation: Current price of AAPL is $150.25\nThought: ")
}

func TestRunPromptListsTools(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{"Final Answer: done"}}
	loop := newTestLoop(t, c, &fakeTools{})

	_, err := loop.Run(context.Background(), "How did TSLA do?")
	require.NoError(t, err)

	prompt := c.prompts[0]
	assert.Contains(t, prompt, "get_realtime_stock_price: current price")
	assert.Contains(t, prompt, "should be one of [get_realtime_stock_price, get_historical_stock_price]")
	assert.Contains(t, prompt, "Question: How did TSLA do?\n")
	assert.NotContains(t, prompt, "{{.")
}

func TestRunRecoversFromMalformedOutput(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{
		"Let me think about Apple for a second.",
		"Action: get_realtime_stock_price\nAction Input: AAPL",
		"Final Answer: $150.25",
	}}
	loop := newTestLoop(t, c, &fakeTools{})

	result, err := loop.Run(context.Background(), "price of apple?")
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, "$150.25", result.FinalAnswer)
	require.Len(t, result.Steps, 2)
	assert.Empty(t, result.Steps[0].ActionName)
	assert.Equal(t, "Invalid Format: Missing 'Action:' after 'Thought:'", result.Steps[0].ParseError)
	assert.Equal(t, result.Steps[0].ParseError, result.Steps[0].Observation)
	assert.Contains(t, c.prompts[1], "Observation: Invalid Format: Missing 'Action:' after 'Thought:'")
}

func TestRunStopsAtIterationLimit(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{"Action: get_realtime_stock_price\nAction Input: AAPL"}}
	ti := &fakeTools{}
	loop := newTestLoop(t, c, ti)

	result, err := loop.Run(context.Background(), "never ending")
	require.NoError(t, err)

	assert.Equal(t, StateFailed, result.State)
	assert.False(t, result.Succeeded())
	assert.Equal(t, "max iterations exceeded", result.FailureReason)
	assert.ErrorIs(t, result.Err(), ErrIterationLimitExceeded)
	assert.Len(t, result.Steps, DefaultMaxIterations)
	assert.Len(t, c.prompts, DefaultMaxIterations)
	assert.Len(t, ti.calls, DefaultMaxIterations)
}

func TestRunStopsAtIterationLimitOnGarbage(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{"???"}}
	loop := newTestLoop(t, c, &fakeTools{}, WithMaxIterations(3))

	result, err := loop.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.Len(t, result.Steps, 3)
	assert.Len(t, c.prompts, 3)
}

func TestRunUnknownToolIsRecoverable(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{
		"Action: get_stock_news\nAction Input: AAPL",
		"Final Answer: I cannot get news.",
	}}
	loop := newTestLoop(t, c, &fakeTools{})

	result, err := loop.Run(context.Background(), "news for apple")
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	require.Len(t, result.Steps, 1)
	step := result.Steps[0]
	assert.Equal(t, "get_stock_news", step.ActionName)
	assert.Equal(t,
		"get_stock_news is not a valid tool, try one of [get_realtime_stock_price get_historical_stock_price].",
		step.Observation)
	assert.NotEmpty(t, step.ParseError)
}

func TestRunPropagatesOracleError(t *testing.T) {
	boom := errors.New("backend unreachable")
	loop := newTestLoop(t, &scriptedCompleter{err: boom}, &fakeTools{})

	result, err := loop.Run(context.Background(), "q")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, boom)
}

func TestRunHonoursCanceledContext(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{"Final Answer: x"}}
	loop := newTestLoop(t, c, &fakeTools{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loop.Run(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, c.prompts)
}

func TestRunStepObserver(t *testing.T) {
	c := &scriptedCompleter{outputs: []string{
		"Action: get_historical_stock_price\nAction Input: AAPL,1mo,1d",
		"Final Answer: ok",
	}}
	var seen []int
	loop := newTestLoop(t, c, &fakeTools{}, WithStepObserver(func(i int, step AgentStep) {
		seen = append(seen, i)
		assert.Equal(t, tools.HistoricalPriceToolName, step.ActionName)
	}))

	_, err := loop.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, seen)
}

func TestNewReasoningLoopValidates(t *testing.T) {
	_, err := NewReasoningLoop(nil, &fakeTools{})
	assert.Error(t, err)
	_, err = NewReasoningLoop(&scriptedCompleter{}, nil)
	assert.Error(t, err)
}

func TestRenderPromptIsSinglePass(t *testing.T) {
	out := renderPrompt("Q: {{.Input}} S: {{.Scratchpad}}", map[string]string{
		"Input":      "{{.Scratchpad}}",
		"Scratchpad": "pad",
	})
	assert.Equal(t, "Q: {{.Scratchpad}} S: pad", out)
}
