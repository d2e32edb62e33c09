package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/StockQA/internal/agents"
	"github.com/dyike/StockQA/internal/storage"
	"github.com/dyike/StockQA/internal/tools"
	"github.com/dyike/StockQA/pkg/dataflows"
)

type quoteOnlySource struct {
	prices map[string]float64
}

func (q *quoteOnlySource) Name() string { return "test" }

func (q *quoteOnlySource) LatestQuote(_ context.Context, symbol string) (dataflows.QuoteFields, error) {
	if p, ok := q.prices[symbol]; ok {
		return dataflows.QuoteFields{dataflows.FieldRegularMarketPrice: p}, nil
	}
	return dataflows.QuoteFields{}, nil
}

func (q *quoteOnlySource) History(context.Context, string, dataflows.HistoryRequest) ([]dataflows.Bar, error) {
	return nil, nil
}

var lastObservationRe = regexp.MustCompile(`Observation: (.*)\nThought: \s*$`)

// priceOracle asks for AAPL's price once, then answers from the observation.
func priceOracle(_ context.Context, prompt string) (string, error) {
	if m := lastObservationRe.FindStringSubmatch(prompt); m != nil {
		return "I now know the final answer\nFinal Answer: " + m[1], nil
	}
	return "Apple's ticker is AAPL, I should look up its price.\n" +
		"Action: get_realtime_stock_price\nAction Input: AAPL", nil
}

func newPipeline(t *testing.T, src dataflows.MarketSource, c agents.Completer, opts ...Option) *QueryService {
	t.Helper()
	ctx := context.Background()

	fetcher := dataflows.NewDataFetcher(src, dataflows.WithLocation(time.UTC))
	registry, err := tools.NewPriceRegistry(ctx,
		tools.NewRealtimePriceTool(fetcher, nil),
		tools.NewHistoricalPriceTool(fetcher, nil))
	require.NoError(t, err)

	loop, err := agents.NewReasoningLoop(c, registry)
	require.NoError(t, err)
	return NewQueryService(loop, opts...)
}

func TestHandleEndToEnd(t *testing.T) {
	src := &quoteOnlySource{prices: map[string]float64{"AAPL": 150.25}}
	svc := newPipeline(t, src, agents.CompleterFunc(priceOracle))

	resp, err := svc.Handle(context.Background(), "What is the current price of Apple stock?")
	require.NoError(t, err)
	assert.Contains(t, resp.Response, "150.25")
	assert.Equal(t, "Current price of AAPL is $150.25", resp.Response)
}

func TestHandleUnavailablePriceStillAnswers(t *testing.T) {
	svc := newPipeline(t, &quoteOnlySource{}, agents.CompleterFunc(priceOracle))

	resp, err := svc.Handle(context.Background(), "What is the current price of Apple stock?")
	require.NoError(t, err)
	assert.Equal(t, "Error getting real-time price: could not fetch price for AAPL using any method", resp.Response)
}

type stubReasoner struct {
	result *agents.AgentResult
	err    error
	calls  int
}

func (s *stubReasoner) Run(context.Context, string) (*agents.AgentResult, error) {
	s.calls++
	return s.result, s.err
}

func TestHandleGracefulFailure(t *testing.T) {
	r := &stubReasoner{result: &agents.AgentResult{
		State:         agents.StateFailed,
		FailureReason: agents.ErrIterationLimitExceeded.Error(),
	}}
	svc := NewQueryService(r)

	resp, err := svc.Handle(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "Error: max iterations exceeded", resp.Response)
}

func TestHandleServiceFault(t *testing.T) {
	boom := errors.New("inference backend unreachable")
	svc := NewQueryService(&stubReasoner{err: boom})

	resp, err := svc.Handle(context.Background(), "q")
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, boom)
}

func TestHandleEmptyQuery(t *testing.T) {
	r := &stubReasoner{}
	svc := NewQueryService(r)

	_, err := svc.Handle(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Zero(t, r.calls)
}

func TestHandleQueryDelay(t *testing.T) {
	r := &stubReasoner{result: &agents.AgentResult{State: agents.StateDone, FinalAnswer: "ok"}}
	svc := NewQueryService(r, WithQueryDelay(50*time.Millisecond))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := svc.Handle(context.Background(), "q")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, 3, r.calls)
}

func TestHandleQueryDelayHonoursContext(t *testing.T) {
	r := &stubReasoner{result: &agents.AgentResult{State: agents.StateDone, FinalAnswer: "ok"}}
	svc := NewQueryService(r, WithQueryDelay(time.Hour))

	_, err := svc.Handle(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Handle(ctx, "second")
	assert.Error(t, err)
	assert.Equal(t, 1, r.calls)
}

type memRecorder struct {
	recs []storage.QueryRecord
	err  error
}

func (m *memRecorder) SaveQuery(_ context.Context, rec storage.QueryRecord) error {
	m.recs = append(m.recs, rec)
	return m.err
}

func TestHandleJournalsEveryOutcome(t *testing.T) {
	rec := &memRecorder{}
	src := &quoteOnlySource{prices: map[string]float64{"AAPL": 150.25}}
	svc := newPipeline(t, src, agents.CompleterFunc(priceOracle), WithRecorder(rec))

	_, err := svc.Handle(context.Background(), "  What is the current price of Apple stock?  ")
	require.NoError(t, err)

	failing := NewQueryService(&stubReasoner{result: &agents.AgentResult{
		State:         agents.StateFailed,
		FailureReason: agents.ErrIterationLimitExceeded.Error(),
	}}, WithRecorder(rec))
	_, err = failing.Handle(context.Background(), "q")
	require.NoError(t, err)

	broken := NewQueryService(&stubReasoner{err: errors.New("backend down")}, WithRecorder(rec))
	_, err = broken.Handle(context.Background(), "q")
	require.Error(t, err)

	require.Len(t, rec.recs, 3)

	answered := rec.recs[0]
	assert.NotEmpty(t, answered.ID)
	assert.Equal(t, "What is the current price of Apple stock?", answered.Question)
	assert.Equal(t, OutcomeAnswered, answered.Outcome)
	assert.Equal(t, "Current price of AAPL is $150.25", answered.Response)
	assert.Len(t, answered.Steps, 1)

	assert.Equal(t, OutcomeFailed, rec.recs[1].Outcome)
	assert.Equal(t, "Error: max iterations exceeded", rec.recs[1].Response)

	assert.Equal(t, OutcomeError, rec.recs[2].Outcome)
	assert.Equal(t, "backend down", rec.recs[2].FailureReason)
}

func TestHandleIgnoresJournalFailure(t *testing.T) {
	r := &stubReasoner{result: &agents.AgentResult{State: agents.StateDone, FinalAnswer: "ok"}}
	svc := NewQueryService(r, WithRecorder(&memRecorder{err: errors.New("disk full")}))

	resp, err := svc.Handle(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Response)
}
