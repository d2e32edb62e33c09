package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/dyike/StockQA/internal/agents"
	"github.com/dyike/StockQA/internal/storage"
	"github.com/dyike/StockQA/pkg/dataflows"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	answerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#10B981")).
			Padding(0, 1).
			Width(80)

	// Step styles
	iterationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	thoughtStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6"))

	toolCallStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8B5CF6"))

	observationStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#F59E0B"))

	// Status styles
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6"))
)

const maxObservationWidth = 200

// DisplayWelcomeBanner shows the interactive mode banner
func DisplayWelcomeBanner(w io.Writer) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("StockQA v%s", Version)))
	fmt.Fprintln(w, infoStyle.Render("Ask about current or historical stock prices, e.g."))
	fmt.Fprintln(w, infoStyle.Render("  What is the current price of Apple stock?"))
	fmt.Fprintln(w, infoStyle.Render("  How did Tesla trade over the last month?"))
	fmt.Fprintln(w, iterationStyle.Render("Type 'exit' to quit."))
	fmt.Fprintln(w)
}

func renderStep(w io.Writer, iteration int, step agents.AgentStep) {
	fmt.Fprintln(w, iterationStyle.Render(fmt.Sprintf("--- step %d ---", iteration)))
	if step.Thought != "" {
		fmt.Fprintln(w, thoughtStyle.Render("Thought: "+step.Thought))
	}
	if step.ParseError != "" && step.ActionName == "" {
		fmt.Fprintln(w, errorStyle.Render("Invalid output: "+step.ParseError))
	}
	if step.ActionName != "" {
		fmt.Fprintln(w, toolCallStyle.Render(fmt.Sprintf("Action: %s(%s)", step.ActionName, step.ActionInput)))
	}
	if step.Observation != "" {
		obs := strings.Join(strings.Fields(step.Observation), " ")
		fmt.Fprintln(w, observationStyle.Render("Observation: "+truncateString(obs, maxObservationWidth)))
	}
}

func renderAnswer(w io.Writer, answer string) {
	fmt.Fprintln(w, answerStyle.Render(answer))
}

func renderPrice(w io.Writer, sample *dataflows.PriceSample) {
	fmt.Fprintln(w, successStyle.Render(sample.String()))
	fmt.Fprintln(w, iterationStyle.Render(fmt.Sprintf("source tier: %s  at %s",
		sample.Tier, sample.Timestamp.Format("2006-01-02 15:04:05 MST"))))
}

func renderHistory(w io.Writer, hist *dataflows.HistoricalPrices) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s  %s/%s  %d data points",
		hist.Symbol, hist.Period, hist.Interval, hist.DataPoints)))

	for _, dp := range hist.Data {
		fmt.Fprintf(w, "%s  %10s\n", dp.Date, "$"+dp.Price.String())
	}

	change := priceChange(hist.FirstPrice.Decimal(), hist.LastPrice.Decimal())
	style := successStyle
	if change.IsNegative() {
		style = errorStyle
	}
	fmt.Fprintln(w, style.Render(fmt.Sprintf("%s -> %s: $%s -> $%s (%s%%)",
		hist.FirstDate, hist.LastDate, hist.FirstPrice, hist.LastPrice, change.StringFixed(2))))
}

// priceChange returns the percent move from first to last, zero when first is zero.
func priceChange(first, last decimal.Decimal) decimal.Decimal {
	if first.IsZero() {
		return decimal.Zero
	}
	return last.Sub(first).Div(first).Mul(decimal.NewFromInt(100))
}

func renderQueryList(w io.Writer, recs []storage.QueryRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(w, iterationStyle.Render("No queries recorded yet."))
		return
	}
	for _, rec := range recs {
		style := successStyle
		if rec.Outcome != "answered" {
			style = errorStyle
		}
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			iterationStyle.Render(rec.ID),
			style.Render(fmt.Sprintf("%-8s", rec.Outcome)),
			truncateString(rec.Question, 60))
	}
}

func renderQueryRecord(w io.Writer, rec *storage.QueryRecord) {
	fmt.Fprintln(w, headerStyle.Render(rec.Question))
	fmt.Fprintln(w, iterationStyle.Render(fmt.Sprintf("%s  %s  %s  %s",
		rec.ID, rec.CreatedAt.Local().Format("2006-01-02 15:04:05"), rec.Outcome, rec.Latency)))
	for i, step := range rec.Steps {
		renderStep(w, i+1, step)
	}
	if rec.Response != "" {
		renderAnswer(w, rec.Response)
	} else if rec.FailureReason != "" {
		fmt.Fprintln(w, errorStyle.Render("Error: "+rec.FailureReason))
	}
}

// DisplayError shows an error message
func DisplayError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("Error: "+err.Error()))
}

// DisplayWarning shows a warning message
func DisplayWarning(w io.Writer, message string) {
	fmt.Fprintln(w, warningStyle.Render("Warning: "+message))
}

// DisplaySuccess shows a success message
func DisplaySuccess(w io.Writer, message string) {
	fmt.Fprintln(w, successStyle.Render(message))
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
