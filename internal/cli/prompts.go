package cli

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"
)

var tickerRe = regexp.MustCompile(`^[A-Z0-9.^=-]+$`)

// Swapped in tests.
var (
	promptForTicker   = PromptForTicker
	promptForQuestion = PromptForQuestion
)

// PromptForTicker prompts the user to enter a stock ticker symbol
func PromptForTicker() (string, error) {
	var ticker string
	prompt := &survey.Input{
		Message: "Enter the stock ticker symbol (e.g., AAPL, MSFT, GOOGL):",
		Help:    "Please enter a valid stock ticker symbol",
	}

	err := survey.AskOne(prompt, &ticker, survey.WithValidator(validateTicker))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(strings.ToUpper(ticker)), nil
}

func validateTicker(val interface{}) error {
	str, ok := val.(string)
	if !ok {
		return fmt.Errorf("invalid ticker type")
	}
	str = strings.TrimSpace(strings.ToUpper(str))
	if len(str) == 0 {
		return fmt.Errorf("ticker symbol cannot be empty")
	}
	if len(str) > 12 {
		return fmt.Errorf("ticker symbol too long (max 12 characters)")
	}
	if !tickerRe.MatchString(str) {
		return fmt.Errorf("invalid ticker format (use letters, numbers, dots, and hyphens only)")
	}
	return nil
}

// PromptForQuestion prompts for the next free-text question
func PromptForQuestion() (string, error) {
	var question string
	prompt := &survey.Input{
		Message: "Ask StockQA:",
		Help:    "Ask about a current or historical stock price. Type 'exit' to quit.",
	}

	if err := survey.AskOne(prompt, &question); err != nil {
		return "", err
	}
	return strings.TrimSpace(question), nil
}
