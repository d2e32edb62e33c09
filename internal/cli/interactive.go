package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/dyike/StockQA/config"
	"github.com/dyike/StockQA/pkg/app"
	"github.com/dyike/StockQA/pkg/logger"
)

// runInteractiveMode answers questions until the user exits. The engine is
// built once and shared by every question of the session.
func runInteractiveMode(ctx context.Context, w io.Writer, cfg *config.Config) error {
	DisplayWelcomeBanner(w)

	engine, err := buildEngine(ctx, *cfg, app.WithLogger(logger.Get()))
	if err != nil {
		return err
	}
	defer engine.Close()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		question, err := promptForQuestion()
		switch {
		case errors.Is(err, terminal.InterruptErr), errors.Is(err, io.EOF):
			fmt.Fprintln(w, "Bye!")
			return nil
		case err != nil:
			return fmt.Errorf("read question: %w", err)
		}

		switch strings.ToLower(question) {
		case "":
			continue
		case "exit", "quit", "q":
			fmt.Fprintln(w, "Bye!")
			return nil
		}

		resp, err := engine.Queries.Handle(ctx, question)
		if err != nil {
			DisplayError(w, err)
			continue
		}
		renderAnswer(w, resp.Response)
		fmt.Fprintln(w)
	}
}
