package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/the-bill-must-split/internal/model"
	"github.com/Veraticus/the-bill-must-split/internal/tui/themes"
)

// ErrReviewAborted is returned when the reviewer abandons the session.
var ErrReviewAborted = errors.New("review aborted")

// ReviewConfig configures RunReview.
type ReviewConfig struct {
	Input    io.Reader
	Output   io.Writer
	Merchant string
	Theme    *themes.Theme
	// AltScreen runs the review in the alternate screen buffer.
	AltScreen bool
}

// RunReview lets the user confirm or change the category of every line of
// r that needs review. It returns the decisions made, in order.
func RunReview(ctx context.Context, r *model.ClassifiedReceipt, cfg ReviewConfig) ([]Decision, error) {
	if r == nil {
		return nil, fmt.Errorf("receipt is required")
	}

	theme := themes.Default
	if cfg.Theme != nil {
		theme = *cfg.Theme
	}

	m := NewModel(r, cfg.Merchant, theme)
	if m.Done() {
		return nil, nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if cfg.Input != nil {
		opts = append(opts, tea.WithInput(cfg.Input))
	}
	if cfg.Output != nil {
		opts = append(opts, tea.WithOutput(cfg.Output))
	}
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}

	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("review failed: %w", err)
	}

	result, ok := final.(Model)
	if !ok {
		return nil, fmt.Errorf("unexpected model type %T", final)
	}
	if result.Aborted() {
		return nil, ErrReviewAborted
	}
	return result.Decisions(), nil
}
