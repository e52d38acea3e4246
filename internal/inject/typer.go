// Package inject places transcripts into the focused application.
package inject

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/go-vgo/robotgo"

	"github.com/tjanssens/voxoscribe/internal/domain"
)

// Typer sends text as synthetic keystrokes.
type Typer struct{}

func NewTyper() *Typer {
	return &Typer{}
}

func (t *Typer) TypeText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	if err := checkTarget(); err != nil {
		return err
	}
	robotgo.TypeStr(text)
	return nil
}

// checkTarget rejects injection when there is no graphical session to type
// into. Keystroke synthesis into a bare TTY would go nowhere.
func checkTarget() error {
	if runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return fmt.Errorf("no display session: %w", domain.ErrNoInjectionTarget)
	}
	return nil
}
