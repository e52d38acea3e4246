// Package clipboard wraps the system clipboard.
package clipboard

import (
	"context"
	"errors"
	"fmt"

	atotto "github.com/atotto/clipboard"
)

// Writer copies text into the system clipboard.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) SetText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if atotto.Unsupported {
		return errors.New("no clipboard utility available on this system")
	}
	if err := atotto.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}
