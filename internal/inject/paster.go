package inject

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

// uinput needs a moment after key bonding before events register.
var linuxKeybdWarmup sync.Once

// Paster delivers text through the clipboard with a synthetic paste
// keystroke, then restores whatever the clipboard held before.
type Paster struct{}

func NewPaster() *Paster {
	return &Paster{}
}

func (p *Paster) TypeText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	if err := checkTarget(); err != nil {
		return err
	}

	original, restore := "", false
	if prev, err := clipboard.ReadAll(); err == nil {
		original, restore = prev, true
	}

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("stage clipboard: %w", err)
	}
	time.Sleep(80 * time.Millisecond)

	if err := sendPasteKeystroke(); err != nil {
		return err
	}
	time.Sleep(120 * time.Millisecond)

	if restore {
		_ = clipboard.WriteAll(original)
	}
	return nil
}

func sendPasteKeystroke() error {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return fmt.Errorf("bind paste keys: %w", err)
	}
	if runtime.GOOS == "linux" {
		linuxKeybdWarmup.Do(func() { time.Sleep(2 * time.Second) })
	}

	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	kb.SetKeys(keybd_event.VK_V)
	if err := kb.Launching(); err != nil {
		return fmt.Errorf("send paste keystroke: %w", err)
	}
	return nil
}
