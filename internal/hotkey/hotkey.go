// Package hotkey turns a global key combination into toggle intents.
package hotkey

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.design/x/hotkey"
)

// Combo is a parsed key combination such as ctrl+shift+space.
type Combo struct {
	mods  []hotkey.Modifier
	key   hotkey.Key
	label string
}

func (c Combo) String() string {
	return c.label
}

// ParseCombo parses a spec like "ctrl+shift+space". The last token is the
// key; every token before it is a modifier. Modifier names follow the
// platform: alt maps to option on macOS, super to cmd or the win key.
func ParseCombo(spec string) (Combo, error) {
	normalized := strings.ToLower(strings.TrimSpace(spec))
	if normalized == "" {
		return Combo{}, errors.New("empty hotkey")
	}

	parts := strings.Split(normalized, "+")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return Combo{}, fmt.Errorf("invalid hotkey %q", spec)
		}
	}

	combo := Combo{label: strings.Join(parts, "+")}
	for _, name := range parts[:len(parts)-1] {
		mod, ok := modifierFor(name)
		if !ok {
			return Combo{}, fmt.Errorf("unknown modifier %q in hotkey %q", name, spec)
		}
		combo.mods = append(combo.mods, mod)
	}

	keyName := parts[len(parts)-1]
	key, ok := keys[keyName]
	if !ok {
		return Combo{}, fmt.Errorf("unknown key %q in hotkey %q", keyName, spec)
	}
	combo.key = key
	return combo, nil
}

// Listener owns one registered global hotkey and forwards key presses.
type Listener struct {
	combo   Combo
	toggles chan struct{}
}

func NewListener(combo Combo) *Listener {
	return &Listener{
		combo:   combo,
		toggles: make(chan struct{}, 4),
	}
}

// Toggles delivers one value per key press.
func (l *Listener) Toggles() <-chan struct{} {
	return l.toggles
}

// Run registers the hotkey and forwards key presses until the context ends.
// Presses arriving faster than they are consumed are discarded.
func (l *Listener) Run(ctx context.Context) error {
	hk := hotkey.New(l.combo.mods, l.combo.key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("register global hotkey %s: %w", l.combo, err)
	}
	defer func() { _ = hk.Unregister() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-hk.Keydown():
			select {
			case l.toggles <- struct{}{}:
			default:
			}
		}
	}
}

var keys = map[string]hotkey.Key{
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,

	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,

	"space":  hotkey.KeySpace,
	"enter":  hotkey.KeyReturn,
	"return": hotkey.KeyReturn,
	"tab":    hotkey.KeyTab,
	"esc":    hotkey.KeyEscape,
	"escape": hotkey.KeyEscape,
	"delete": hotkey.KeyDelete,
	"up":     hotkey.KeyUp,
	"down":   hotkey.KeyDown,
	"left":   hotkey.KeyLeft,
	"right":  hotkey.KeyRight,

	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3,
	"f4": hotkey.KeyF4, "f5": hotkey.KeyF5, "f6": hotkey.KeyF6,
	"f7": hotkey.KeyF7, "f8": hotkey.KeyF8, "f9": hotkey.KeyF9,
	"f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}
