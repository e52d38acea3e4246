//go:build windows

package hotkey

import "golang.design/x/hotkey"

func modifierFor(name string) (hotkey.Modifier, bool) {
	switch name {
	case "ctrl", "control":
		return hotkey.ModCtrl, true
	case "shift":
		return hotkey.ModShift, true
	case "alt", "option":
		return hotkey.ModAlt, true
	case "super", "win", "cmd", "meta":
		return hotkey.ModWin, true
	default:
		return 0, false
	}
}
