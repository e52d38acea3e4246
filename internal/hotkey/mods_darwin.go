//go:build darwin

package hotkey

import "golang.design/x/hotkey"

func modifierFor(name string) (hotkey.Modifier, bool) {
	switch name {
	case "ctrl", "control":
		return hotkey.ModCtrl, true
	case "shift":
		return hotkey.ModShift, true
	case "alt", "option":
		return hotkey.ModOption, true
	case "super", "win", "cmd", "meta":
		return hotkey.ModCmd, true
	default:
		return 0, false
	}
}
