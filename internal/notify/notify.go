// Package notify raises desktop notifications.
package notify

import "github.com/gen2brain/beeep"

// Desktop shows notifications through the platform notification service.
type Desktop struct{}

func NewDesktop() *Desktop {
	return &Desktop{}
}

func (d *Desktop) Notify(title, message string) error {
	return beeep.Notify(title, message, "")
}
