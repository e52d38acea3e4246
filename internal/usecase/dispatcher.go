package usecase

import (
	"context"
	"fmt"

	"github.com/tjanssens/voxoscribe/internal/domain"
	"github.com/tjanssens/voxoscribe/internal/ports"
)

// outputDispatcher places finalized transcript text into the focused
// application, falling back to the clipboard when injection is refused or
// fails. On total failure the returned Delivery still carries the text so the
// caller can surface it for manual recovery.
type outputDispatcher struct {
	inject    ports.InjectionSink
	clipboard ports.Clipboard
}

func newOutputDispatcher(inject ports.InjectionSink, clipboard ports.Clipboard) outputDispatcher {
	return outputDispatcher{inject: inject, clipboard: clipboard}
}

func (d outputDispatcher) Deliver(ctx context.Context, text string) (domain.Delivery, domain.SessionStateReason, error) {
	delivery := domain.Delivery{Route: domain.DeliveryRouteTyped, Text: text}

	injectErr := d.inject.TypeText(ctx, text)
	if injectErr == nil {
		return delivery, domain.SessionReasonTranscriptTyped, nil
	}

	delivery.Route = domain.DeliveryRouteClipboard
	if err := d.clipboard.SetText(ctx, text); err != nil {
		return delivery, domain.SessionReasonDeliveryFailed,
			fmt.Errorf("inject failed (%v); clipboard fallback failed: %w", injectErr, err)
	}
	return delivery, domain.SessionReasonTranscriptCopied, nil
}
