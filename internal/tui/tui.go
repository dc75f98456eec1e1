package tui

import (
	"context"
)

// TUI consumes pipeline events and drives the terminal view. It runs on
// its own goroutine so rendering stages never block on terminal I/O.
type TUI struct {
	ctx      context.Context
	eventsCh chan Event
}

func New(ctx context.Context, eventsCh chan Event) *TUI {
	return &TUI{ctx: ctx, eventsCh: eventsCh}
}

func (t *TUI) Run() {
	view := newView()
	go view.Run()

	for {
		select {
		case <-t.ctx.Done():
			return

		case event := <-t.eventsCh:
			switch event.eventType {
			case eventTypeSpin:
				view.SetSpinner(event.text)
			case eventTypeBar:
				view.SetProgress(event.text, event.percent)
			case eventTypeText:
				view.SetText(event.text)
			}
		}
	}
}
