// Package dialog defines the two-choice dialogs the providers show and a
// simple message implementation backed by a pluggable renderer.
package dialog

import "github.com/shaunagostinho/geofix/internal/host"

// Dialog is a displayable dialog.
type Dialog interface {
	Show()
	Dismiss()
	IsShowing() bool
	// OnCancel is called when the user backs out without choosing.
	OnCancel(fn func())
	// OnDismiss is called whenever the dialog goes away.
	OnDismiss(fn func())
}

// Listener receives button clicks.
type Listener interface {
	OnPositiveButtonClick()
	OnNegativeButtonClick()
}

// Provider builds a dialog for an activity. It may return nil when it can
// not render on that activity.
type Provider interface {
	Dialog(a host.Activity, l Listener) Dialog
}

// Message describes a dialog to render.
type Message struct {
	Text       string
	Positive   string
	Negative   string
	Cancelable bool
	OnPositive func()
	OnNegative func()
}

// Renderer draws a Message on a host.
type Renderer interface {
	Render(a host.Activity, m Message) Dialog
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(a host.Activity, m Message) Dialog

func (f RendererFunc) Render(a host.Activity, m Message) Dialog { return f(a, m) }
