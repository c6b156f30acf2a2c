// Package fake provides in-memory collaborators for tests: hosts, dialogs,
// permission and location platforms, and a recording listener.
package fake

import (
	"github.com/shaunagostinho/geofix/internal/dialog"
	"github.com/shaunagostinho/geofix/internal/host"
)

// Started is one StartForResult call.
type Started struct {
	Action host.Action
	Code   host.RequestCode
}

// Activity records the sub-flows it is asked to start.
type Activity struct {
	Started []Started
	Err     error
}

func (a *Activity) StartForResult(action host.Action, code host.RequestCode) error {
	if a.Err != nil {
		return a.Err
	}
	a.Started = append(a.Started, Started{Action: action, Code: code})
	return nil
}

// Fragment is a screen section embedded in Parent.
type Fragment struct {
	Started []Started
	Err     error
	Parent  host.Activity
}

func (f *Fragment) StartForResult(action host.Action, code host.RequestCode) error {
	if f.Err != nil {
		return f.Err
	}
	f.Started = append(f.Started, Started{Action: action, Code: code})
	return nil
}

func (f *Fragment) Activity() host.Activity { return f.Parent }

// Dialog is a dialog whose buttons tests press directly.
type Dialog struct {
	Message   dialog.Message
	Showing   bool
	Shown     int
	Dismissed int

	onCancel  func()
	onDismiss func()
}

func (d *Dialog) Show() {
	d.Showing = true
	d.Shown++
}

func (d *Dialog) Dismiss() {
	if !d.Showing {
		return
	}
	d.Showing = false
	d.Dismissed++
	if d.onDismiss != nil {
		d.onDismiss()
	}
}

func (d *Dialog) IsShowing() bool         { return d.Showing }
func (d *Dialog) OnCancel(fn func())      { d.onCancel = fn }
func (d *Dialog) OnDismiss(fn func())     { d.onDismiss = fn }
func (d *Dialog) HasDismissHandler() bool { return d.onDismiss != nil }

// Positive presses the positive button, which also dismisses the dialog.
func (d *Dialog) Positive() {
	d.Dismiss()
	if d.Message.OnPositive != nil {
		d.Message.OnPositive()
	}
}

// Negative presses the negative button, which also dismisses the dialog.
func (d *Dialog) Negative() {
	d.Dismiss()
	if d.Message.OnNegative != nil {
		d.Message.OnNegative()
	}
}

// Cancel backs out of the dialog.
func (d *Dialog) Cancel() {
	if d.onCancel != nil {
		d.onCancel()
	}
	d.Dismiss()
}

// Renderer hands out fake dialogs and remembers them.
type Renderer struct {
	Dialogs []*Dialog
	// Refuse makes Render return nil.
	Refuse bool
}

func (r *Renderer) Render(_ host.Activity, m dialog.Message) dialog.Dialog {
	if r.Refuse {
		return nil
	}
	d := &Dialog{Message: m}
	r.Dialogs = append(r.Dialogs, d)
	return d
}

// Last returns the most recently rendered dialog.
func (r *Renderer) Last() *Dialog {
	if len(r.Dialogs) == 0 {
		return nil
	}
	return r.Dialogs[len(r.Dialogs)-1]
}
