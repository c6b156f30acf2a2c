// Package terminal hosts sessions on a text terminal. Dialogs, settings
// screens and permission requests become yes/no prompts; answers are read on
// a separate goroutine and handed back to the loop.
package terminal

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/shaunagostinho/geofix/internal/dialog"
	"github.com/shaunagostinho/geofix/internal/host"
	"github.com/shaunagostinho/geofix/internal/permission"
)

// Loop is where answers are delivered.
type Loop interface {
	Post(fn func()) bool
}

// Results receives the outcome of sub-flows and permission requests.
// locator.Manager satisfies it.
type Results interface {
	OnActivityResult(code host.RequestCode, result host.Result, data any)
	OnRequestPermissionsResult(code host.RequestCode, names []string, grants []bool)
}

const permissionQuestion = "Allow geofix to use your location?"

var actionQuestions = map[host.Action]string{
	host.ActionLocationSourceSettings: "Turn on the location sources now?",
	host.ActionSettingsResolution:     "Let the location service fall back to your IP address?",
	host.ActionFusedAvailability:      "Retry the location service?",
}

// Host is an activity, a dialog renderer and a permission platform at once.
// Everything except the prompts themselves runs on the loop.
type Host struct {
	loop   Loop
	logger *zap.Logger
	spawn  func(func())

	promptMu sync.Mutex
	in       *bufio.Reader
	out      io.Writer

	results Results
	hooks   map[host.Action]func()
	granted map[string]bool
	denied  map[string]bool
}

var (
	_ host.Activity       = (*Host)(nil)
	_ dialog.Renderer     = (*Host)(nil)
	_ permission.Platform = (*Host)(nil)
)

func New(loop Loop, in io.Reader, out io.Writer, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		loop:    loop,
		logger:  logger,
		spawn:   func(fn func()) { go fn() },
		in:      bufio.NewReader(in),
		out:     out,
		hooks:   make(map[host.Action]func()),
		granted: make(map[string]bool),
		denied:  make(map[string]bool),
	}
}

// Attach routes answers to r.
func (h *Host) Attach(r Results) { h.results = r }

// OnAccept runs fn on the loop when the user accepts action, before the
// result is delivered.
func (h *Host) OnAccept(action host.Action, fn func()) { h.hooks[action] = fn }

// Grant marks names as held without asking.
func (h *Host) Grant(names ...string) {
	for _, n := range names {
		h.granted[n] = true
		delete(h.denied, n)
	}
}

// ask prints question and reads one line. answered is false on EOF or an
// empty line.
func (h *Host) ask(question, yes, no string) (accepted, answered bool) {
	h.promptMu.Lock()
	defer h.promptMu.Unlock()

	fmt.Fprintf(h.out, "%s [y=%s, n=%s] ", question, yes, no)
	line, err := h.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(h.out)
		return false, false
	}

	switch answer := strings.ToLower(strings.TrimSpace(line)); answer {
	case "":
		return false, false
	case "y", "yes", "ok", strings.ToLower(yes):
		return true, true
	default:
		return false, true
	}
}

func (h *Host) StartForResult(action host.Action, code host.RequestCode) error {
	question, ok := actionQuestions[action]
	if !ok {
		question = fmt.Sprintf("Continue with %s?", action)
	}
	h.spawn(func() {
		accepted, _ := h.ask(question, "yes", "no")
		h.loop.Post(func() { h.finish(action, code, accepted) })
	})
	return nil
}

func (h *Host) finish(action host.Action, code host.RequestCode, accepted bool) {
	result := host.ResultCanceled
	if accepted {
		if fn := h.hooks[action]; fn != nil {
			fn()
		}
		result = host.ResultOK
	}
	h.logger.Debug("sub-flow finished", zap.Stringer("code", code), zap.Bool("accepted", accepted))
	if h.results == nil {
		h.logger.Warn("no session attached, dropping result", zap.Stringer("code", code))
		return
	}
	h.results.OnActivityResult(code, result, nil)
}

func (h *Host) IsGranted(name string) bool { return h.granted[name] }

// ShouldShowRationale is true once the user has refused name.
func (h *Host) ShouldShowRationale(_ host.Target, name string) bool { return h.denied[name] }

func (h *Host) Request(_ host.Target, names []string, code host.RequestCode) error {
	names = append([]string(nil), names...)
	h.spawn(func() {
		accepted, _ := h.ask(permissionQuestion, "allow", "deny")
		h.loop.Post(func() {
			grants := make([]bool, len(names))
			for i, n := range names {
				grants[i] = accepted
				if accepted {
					h.granted[n] = true
					delete(h.denied, n)
				} else {
					h.denied[n] = true
				}
			}
			if h.results == nil {
				h.logger.Warn("no session attached, dropping permission result")
				return
			}
			h.results.OnRequestPermissionsResult(code, names, grants)
		})
	})
	return nil
}

func (h *Host) Render(_ host.Activity, m dialog.Message) dialog.Dialog {
	if m.Positive == "" {
		m.Positive = dialog.PositiveLabel
	}
	if m.Negative == "" {
		m.Negative = dialog.NegativeLabel
	}
	return &promptDialog{h: h, msg: m}
}

// promptDialog shows as a prompt. An answer that arrives after the dialog
// was dismissed, or shown again, is dropped.
type promptDialog struct {
	h       *Host
	msg     dialog.Message
	showing bool
	gen     int

	onCancel  func()
	onDismiss func()
}

func (d *promptDialog) Show() {
	if d.showing {
		return
	}
	d.showing = true
	d.gen++
	gen := d.gen
	d.h.spawn(func() {
		accepted, answered := d.h.ask(d.msg.Text, d.msg.Positive, d.msg.Negative)
		d.h.loop.Post(func() { d.answer(gen, accepted, answered) })
	})
}

func (d *promptDialog) answer(gen int, accepted, answered bool) {
	if !d.showing || gen != d.gen {
		return
	}
	switch {
	case !answered && d.msg.Cancelable:
		if d.onCancel != nil {
			d.onCancel()
		}
		d.Dismiss()
	case accepted:
		d.Dismiss()
		if d.msg.OnPositive != nil {
			d.msg.OnPositive()
		}
	default:
		d.Dismiss()
		if d.msg.OnNegative != nil {
			d.msg.OnNegative()
		}
	}
}

func (d *promptDialog) Dismiss() {
	if !d.showing {
		return
	}
	d.showing = false
	if d.onDismiss != nil {
		d.onDismiss()
	}
}

func (d *promptDialog) IsShowing() bool     { return d.showing }
func (d *promptDialog) OnCancel(fn func())  { d.onCancel = fn }
func (d *promptDialog) OnDismiss(fn func()) { d.onDismiss = fn }
