package fused

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/shaunagostinho/geofix/internal/dialog"
	"github.com/shaunagostinho/geofix/internal/host"
	"github.com/shaunagostinho/geofix/internal/provider"
)

func (g *Google) Status() provider.ServiceStatus {
	switch {
	case g.geo == nil:
		return provider.ServiceMissing
	case g.invalid:
		return provider.ServiceInvalid
	default:
		return provider.ServiceAvailable
	}
}

// IsUserResolvable reports whether the user can fix s from the host. A
// rejected key can be replaced; a missing client can not.
func (g *Google) IsUserResolvable(s provider.ServiceStatus) bool {
	return g.renderer != nil && s == provider.ServiceInvalid
}

func (g *Google) ErrorDialog(a host.Activity, s provider.ServiceStatus, code host.RequestCode, onCancel func()) dialog.Dialog {
	if g.renderer == nil || a == nil {
		return nil
	}
	var m dialog.Message
	switch s {
	case provider.ServiceInvalid, provider.ServiceUpdating:
		// The session moves on as soon as this dialog closes, so it only
		// informs. Accepting clears the rejection for the next session.
		m = dialog.Message{
			Text:       fmt.Sprintf("The Google location service is %s. Using GPS and network for now; retry it next time?", s),
			Positive:   "Retry later",
			Negative:   dialog.NegativeLabel,
			Cancelable: true,
			OnPositive: g.Reset,
			OnNegative: onCancel,
		}
	default:
		m = dialog.Message{
			Text:       fmt.Sprintf("The Google location service is %s. Fix it and retry?", s),
			Positive:   "Retry",
			Negative:   dialog.NegativeLabel,
			Cancelable: true,
			OnPositive: func() {
				if err := a.StartForResult(host.ActionFusedAvailability, code); err != nil {
					g.logger.Info("could not start the service fix", zap.Error(err))
					onCancel()
				}
			},
			OnNegative: onCancel,
		}
	}
	dlg := g.renderer.Render(a, m)
	if dlg != nil {
		dlg.OnCancel(onCancel)
	}
	return dlg
}

// Reset forgets that the key was rejected, e.g. after the user replaced it.
func (g *Google) Reset() { g.invalid = false }
