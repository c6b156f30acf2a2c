package dialog

import "github.com/shaunagostinho/geofix/internal/host"

const (
	PositiveLabel = "OK"
	NegativeLabel = "Cancel"
)

// SimpleMessage shows a non-cancelable OK/Cancel dialog with a fixed text.
type SimpleMessage struct {
	Text     string
	Renderer Renderer
}

func NewSimpleMessage(text string, r Renderer) *SimpleMessage {
	return &SimpleMessage{Text: text, Renderer: r}
}

func (s *SimpleMessage) Dialog(a host.Activity, l Listener) Dialog {
	if s == nil || s.Renderer == nil || a == nil {
		return nil
	}
	m := Message{
		Text:     s.Text,
		Positive: PositiveLabel,
		Negative: NegativeLabel,
	}
	if l != nil {
		m.OnPositive = l.OnPositiveButtonClick
		m.OnNegative = l.OnNegativeButtonClick
	}
	return s.Renderer.Render(a, m)
}
