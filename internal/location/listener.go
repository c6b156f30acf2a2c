package location

// Listener receives the single callback stream of a session.
type Listener interface {
	OnProcessTypeChanged(p ProcessType)
	OnLocationChanged(s Sample)
	OnLocationFailed(r FailReason)
	OnPermissionGranted(alreadyHad bool)

	// Raw source notifications, only delivered while satellite or network
	// sources are in use.
	OnStatusChanged(src Source, status int, extras map[string]string)
	OnProviderEnabled(src Source)
	OnProviderDisabled(src Source)
}

// NopListener ignores every event. Embed it to implement only what you need.
type NopListener struct{}

func (NopListener) OnProcessTypeChanged(ProcessType)               {}
func (NopListener) OnLocationChanged(Sample)                       {}
func (NopListener) OnLocationFailed(FailReason)                    {}
func (NopListener) OnPermissionGranted(bool)                       {}
func (NopListener) OnStatusChanged(Source, int, map[string]string) {}
func (NopListener) OnProviderEnabled(Source)                       {}
func (NopListener) OnProviderDisabled(Source)                      {}

// Multi fans every event out to ls in order. Nil entries are skipped.
func Multi(ls ...Listener) Listener {
	out := make(multi, 0, len(ls))
	for _, l := range ls {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

type multi []Listener

func (m multi) OnProcessTypeChanged(p ProcessType) {
	for _, l := range m {
		l.OnProcessTypeChanged(p)
	}
}

func (m multi) OnLocationChanged(s Sample) {
	for _, l := range m {
		l.OnLocationChanged(s)
	}
}

func (m multi) OnLocationFailed(r FailReason) {
	for _, l := range m {
		l.OnLocationFailed(r)
	}
}

func (m multi) OnPermissionGranted(alreadyHad bool) {
	for _, l := range m {
		l.OnPermissionGranted(alreadyHad)
	}
}

func (m multi) OnStatusChanged(src Source, status int, extras map[string]string) {
	for _, l := range m {
		l.OnStatusChanged(src, status, extras)
	}
}

func (m multi) OnProviderEnabled(src Source) {
	for _, l := range m {
		l.OnProviderEnabled(src)
	}
}

func (m multi) OnProviderDisabled(src Source) {
	for _, l := range m {
		l.OnProviderDisabled(src)
	}
}
