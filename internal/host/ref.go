package host

// Ref is a non-owning handle to the current host. The host layer calls
// Detach when its screen is torn down and Release when the whole context
// goes away; every reader must treat an empty Ref as a normal state.
//
// A nil *Ref behaves like a released one.
type Ref struct {
	activity Activity
	fragment Fragment
	released bool
}

// NewRef returns a live context with no screen attached.
func NewRef() *Ref { return &Ref{} }

// ForActivity returns a live context attached to a.
func ForActivity(a Activity) *Ref {
	r := NewRef()
	r.SetActivity(a)
	return r
}

// ForFragment returns a live context attached to f.
func ForFragment(f Fragment) *Ref {
	r := NewRef()
	r.SetFragment(f)
	return r
}

// SetActivity attaches a and clears any fragment.
func (r *Ref) SetActivity(a Activity) {
	if r == nil || r.released {
		return
	}
	r.activity = a
	r.fragment = nil
}

// SetFragment attaches f and clears any activity.
func (r *Ref) SetFragment(f Fragment) {
	if r == nil || r.released {
		return
	}
	r.fragment = f
	r.activity = nil
}

// Detach drops the screen but keeps the context alive.
func (r *Ref) Detach() {
	if r == nil {
		return
	}
	r.activity = nil
	r.fragment = nil
}

// Release drops everything. A released Ref can not be re-attached.
func (r *Ref) Release() {
	if r == nil {
		return
	}
	r.Detach()
	r.released = true
}

// Valid reports whether the context is still alive.
func (r *Ref) Valid() bool { return r != nil && !r.released }

// Activity resolves the activity: the directly attached one, else the
// fragment's host activity.
func (r *Ref) Activity() Activity {
	if r == nil {
		return nil
	}
	if r.activity != nil {
		return r.activity
	}
	if r.fragment != nil {
		return r.fragment.Activity()
	}
	return nil
}

func (r *Ref) Fragment() Fragment {
	if r == nil {
		return nil
	}
	return r.fragment
}

// Target returns the fragment when one is attached, else the activity.
func (r *Ref) Target() Target {
	if r == nil {
		return nil
	}
	if r.fragment != nil {
		return r.fragment
	}
	if r.activity != nil {
		return r.activity
	}
	return nil
}

// StartForResult starts action on the current target. It reports false when
// no screen is attached or the screen refused.
func (r *Ref) StartForResult(action Action, code RequestCode) bool {
	t := r.Target()
	if t == nil {
		return false
	}
	return t.StartForResult(action, code) == nil
}
