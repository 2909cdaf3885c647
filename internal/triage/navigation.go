package triage

// NavState is the drill-down state of a board.
type NavState int

const (
	Browsing NavState = iota
	Detail
)

func (s NavState) String() string {
	if s == Detail {
		return "detail"
	}
	return "browsing"
}

// Navigator tracks which record, if any, is drilled into. The zero value is
// Browsing.
type Navigator struct {
	state    NavState
	selected string
}

// Activate enters Detail for id. Activating while already in Detail replaces
// the selection; activating the same id twice is a no-op.
func (n *Navigator) Activate(id string) {
	if id == "" {
		return
	}
	n.state = Detail
	n.selected = id
}

// Back returns to Browsing.
func (n *Navigator) Back() {
	n.state = Browsing
	n.selected = ""
}

func (n *Navigator) State() NavState { return n.state }

// Selected returns the drilled-into id, or "" while Browsing.
func (n *Navigator) Selected() string { return n.selected }

// ShowHeader reports whether the header and search controls are visible.
func (n *Navigator) ShowHeader() bool { return n.state == Browsing }
