package teams

import "strings"

// Status is one of the fixed set of presence states Teams understands.
// Label is what we show the user, Token is what goes on the wire, Color
// is the hex color Teams uses for the presence dot.
type Status struct {
	Label string
	Token string
	Color string
}

var (
	StatusAvailable    = Status{Label: "Available", Token: "Available", Color: "#00ff00"}
	StatusBusy         = Status{Label: "Busy", Token: "Busy", Color: "#ff0000"}
	StatusDoNotDisturb = Status{Label: "Do Not Disturb", Token: "DoNotDisturb", Color: "#ff4500"}
	StatusAway         = Status{Label: "Away", Token: "Away", Color: "#ffa500"}
	StatusBeRightBack  = Status{Label: "Be Right Back", Token: "BeRightBack", Color: "#ffff00"}
	StatusOffline      = Status{Label: "Offline", Token: "Offline", Color: "#808080"}
)

// Statuses returns all known statuses in menu order.
func Statuses() []Status {
	return []Status{
		StatusAvailable,
		StatusBusy,
		StatusDoNotDisturb,
		StatusAway,
		StatusBeRightBack,
		StatusOffline,
	}
}

// ParseStatus resolves a user-supplied name to a Status. It accepts the
// wire token ("DoNotDisturb") or the label ("Do Not Disturb"), case
// insensitively.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	for _, st := range Statuses() {
		if strings.EqualFold(s, st.Token) || strings.EqualFold(s, st.Label) {
			return st, true
		}
	}
	return Status{}, false
}

func (s Status) String() string {
	return s.Label
}
