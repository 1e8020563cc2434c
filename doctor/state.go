package doctor

// State is a step of the programming session.
type State int

const (
	// Idle means no session is running and every line is released
	Idle State = iota

	// PoweringUp drives the initial line levels and raises VCC
	PoweringUp

	// ResetAsserted means 12V is on RESET and the Prog_enable pattern is latching
	ResetAsserted

	// ModeEntering means SDO has been released and the target is entering HVSP mode
	ModeEntering

	// Operating means serial instructions are being exchanged
	Operating

	// PoweringDown removes 12V and then VCC
	PoweringDown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PoweringUp:
		return "powering-up"
	case ResetAsserted:
		return "reset-asserted"
	case ModeEntering:
		return "mode-entering"
	case Operating:
		return "operating"
	case PoweringDown:
		return "powering-down"
	default:
		return "unknown"
	}
}
