package component

// Brain runs a script that picks a steering behavior each tick.
type Brain struct {
	Script string
	State  string
	// Behavior is the last behavior the script requested, for display.
	Behavior string
}

var BrainComponent = NewComponent[Brain]("brain")
