package component

type PlayerTag struct{}

var PlayerTagComponent = NewComponent[PlayerTag]("player")

type AITag struct {
	Name string
}

var AITagComponent = NewComponent[AITag]("ai")
