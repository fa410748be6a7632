package component

import "github.com/milk9111/pathsteer/physics"

// PhysicsBody links an entity to its shape in the physics world.
type PhysicsBody struct {
	Body *physics.Body
}

var PhysicsBodyComponent = NewComponent[PhysicsBody]("physics_body")
