// Package component holds the data attached to steering agents and the
// typed kinds used to look it up in an ecs.World.
package component

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
)

var (
	ErrEntityNotAlive       = errors.New("ecs: entity not alive")
	ErrNilComponent         = errors.New("ecs: component is nil")
	ErrInvalidComponentKind = errors.New("ecs: invalid component kind")
)

// ComponentID keys a store inside a world. Zero is never issued.
type ComponentID uint32

var kindSeq atomic.Uint32

// ComponentKind identifies one store of T values. Kinds minted separately
// for the same type are distinct stores.
type ComponentKind[T any] struct {
	id   ComponentID
	name string
}

// NewComponentKind mints an unnamed kind, labelled by its Go type.
func NewComponentKind[T any]() ComponentKind[T] {
	return mintKind[T]("")
}

func mintKind[T any](name string) ComponentKind[T] {
	id := ComponentID(kindSeq.Add(1))
	if name == "" {
		name = reflect.TypeFor[T]().String()
	}
	return ComponentKind[T]{id: id, name: name}
}

func (k ComponentKind[T]) ID() ComponentID {
	return k.id
}

func (k ComponentKind[T]) Valid() bool {
	return k.id != 0
}

func (k ComponentKind[T]) Name() string {
	if k.name == "" {
		return "invalid"
	}
	return k.name
}

func (k ComponentKind[T]) String() string {
	return fmt.Sprintf("%s#%d", k.Name(), k.id)
}

// ComponentHandle is the package-level registration of an agent component.
type ComponentHandle[T any] struct {
	kind ComponentKind[T]
}

// NewComponent registers a component under name. The name only labels
// errors and logs.
func NewComponent[T any](name string) ComponentHandle[T] {
	return ComponentHandle[T]{kind: mintKind[T](name)}
}

func (h ComponentHandle[T]) Kind() ComponentKind[T] {
	return h.kind
}
