// Package model defines the entities that flow through the lead pipeline.
package model

// Entity is anything persisted one document per id.
type Entity interface {
	EntityID() string
}
