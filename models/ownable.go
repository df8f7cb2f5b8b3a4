package models

import "github.com/google/uuid"

// Ownable is implemented by entities that belong to a single user.
// Handlers check ownership through this interface instead of inspecting
// concrete types.
type Ownable interface {
	OwnerID() *uuid.UUID
}

// OwnedBy reports whether o belongs to userID. Entities without an owner
// (anonymous carts, orders whose user was deleted) belong to no one.
func OwnedBy(o Ownable, userID uuid.UUID) bool {
	owner := o.OwnerID()
	return owner != nil && *owner == userID
}
