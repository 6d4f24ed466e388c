package model

import "github.com/google/uuid"

// Actor is the authenticated identity behind a request. It is resolved
// once by the auth middleware and passed explicitly into every service
// call; services never reach into ambient session state.
type Actor struct {
	UserID  uuid.UUID
	Email   string
	IsAdmin bool
}
