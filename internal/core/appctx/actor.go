package appctx

import (
	"context"
)

// Actor contains the acting user's identity and facility scope.
// The HTTP layer builds it from a pre-validated token; the domain
// layer trusts it for audit fields and scope checks and never
// authenticates on its own.
type Actor struct {
	UserID     string
	Name       string
	Role       string
	FacilityID string // home facility, empty for warehouse staff and admins
	IsAdmin    bool
}

type actorKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// GetActor returns Actor from context, or nil when the request is anonymous.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetActorID returns the acting user's ID from context or empty string.
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.UserID
	}
	return ""
}

// GetFacilityID returns the actor's facility scope or empty string.
func GetFacilityID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.FacilityID
	}
	return ""
}

// HasRole checks if the actor has the given role.
func HasRole(ctx context.Context, role string) bool {
	a := GetActor(ctx)
	if a == nil {
		return false
	}
	return a.IsAdmin || a.Role == role
}
