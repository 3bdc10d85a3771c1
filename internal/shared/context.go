package shared

import "context"

// ActorKind distinguishes people from automated triggers.
type ActorKind string

const (
	ActorUser          ActorKind = "user"
	ActorScheduledTask ActorKind = "scheduled_task"
)

// Valid reports whether k is a known kind.
func (k ActorKind) Valid() bool {
	return k == ActorUser || k == ActorScheduledTask
}

// Actor is the identity a lifecycle event is attributed to.
type Actor struct {
	ID   int64     `json:"id"`
	Name string    `json:"name"`
	Kind ActorKind `json:"kind"`
}

// ScheduledTaskActor identifies a background job. Jobs carry no user id.
func ScheduledTaskActor(name string) Actor {
	return Actor{Name: name, Kind: ActorScheduledTask}
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
