// Package scene stores which roleplay channels are reserved for a scene.
package scene

import "time"

// State is either Available or Reserved. A channel is never half reserved.
type State interface {
	IsAvailable() bool
	isState()
}

// Available marks a channel with no scene running.
type Available struct{}

// IsAvailable reports true.
func (Available) IsAvailable() bool { return true }
func (Available) isState()          {}

// Reserved marks a channel bound to a running scene.
type Reserved struct {
	SceneName string
	CreatedBy int64
	CreatedAt time.Time
	// UpdatedAt is the last post time in the scene.
	UpdatedAt time.Time
}

// IsAvailable reports false.
func (Reserved) IsAvailable() bool { return false }
func (Reserved) isState()          {}

// Channel is one known rp channel.
type Channel struct {
	ID    int64
	Name  string
	State State
}

// IsAvailable reports whether no scene is running in c.
func (c Channel) IsAvailable() bool {
	return c.State == nil || c.State.IsAvailable()
}

// Reservation returns the running scene of c, if any.
func (c Channel) Reservation() (Reserved, bool) {
	r, ok := c.State.(Reserved)
	return r, ok
}
