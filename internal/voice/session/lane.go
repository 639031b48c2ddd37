package session

import "errors"

// ErrLaneProtected is returned by RegisterLane when the current lane is
// protected and the new registration is not an explicit takeover.
var ErrLaneProtected = errors.New("session: current lane is protected")

// lane is the coordinator's record of the owning screen context.
type lane struct {
	id        string
	protected bool
}

// LaneOption configures a lane registration.
type LaneOption func(*laneOptions)

type laneOptions struct {
	protected bool
	takeover  bool
}

// WithProtection marks the new lane as protected: a later registration from
// another screen fails with ErrLaneProtected unless it is a takeover or the
// protection was cleared first.
func WithProtection() LaneOption {
	return func(o *laneOptions) { o.protected = true }
}

// WithTakeover lets the registration replace a protected lane. Used by
// deliberate screen transitions, not by cleanup paths.
func WithTakeover() LaneOption {
	return func(o *laneOptions) { o.takeover = true }
}

// LaneHandle is the caller's proof of lane ownership. Screens hold the
// handle instead of looking the lane up by name.
type LaneHandle struct {
	c  *Coordinator
	id string
}

// ID returns the lane identifier.
func (h *LaneHandle) ID() string { return h.id }

// Owned reports whether this handle still owns the coordinator's lane.
func (h *LaneHandle) Owned() bool {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	return h.c.lane != nil && h.c.lane.id == h.id
}

// Release clears the lane if this handle still owns it. It never touches the
// recognition session — teardown is a separate, deliberate Stop.
func (h *LaneHandle) Release() {
	h.c.mu.Lock()
	defer h.c.mu.Unlock()
	if h.c.lane != nil && h.c.lane.id == h.id {
		h.c.lane = nil
		h.c.log.Debug("lane released", "lane", h.id)
	}
}
