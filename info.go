package rego

import "time"

// Info is a pure snapshot of a handle, safe to take in any lifecycle state.
type Info struct {
	Kind       string    `json:"kind"`
	ID         string    `json:"id"`
	Seq        uint64    `json:"seq"`
	Target     string    `json:"target"`
	Mode       Mode      `json:"mode,omitempty"`
	User       string    `json:"user,omitempty"`
	State      State     `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
	Operations int       `json:"operations"`
}
