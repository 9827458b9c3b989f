// Package audit supplies the "who and when" stamped onto written entities.
package audit

import "time"

// Stamp identifies the writer and the moment of a write.
type Stamp struct {
	By string
	At time.Time
}

// Provider hands out audit stamps.
type Provider interface {
	Stamp() Stamp
}

// Clock returns the current time.
type Clock func() time.Time

// StaticProvider stamps every write with a fixed identity.
type StaticProvider struct {
	identity string
	clock    Clock
}

// NewStaticProvider creates a provider. A nil clock uses UTC wall time.
func NewStaticProvider(identity string, clock Clock) *StaticProvider {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &StaticProvider{identity: identity, clock: clock}
}

// Stamp implements Provider.
func (p *StaticProvider) Stamp() Stamp {
	return Stamp{By: p.identity, At: p.clock()}
}

// FixedClock returns a clock frozen at t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
