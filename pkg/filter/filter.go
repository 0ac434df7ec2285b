// Package filter implements the predicate pipeline a logger and a
// transport each evaluate before an event is allowed through: an ordered
// chain of pure functions, short-circuiting on the first rejection.
package filter

import "fieldlog/pkg/event"

// Filter decides whether an event should proceed. Filters are pure: they
// must never mutate the event they are given.
type Filter func(e *event.Event) bool

// Chain is an ordered list of filters evaluated in order. Accept returns
// false as soon as any filter in the chain rejects.
type Chain []Filter

// Accept runs the chain against e, short-circuiting on the first
// rejection. An empty chain accepts everything.
func (c Chain) Accept(e *event.Event) bool {
	for _, f := range c {
		if !f(e) {
			return false
		}
	}
	return true
}

// Append returns a new chain with f appended, leaving c untouched.
func (c Chain) Append(f Filter) Chain {
	out := make(Chain, len(c), len(c)+1)
	copy(out, c)
	return append(out, f)
}
