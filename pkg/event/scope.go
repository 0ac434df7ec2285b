package event

// CallSite identifies where an event was logged, captured by the façade
// (runtime.Caller or equivalent) before the event reaches this package.
type CallSite struct {
	File     string
	Line     int
	Function string
}

// UserContext is the optional identity attached to a scope.
type UserContext struct {
	ID       string
	Email    string
	Username string
	IP       string
	Data     map[string]any
}

// DeviceContext is the optional OS/device/locale context gated by the
// process-wide capture-options flag (see pkg/scope).
type DeviceContext struct {
	OSName     string
	OSVersion  string
	DeviceModel string
	Locale     string
	Timezone   string
}

// Scope is the immutable ambient-context snapshot attached to an event at
// creation time. It is copied by value from the logger's scope reference
// (itself seeded from pkg/scope.ProcessScope) plus any logger-local
// overrides, never mutated after the event exists.
type Scope struct {
	User        *UserContext
	ProcessID   int
	ThreadID    int64
	ProcessName string
	CallSite    CallSite
	Context     *DeviceContext
	Tags        map[string]string
	Extra       map[string]any
}

// mergedStrings implements the event/scope tag merge rule: event-level
// entries win, scope entries fill gaps. Always returns a fresh map, never
// an alias into either input.
func mergedStrings(eventLevel, scopeLevel map[string]string) map[string]string {
	out := make(map[string]string, len(eventLevel)+len(scopeLevel))
	for k, v := range scopeLevel {
		out[k] = v
	}
	for k, v := range eventLevel {
		out[k] = v
	}
	return out
}

// mergedAny implements the same merge rule for the polymorphic extra map.
func mergedAny(eventLevel, scopeLevel map[string]any) map[string]any {
	out := make(map[string]any, len(eventLevel)+len(scopeLevel))
	for k, v := range scopeLevel {
		out[k] = v
	}
	for k, v := range eventLevel {
		out[k] = v
	}
	return out
}
