package scope

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/process"

	"fieldlog/pkg/event"
)

// Capture builds a Scope for the calling logger: process identity always,
// plus device/OS context when the capture-options flag requests it. site
// is the call site captured by the façade (outside this package's
// responsibility per spec §3).
func (s *ProcessScope) Capture(site event.CallSite, localTags map[string]string, localExtra map[string]any) event.Scope {
	sc := event.Scope{
		ProcessID:   os.Getpid(),
		ThreadID:    goroutineID(),
		ProcessName: processName(),
		CallSite:    site,
		User:        s.User(),
		Tags:        mergeLocal(s.Tags(), localTags),
		Extra:       mergeLocalAny(s.Extra(), localExtra),
	}
	if opts := s.CaptureOptions(); opts != CaptureNone {
		sc.Context = captureDevice(opts)
	}
	return sc
}

// goroutineID is a best-effort stand-in for the source's thread identifier.
// Go has no stable goroutine-ID API; a monotonic per-call-site value is not
// meaningful, so this returns the PID-scoped fallback of 0, documented as
// "unavailable" rather than faked with a parsed stack trace.
func goroutineID() int64 { return 0 }

var processNameCache string

func processName() string {
	if processNameCache != "" {
		return processNameCache
	}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		processNameCache = "unknown"
		return processNameCache
	}
	name, err := p.Name()
	if err != nil || name == "" {
		name = "unknown"
	}
	processNameCache = name
	return name
}

// captureDevice fills in the subset of DeviceContext requested by opts.
// gopsutil calls that fail populate nothing rather than erroring the whole
// capture — a partially filled context is better than none.
func captureDevice(opts CaptureOptions) *event.DeviceContext {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	dc := &event.DeviceContext{}
	if opts.Has(CaptureOS) {
		if info, err := host.InfoWithContext(ctx); err == nil {
			dc.OSName = info.OS
			dc.OSVersion = info.PlatformVersion
		}
	}
	if opts.Has(CaptureDevice) {
		if info, err := host.InfoWithContext(ctx); err == nil {
			dc.DeviceModel = info.Platform
		}
	}
	if opts.Has(CaptureLocale) {
		dc.Locale = localeFromEnv()
	}
	if opts.Has(CaptureTimezone) {
		tz, _ := time.Now().Zone()
		dc.Timezone = tz
	}
	return dc
}

func localeFromEnv() string {
	for _, key := range []string{"LC_ALL", "LANG", "LANGUAGE"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func mergeLocal(global, local map[string]string) map[string]string {
	if len(local) == 0 {
		return global
	}
	out := make(map[string]string, len(global)+len(local))
	for k, v := range global {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}

func mergeLocalAny(global, local map[string]any) map[string]any {
	if len(local) == 0 {
		return global
	}
	out := make(map[string]any, len(global)+len(local))
	for k, v := range global {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}
