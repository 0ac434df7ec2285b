package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fieldlog/pkg/event"
)

// SysLogFormatter assembles an RFC-5424 line:
// <priority>VERSION ISOTS HOST APP PID MSGID [SD] MSG
type SysLogFormatter struct {
	Facility             int
	Host                 string
	AppName              string
	MessageField         Field
	StructuredDataID     string
	StructuredDataFields []Field
	SkipMissingFields    bool
}

const syslogVersion = 1

// Format implements the formatter output contract.
func (f *SysLogFormatter) Format(e *event.Event, disablePrivacyRedaction bool) (string, bool) {
	priority := f.Facility*8 + int(e.Level())
	host := orDash(f.Host)
	app := orDash(f.AppName)
	pid := strconv.Itoa(e.Scope().ProcessID)
	ts := e.Timestamp().Format(time.RFC3339Nano)

	msgField := f.MessageField
	if msgField == nil {
		msgField = MessageField()
	}
	ro := RenderOptions{SkipMissingFields: f.SkipMissingFields, DisablePrivacyRedaction: disablePrivacyRedaction}
	msg := ""
	if resolved := Resolve([]Field{msgField}, e, ro); len(resolved) > 0 {
		msg = resolved[0].Text
	}

	sd := f.structuredData(e, ro)

	return fmt.Sprintf("<%d>%d %s %s %s %s %s %s %s",
		priority, syslogVersion, ts, host, app, pid, "-", sd, msg), true
}

func (f *SysLogFormatter) structuredData(e *event.Event, ro RenderOptions) string {
	if len(f.StructuredDataFields) == 0 {
		return "-"
	}
	id := f.StructuredDataID
	if id == "" {
		id = "meta"
	}
	resolved := Resolve(f.StructuredDataFields, e, ro)
	if len(resolved) == 0 {
		return "-"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s", id)
	for _, r := range resolved {
		fmt.Fprintf(&b, " %s=%q", r.Name, r.Text)
	}
	b.WriteString("]")
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
