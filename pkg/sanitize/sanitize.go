// Package sanitize redacts well-known secret shapes (bearer tokens, AWS
// keys, connection-string passwords, credit card numbers, ...) out of
// arbitrary text. It is pattern-based and opt-in per field, meant to sit
// alongside event.Privacy's manual per-field redaction rather than
// replace it: Privacy covers fields a caller already knows are
// sensitive, Redactor covers secrets that leak into fields a caller
// didn't expect to carry them (a stack trace with a DSN, an error
// string with a bearer header). Grounded on the teacher's
// pkg/security.Sanitizer regex set and replacement rules.
package sanitize

import (
	"regexp"
	"strings"
)

// Options selects which of the optional pattern groups a Redactor checks.
// The always-on patterns (bearer/API-key/JWT/AWS/password-like fields/SSN/CPF)
// have no opt-out: they're unambiguous secret shapes with negligible
// false-positive risk. Email, IP, and credit-card matching can hide
// legitimate debug content, so they default off.
type Options struct {
	RedactEmails      bool
	RedactIPs         bool
	RedactCreditCards bool
	CustomPatterns    map[string]string // name -> regexp, applied as ${1}****
}

// Redactor applies a fixed set of compiled patterns to text.
type Redactor struct {
	always  []replacement
	email   *regexp.Regexp
	ipv4    *regexp.Regexp
	ipv6    *regexp.Regexp
	card    *regexp.Regexp
	custom  []replacement
}

type replacement struct {
	re   *regexp.Regexp
	repl string
}

// New builds a Redactor from opts. A zero Options redacts only the
// always-on patterns.
func New(opts Options) *Redactor {
	r := &Redactor{
		always: []replacement{
			{regexp.MustCompile(`(://[^:@]+:)([^@]+?)(@)`), "${1}****${3}"},
			{regexp.MustCompile(`(?i)(bearer\s+)([a-zA-Z0-9\-._~+/]+=*)`), "${1}****"},
			{regexp.MustCompile(`(eyJ[a-zA-Z0-9\-._~+/]+=*\.eyJ[a-zA-Z0-9\-._~+/]+=*\.[a-zA-Z0-9\-._~+/]+=*)`), "****"},
			{regexp.MustCompile(`(?i)(api[_-]?key\s*[=:]\s*)([a-zA-Z0-9\-._~+/]+)`), "${1}****"},
			{regexp.MustCompile(`(?i)(x-api-key\s*[=:]\s*)([a-zA-Z0-9\-._~+/]+)`), "${1}****"},
			{regexp.MustCompile(`(?i)(authorization\s*[=:]\s*)(.+?)(\s|$)`), "${1}****${3}"},
			{regexp.MustCompile(`(?i)(aws[_-]?access[_-]?key[_-]?id\s*[=:]\s*)([A-Z0-9]{20})`), "${1}****"},
			{regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key\s*[=:]\s*)([A-Za-z0-9/+=]{40})`), "${1}****"},
			{regexp.MustCompile(`(?i)(password\s*[=:]\s*)([^\s,&]+)`), "${1}****"},
			{regexp.MustCompile(`(?i)(passwd\s*[=:]\s*)([^\s,&]+)`), "${1}****"},
			{regexp.MustCompile(`(?i)(pwd\s*[=:]\s*)([^\s,&]+)`), "${1}****"},
			{regexp.MustCompile(`(?i)(token\s*[=:]\s*)([a-zA-Z0-9\-._~+/]{16,})`), "${1}****"},
			{regexp.MustCompile(`(?i)(secret\s*[=:]\s*)([a-zA-Z0-9\-._~+/]{16,})`), "${1}****"},
			{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "***-**-****"},
			{regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{3}-\d{2}\b`), "***.***.***-**"},
		},
	}
	if opts.RedactCreditCards {
		r.card = regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`)
	}
	if opts.RedactEmails {
		r.email = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
	}
	if opts.RedactIPs {
		r.ipv4 = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
		r.ipv6 = regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}\b`)
	}
	for name, pattern := range opts.CustomPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			r.custom = append(r.custom, replacement{re, "${1}****"})
		} else {
			_ = name // invalid custom pattern is skipped, not fatal
		}
	}
	return r
}

// Redact applies every configured pattern to s in order and returns the result.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}
	result := s
	for _, rep := range r.always {
		result = rep.re.ReplaceAllString(result, rep.repl)
	}
	for _, rep := range r.custom {
		result = rep.re.ReplaceAllString(result, rep.repl)
	}
	if r.card != nil {
		result = r.card.ReplaceAllStringFunc(result, func(match string) string {
			cleaned := strings.NewReplacer("-", "", " ", "").Replace(match)
			if len(cleaned) >= 4 {
				return "****-****-****-" + cleaned[len(cleaned)-4:]
			}
			return "****"
		})
	}
	if r.email != nil {
		result = r.email.ReplaceAllStringFunc(result, func(email string) string {
			parts := strings.Split(email, "@")
			if len(parts) == 2 && len(parts[0]) > 0 {
				return parts[0][:1] + "****@" + parts[1]
			}
			return "****@****.***"
		})
	}
	if r.ipv4 != nil {
		result = r.ipv4.ReplaceAllStringFunc(result, func(ip string) string {
			parts := strings.Split(ip, ".")
			if len(parts) == 4 {
				return parts[0] + "." + parts[1] + ".***.**"
			}
			return "***.***.***.**"
		})
	}
	if r.ipv6 != nil {
		result = r.ipv6.ReplaceAllString(result, "****:****:****:****:****:****:****:****")
	}
	return result
}

// Transform returns a func(string) string bound to r, for use with
// format.WithTransforms: format.MessageField(format.WithTransforms(r.Transform())).
func (r *Redactor) Transform() func(string) string {
	return r.Redact
}
