package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadding_Apply(t *testing.T) {
	assert.Equal(t, "  abc", Padding{Kind: PadLeft, Width: 5}.Apply("abc"))
	assert.Equal(t, "abc  ", Padding{Kind: PadRight, Width: 5}.Apply("abc"))
	assert.Equal(t, " abc ", Padding{Kind: PadCenter, Width: 5}.Apply("abc"))
	assert.Equal(t, "abc", Padding{Kind: PadLeft, Width: 2}.Apply("abc"), "width <= current is a no-op")
	assert.Equal(t, "abc", Padding{Kind: PadNone, Width: 10}.Apply("abc"))
}

func TestPadding_CustomFill(t *testing.T) {
	assert.Equal(t, "00abc", Padding{Kind: PadLeft, Width: 5, Fill: '0'}.Apply("abc"))
}

func TestTruncation_Apply(t *testing.T) {
	assert.Equal(t, "ab…", Truncation{Kind: TruncTail, Width: 3}.Apply("abcdef"))
	assert.Equal(t, "…ef", Truncation{Kind: TruncHead, Width: 3}.Apply("abcdef"))
	assert.Equal(t, "abcdef", Truncation{Kind: TruncTail, Width: 10}.Apply("abcdef"), "longer width is a no-op")
	assert.Equal(t, "abcdef", Truncation{Kind: TruncNone, Width: 1}.Apply("abcdef"))
}

func TestTruncation_ZeroWidthYieldsEllipsisAlone(t *testing.T) {
	assert.Equal(t, "…", Truncation{Kind: TruncTail, Width: 0}.Apply("abcdef"))
}

func TestPrivacy_Redact(t *testing.T) {
	assert.Equal(t, "secret", Public.Redact("secret", false))
	assert.Equal(t, RedactedSentinel, Private.Redact("secret", false))
	assert.Equal(t, "secret", Private.Redact("secret", true), "disabled flag bypasses redaction")
}

func TestPrivacy_PartiallyHide(t *testing.T) {
	assert.Equal(t, "******789012", PartiallyHide.Redact("123456789012", false))
	assert.Equal(t, "abcdefg", Public.Redact("abcdefg", false))
}

func TestPrivacy_PartiallyHideShortStringRedactsEntirely(t *testing.T) {
	assert.Equal(t, RedactedSentinel, PartiallyHide.Redact("abc", false))
	assert.Equal(t, RedactedSentinel, PartiallyHide.Redact("a", false))
	assert.Equal(t, RedactedSentinel, PartiallyHide.Redact("", false))
}
