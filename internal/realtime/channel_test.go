package realtime

import (
	"strings"
	"testing"
)

func TestChannelNameRoundTrip(t *testing.T) {
	for _, id := range []uint{1, 42, 4294967295} {
		name := ChannelName(id)
		got, ok := ChannelUserID(name)
		if !ok {
			t.Fatalf("ChannelUserID(%q) not ok", name)
		}
		if got != id {
			t.Errorf("ChannelUserID(%q) = %d, want %d", name, got, id)
		}
	}
}

func TestChannelUserIDRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"private-user-",
		"private-user-0",
		"private-user-abc",
		"private-user-12x",
		"public-user-12",
		"private-user-12-extra", // trailing junk must not resolve
	}
	for _, name := range cases {
		if id, ok := ChannelUserID(name); ok {
			t.Errorf("ChannelUserID(%q) = %d, want rejection", name, id)
		}
	}
}

func TestAuthorizeSignatureShape(t *testing.T) {
	a := NewChannelAuthorizer("appkey", "secret")
	sig := a.Authorize("1234.5678", ChannelName(9))

	if !strings.HasPrefix(sig, "appkey:") {
		t.Fatalf("signature %q missing key prefix", sig)
	}
	if hexPart := strings.TrimPrefix(sig, "appkey:"); len(hexPart) != 64 {
		t.Errorf("hmac hex length = %d, want 64", len(hexPart))
	}
}

func TestAuthorizeIsDeterministicPerInput(t *testing.T) {
	a := NewChannelAuthorizer("k", "s")

	if a.Authorize("1.2", "private-user-3") != a.Authorize("1.2", "private-user-3") {
		t.Error("same input produced different signatures")
	}
	if a.Authorize("1.2", "private-user-3") == a.Authorize("1.2", "private-user-4") {
		t.Error("different channels produced the same signature")
	}
	if a.Authorize("1.2", "private-user-3") == a.Authorize("9.9", "private-user-3") {
		t.Error("different sockets produced the same signature")
	}

	b := NewChannelAuthorizer("k", "other")
	if a.Authorize("1.2", "private-user-3") == b.Authorize("1.2", "private-user-3") {
		t.Error("different secrets produced the same signature")
	}
}
