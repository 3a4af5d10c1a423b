package protocol

import "testing"

func TestIsKnownKind(t *testing.T) {
	cases := []string{
		"",
		KindValidation,
		KindConfig,
		KindConnect,
		KindAuth,
		KindTimeout,
		KindCommand,
		KindInternal,
	}
	for _, c := range cases {
		if !IsKnownKind(c) {
			t.Fatalf("expected known kind: %q", c)
		}
	}
	if IsKnownKind("E_NOT_DEFINED") {
		t.Fatalf("expected unknown kind rejected")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(nil); got != "" {
		t.Fatalf("KindOf(nil) = %q", got)
	}
	f := Faultf(KindAuth, "bad secret for %s", "host")
	if got := KindOf(f); got != KindAuth {
		t.Fatalf("KindOf(fault) = %q", got)
	}
	if f.Error() != "E_AUTH: bad secret for host" {
		t.Fatalf("unexpected message: %q", f.Error())
	}
}
