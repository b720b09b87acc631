package pkce

import "testing"

func TestRFC7636Vector(t *testing.T) {
	const verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	const want = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	if got := ComputeChallengeS256(verifier); got != want {
		t.Fatalf("challenge = %s, want %s", got, want)
	}
	if !Verify(verifier, want, MethodS256) {
		t.Fatal("expected verify to succeed for RFC 7636 B.1 vector")
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	for i := 0; i < 50; i++ {
		v, err := GenerateVerifier()
		if err != nil {
			t.Fatal(err)
		}
		c := ComputeChallengeS256(v)
		if !Verify(v, c, MethodS256) {
			t.Fatalf("round trip failed for verifier %s", v)
		}
	}
}

func TestVerifyLengthBoundaries(t *testing.T) {
	mk := func(n int) string {
		s := make([]byte, n)
		for i := range s {
			s[i] = 'a'
		}
		return string(s)
	}
	short := mk(42)
	min := mk(43)
	max := mk(128)
	long := mk(129)

	if Verify(short, ComputeChallengeS256(short), MethodS256) {
		t.Error("expected length 42 verifier to be rejected")
	}
	if !Verify(min, ComputeChallengeS256(min), MethodS256) {
		t.Error("expected length 43 verifier to be accepted")
	}
	if !Verify(max, ComputeChallengeS256(max), MethodS256) {
		t.Error("expected length 128 verifier to be accepted")
	}
	if Verify(long, ComputeChallengeS256(long), MethodS256) {
		t.Error("expected length 129 verifier to be rejected")
	}
}

func TestVerifyRejectsPlain(t *testing.T) {
	v, _ := GenerateVerifier()
	if Verify(v, ComputeChallengeS256(v), "plain") {
		t.Error("expected plain method to be rejected unconditionally")
	}
}

func TestVerifyRejectsMismatch(t *testing.T) {
	v, _ := GenerateVerifier()
	if Verify(v, "not-the-right-challenge", MethodS256) {
		t.Error("expected mismatched challenge to fail")
	}
}
