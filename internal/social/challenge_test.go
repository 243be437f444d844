package social

import "testing"

func TestChallengeResponseKnownVector(t *testing.T) {
	got, err := ChallengeResponse("abc123", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "sha256=WuWsgCoaXJT7aD4b+hIfn3AKJplSE/8vwcUD60PsccY="
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestChallengeResponseDeterministic(t *testing.T) {
	a, err := ChallengeResponse("token-1", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ChallengeResponse("token-1", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("same inputs produced %q and %q", a, b)
	}
}

func TestChallengeResponseVariesWithInputs(t *testing.T) {
	base, _ := ChallengeResponse("abc123", "secret")
	otherToken, _ := ChallengeResponse("abc124", "secret")
	otherSecret, _ := ChallengeResponse("abc123", "secret2")
	if base == otherToken {
		t.Fatal("different tokens produced the same response")
	}
	if base == otherSecret {
		t.Fatal("different secrets produced the same response")
	}
}

func TestChallengeResponseMissingSecret(t *testing.T) {
	if _, err := ChallengeResponse("abc123", ""); err == nil {
		t.Fatal("expected error for missing secret")
	}
}
