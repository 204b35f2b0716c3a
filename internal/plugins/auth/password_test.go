package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("s3cret!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "s3cret!" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !strings.HasPrefix(hash, "$2a$") {
		t.Errorf("expected bcrypt hash, got %q", hash)
	}

	if !h.Verify("s3cret!", hash) {
		t.Error("expected correct password to verify")
	}
	if h.Verify("s3cret", hash) {
		t.Error("expected different password to fail")
	}
	if h.Verify("", hash) {
		t.Error("expected empty password to fail")
	}
}

func TestBcryptHasher_SaltsEachHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	a, err := h.Hash("pw1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash("pw1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Error("expected two hashes of the same password to differ")
	}
}

func TestBcryptHasher_MalformedHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	for _, hash := range []string{"", "plaintext", "$2a$10$short"} {
		if h.Verify("anything", hash) {
			t.Errorf("expected malformed hash %q not to verify", hash)
		}
	}
}

func TestBcryptHasher_UsesCost(t *testing.T) {
	hash, err := NewBcryptHasher(5).Hash("pw")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if cost != 5 {
		t.Errorf("expected cost 5, got %d", cost)
	}

	if got := NewBcryptHasher(0).(*bcryptHasher).cost; got != bcrypt.DefaultCost {
		t.Errorf("expected out-of-range cost to fall back to %d, got %d", bcrypt.DefaultCost, got)
	}
}

func TestBcryptHasher_RejectsOverlongPlaintext(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	password := strings.Repeat("a", maxPasswordBytes)

	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !h.Verify(password, hash) {
		t.Fatal("expected the 72-byte password to verify")
	}
	if h.Verify(password+"TOTALLY-DIFFERENT", hash) {
		t.Error("expected a longer plaintext sharing the 72-byte prefix to fail")
	}
}
