package util

import (
	"bytes"
	"testing"
)

func TestArgon2id(t *testing.T) {
	params := DefaultArgon2idParams()
	passphrase := "correct horse battery staple"
	salt := []byte("random salt")

	key, err := DeriveArgon2idKey(passphrase, salt, params)
	if err != nil {
		t.Fatalf("DeriveArgon2idKey failed: %v", err)
	}

	if len(key) != 32 {
		t.Errorf("expected key length 32, got %d", len(key))
	}

	match, err := CompareArgon2idKey(passphrase, salt, params, key)
	if err != nil {
		t.Fatalf("CompareArgon2idKey failed: %v", err)
	}
	if !match {
		t.Error("expected CompareArgon2idKey to return true")
	}

	match, _ = CompareArgon2idKey("wrong passphrase", salt, params, key)
	if match {
		t.Error("expected CompareArgon2idKey to return false for wrong passphrase")
	}
}

func TestArgon2idNormalizesPassword(t *testing.T) {
	params := DefaultArgon2idParams()
	salt := []byte("random salt")

	// "é" composed vs decomposed must derive the same key.
	k1, err := DeriveArgon2idKey("café", salt, params)
	if err != nil {
		t.Fatalf("DeriveArgon2idKey failed: %v", err)
	}
	k2, err := DeriveArgon2idKey("café", salt, params)
	if err != nil {
		t.Fatalf("DeriveArgon2idKey failed: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("equivalent Unicode forms should derive the same key")
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("café") != "café" {
		t.Error("Normalize should decompose to NFKD form")
	}
}

func TestRandom(t *testing.T) {
	t.Run("RandomBytes", func(t *testing.T) {
		b1, err := RandomBytes(32)
		if err != nil {
			t.Fatalf("RandomBytes failed: %v", err)
		}
		b2, err := RandomBytes(32)
		if err != nil {
			t.Fatalf("RandomBytes failed: %v", err)
		}
		if len(b1) != 32 {
			t.Errorf("expected 32 bytes, got %d", len(b1))
		}
		if bytes.Equal(b1, b2) {
			t.Error("RandomBytes should produce different outputs")
		}
	})

	t.Run("RandomToken", func(t *testing.T) {
		s1, err := RandomToken(16)
		if err != nil {
			t.Fatalf("RandomToken failed: %v", err)
		}
		s2, err := RandomToken(16)
		if err != nil {
			t.Fatalf("RandomToken failed: %v", err)
		}
		if len(s1) != 32 {
			t.Errorf("expected 32 hex chars, got %d", len(s1))
		}
		if s1 == s2 {
			t.Error("RandomToken should produce different outputs")
		}
	})
}
