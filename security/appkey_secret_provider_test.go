package security

import (
	"context"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	provider, err := NewAppKeySecretProviderFromString("application-secret-key")
	if err != nil {
		t.Fatalf("NewAppKeySecretProviderFromString returned error: %v", err)
	}
	ctx := context.Background()

	plaintext := []byte(`{"scheme":"oauth2","oauth":{"access_token":"a"}}`)
	sealed, err := provider.Encrypt(ctx, plaintext)
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	if !strings.HasPrefix(string(sealed), envelopePrefix) {
		t.Fatalf("sealed payload missing envelope prefix: %s", sealed[:32])
	}
	if strings.Contains(string(sealed), "access_token") {
		t.Fatal("sealed payload leaks plaintext")
	}

	opened, err := provider.Decrypt(ctx, sealed)
	if err != nil {
		t.Fatalf("Decrypt returned error: %v", err)
	}
	if string(opened) != string(plaintext) {
		t.Fatalf("round trip mismatch: %s", opened)
	}
}

func TestEncryptProducesUniqueCiphertext(t *testing.T) {
	provider, err := NewAppKeySecretProviderFromString("application-secret-key")
	if err != nil {
		t.Fatalf("constructor returned error: %v", err)
	}
	ctx := context.Background()

	first, err := provider.Encrypt(ctx, []byte("same payload"))
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	second, err := provider.Encrypt(ctx, []byte("same payload"))
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	if string(first) == string(second) {
		t.Fatal("nonce reuse: identical plaintext produced identical envelopes")
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	ctx := context.Background()
	writer, _ := NewAppKeySecretProviderFromString("key-one")
	reader, _ := NewAppKeySecretProviderFromString("key-two")

	sealed, err := writer.Encrypt(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	if _, err := reader.Decrypt(ctx, sealed); err == nil {
		t.Fatal("wrong key should fail to decrypt")
	}
}

func TestDecryptRejectsKeyIDMismatch(t *testing.T) {
	ctx := context.Background()
	writer, _ := NewAppKeySecretProviderFromString("key-one", WithKeyID("k-2026"))
	reader, _ := NewAppKeySecretProviderFromString("key-one", WithKeyID("k-2027"))

	sealed, err := writer.Encrypt(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	if _, err := reader.Decrypt(ctx, sealed); err == nil {
		t.Fatal("unknown key id should fail")
	}
}

func TestDecryptWithPreviousKeyDuringRotation(t *testing.T) {
	ctx := context.Background()
	old, _ := NewAppKeySecretProviderFromString("key-old", WithKeyID("k-2026"))
	sealed, err := old.Encrypt(ctx, []byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}

	rotated, _ := NewAppKeySecretProviderFromString("key-new",
		WithKeyID("k-2027"),
		WithPreviousKey("k-2026", []byte("key-old")),
	)
	opened, err := rotated.Decrypt(ctx, sealed)
	if err != nil {
		t.Fatalf("rotated provider should read old envelopes: %v", err)
	}
	if string(opened) != "payload" {
		t.Fatalf("round trip mismatch: %s", opened)
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	provider, _ := NewAppKeySecretProviderFromString("key")
	if _, err := provider.Decrypt(context.Background(), []byte("not an envelope")); err == nil {
		t.Fatal("garbage input should fail")
	}
	if _, err := provider.Decrypt(context.Background(), nil); err == nil {
		t.Fatal("empty input should fail")
	}
}

func TestConstructorRequiresKeyMaterial(t *testing.T) {
	if _, err := NewAppKeySecretProvider(nil); err == nil {
		t.Fatal("empty key material should fail")
	}
	if _, err := NewAppKeySecretProviderFromString("   "); err == nil {
		t.Fatal("blank key material should fail")
	}
}
