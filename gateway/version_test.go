package gateway

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("You are a helpful service representative.")
	b := Fingerprint("You are a helpful service representative.")

	if a != b {
		t.Errorf("Identical instructions produced different fingerprints: %s != %s", a, b)
	}
}

func TestFingerprintChangesWithInstructions(t *testing.T) {
	a := Fingerprint("You are a helpful service representative.")
	b := Fingerprint("You are a helpful service representative!")

	if a == b {
		t.Error("Different instructions produced the same fingerprint")
	}
}

func TestFingerprintLength(t *testing.T) {
	fp := Fingerprint("anything")
	if len(fp) != 16 {
		t.Errorf("Expected 16-character fingerprint, got %d characters", len(fp))
	}
}

func TestConversationStore(t *testing.T) {
	store := NewConversationStore()

	id := store.Create()
	if id == "" {
		t.Fatal("Expected non-empty conversation id")
	}

	if err := store.Append(id, Message{Role: RoleUser, Content: "hello"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(id, Message{Role: RoleAssistant, Content: "hi there"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	history, err := store.History(id)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(history))
	}
	if history[0].Role != RoleUser || history[1].Role != RoleAssistant {
		t.Error("History order does not match insertion order")
	}
}

func TestConversationStoreUnknownConversation(t *testing.T) {
	store := NewConversationStore()

	if err := store.Append("missing", Message{Role: RoleUser, Content: "x"}); err == nil {
		t.Error("Expected error appending to unknown conversation")
	}
	if _, err := store.History("missing"); err == nil {
		t.Error("Expected error reading unknown conversation")
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	inner := &ProviderError{Provider: "openai", Op: "generate"}
	wrapped := NewProviderError("openai", "generate", inner)

	if wrapped.Unwrap() != inner {
		t.Error("Unwrap should return the wrapped error")
	}
	if wrapped.Error() == "" {
		t.Error("Expected non-empty error message")
	}
}
