package simulation

import (
	"strings"
	"testing"
)

func TestBuildCustomerPrompt(t *testing.T) {
	b, err := newPromptBuilder()
	if err != nil {
		t.Fatalf("newPromptBuilder failed: %v", err)
	}

	props := Properties{
		CustomerIntent:      "Billing Inquiry",
		CustomerSentiment:   "Frustrated",
		ConversationSubject: "Double charge",
	}
	turns := []ConversationTurn{
		{Role: RoleRepresentative, Content: "Hello, how can I help?"},
		{Role: RoleCustomer, Content: "You charged me twice."},
	}

	out, err := b.buildCustomerPrompt(props, turns)
	if err != nil {
		t.Fatalf("buildCustomerPrompt failed: %v", err)
	}

	for _, want := range []string{
		"Billing Inquiry", "Frustrated", "Double charge",
		"Representative: Hello, how can I help?",
		"Customer: You charged me twice.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Prompt missing %q:\n%s", want, out)
		}
	}
}

func TestBuildCustomerPromptEmptyHistory(t *testing.T) {
	b, err := newPromptBuilder()
	if err != nil {
		t.Fatalf("newPromptBuilder failed: %v", err)
	}

	out, err := b.buildCustomerPrompt(Properties{
		CustomerIntent:      "i",
		CustomerSentiment:   "s",
		ConversationSubject: "c",
	}, nil)
	if err != nil {
		t.Fatalf("buildCustomerPrompt failed: %v", err)
	}
	if out == "" {
		t.Error("Expected non-empty prompt for empty history")
	}
}

func TestPropertiesValidate(t *testing.T) {
	valid := Properties{CustomerIntent: "i", CustomerSentiment: "s", ConversationSubject: "c"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid properties rejected: %v", err)
	}

	invalid := Properties{CustomerIntent: " ", CustomerSentiment: "s", ConversationSubject: "c"}
	if err := invalid.Validate(); err == nil {
		t.Error("Whitespace-only intent should be rejected")
	}
}
