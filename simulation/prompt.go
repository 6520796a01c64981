package simulation

import (
	"github.com/sweetpotato0/mountdoom/prompt"
)

// The customer prompt is the only place persona properties enter the run;
// the representative's context is built from conversation history alone.
const customerPromptTemplate = `You are the customer in an ongoing support conversation.

Your intent: {{.Intent}}
Your sentiment: {{.Sentiment}}
The subject of the conversation: {{.Subject}}

Conversation so far:
{{range .Turns}}{{.Label}}: {{.Content}}
{{end}}
Write the customer's next message only.`

type promptTurn struct {
	Label   string
	Content string
}

type promptBuilder struct {
	manager *prompt.Manager
}

func newPromptBuilder() (*promptBuilder, error) {
	manager := prompt.NewManager()
	if err := manager.RegisterString("customer_context", customerPromptTemplate); err != nil {
		return nil, err
	}
	return &promptBuilder{manager: manager}, nil
}

// buildCustomerPrompt embeds the persona properties and the role-labeled
// turn history into the customer agent's contextual prompt.
func (b *promptBuilder) buildCustomerPrompt(props Properties, turns []ConversationTurn) (string, error) {
	labeled := make([]promptTurn, len(turns))
	for i, turn := range turns {
		label := "Representative"
		if turn.Role == RoleCustomer {
			label = "Customer"
		}
		labeled[i] = promptTurn{Label: label, Content: turn.Content}
	}

	return b.manager.Render("customer_context", map[string]any{
		"Intent":    props.CustomerIntent,
		"Sentiment": props.CustomerSentiment,
		"Subject":   props.ConversationSubject,
		"Turns":     labeled,
	})
}
