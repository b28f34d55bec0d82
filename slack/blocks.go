package slack

// Minimal Block Kit surface: sections, dividers and button rows. That is
// everything the lifecycle engine ever sends.

type Block struct {
	Type     string    `json:"type"`
	BlockID  string    `json:"block_id,omitempty"`
	Text     *Text     `json:"text,omitempty"`
	Elements []Element `json:"elements,omitempty"`
}

type Text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type Element struct {
	Type     string `json:"type"`
	ActionID string `json:"action_id,omitempty"`
	Text     *Text  `json:"text,omitempty"`
	Value    string `json:"value,omitempty"`
}

// Section builds a markdown section block.
func Section(text string) Block {
	return Block{Type: "section", Text: &Text{Type: "mrkdwn", Text: text}}
}

// Divider builds a divider block.
func Divider() Block {
	return Block{Type: "divider"}
}

// Button builds an interactive button element.
func Button(actionID, label, value string) Element {
	return Element{
		Type:     "button",
		ActionID: actionID,
		Text:     &Text{Type: "plain_text", Text: label, Emoji: true},
		Value:    value,
	}
}
