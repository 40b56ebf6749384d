// Package domain defines the core domain models for the integritas chat client and server.
package domain

import "time"

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Blocks    []Block   `json:"blocks,omitempty"`
	Links     []Link    `json:"links,omitempty"`
	IsError   bool      `json:"isError,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	// Streaming is true while an assistant message is still being rewritten.
	Streaming bool `json:"-"`
}

// BlockKind tags the variant held by a Block.
type BlockKind string

const (
	BlockHeading  BlockKind = "heading"
	BlockToolInfo BlockKind = "toolInfo"
	BlockToolJSON BlockKind = "toolJson"
	BlockText     BlockKind = "text"
)

// Block is a presentational fragment of an assistant message.
type Block struct {
	Kind     BlockKind `json:"kind"`
	Text     string    `json:"text,omitempty"`
	JSONText string    `json:"jsonText,omitempty"`
	FromLLM  bool      `json:"fromLLM,omitempty"`
}

// HeadingBlock returns a section heading block.
func HeadingBlock(text string) Block {
	return Block{Kind: BlockHeading, Text: text}
}

// ToolInfoBlock returns an explanatory sentence block.
func ToolInfoBlock(text string) Block {
	return Block{Kind: BlockToolInfo, Text: text}
}

// ToolJSONBlock returns a block carrying a pretty-printed tool payload.
func ToolJSONBlock(jsonText string) Block {
	return Block{Kind: BlockToolJSON, JSONText: jsonText}
}

// TextBlock returns a general text block.
func TextBlock(text string, fromLLM bool) Block {
	return Block{Kind: BlockText, Text: text, FromLLM: fromLLM}
}

// Link is a clickable result link such as a proof download.
type Link struct {
	Rel   string `json:"rel,omitempty"`
	Href  string `json:"href"`
	Label string `json:"label,omitempty"`
}
