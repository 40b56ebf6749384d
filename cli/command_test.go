package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xiaot623/integritas/internal/domain"
)

func TestParseCommand(t *testing.T) {
	cmd := parseCommand("hello there")
	assert.Equal(t, "", cmd.name)
	assert.Equal(t, "hello there", cmd.text)

	cmd = parseCommand("/stamp ./contract.pdf signed copy v2")
	assert.Equal(t, "stamp", cmd.name)
	assert.Equal(t, "./contract.pdf", cmd.arg)
	assert.Equal(t, "signed copy v2", cmd.note)

	cmd = parseCommand("/Verify   ABCDEF")
	assert.Equal(t, "verify", cmd.name)
	assert.Equal(t, "ABCDEF", cmd.arg)
	assert.Equal(t, "", cmd.note)

	cmd = parseCommand("/ask")
	assert.Equal(t, "ask", cmd.name)
	assert.Equal(t, "", cmd.rest)
}

func TestRender(t *testing.T) {
	m := domain.Message{
		Role: domain.RoleAssistant,
		Text: "Stamped.",
		Blocks: []domain.Block{
			domain.HeadingBlock("Tool"),
			domain.ToolInfoBlock("I used a tool called Stamp Data via the Integritas API."),
			domain.ToolJSONBlock("{\n  \"ok\": true\n}"),
			domain.TextBlock("Stamped.", true),
		},
		Links: []domain.Link{{Href: "https://x/p/1", Label: "Download proof"}},
	}
	assert.Equal(t, "## Tool\n"+
		"I used a tool called Stamp Data via the Integritas API.\n"+
		"    {\n      \"ok\": true\n    }\n"+
		"Stamped.\n"+
		"-> Download proof: https://x/p/1", render(m))

	assert.Equal(t, "! Bad gateway (HTTP 502).", render(domain.Message{Text: "Bad gateway (HTTP 502).", IsError: true}))
	assert.Equal(t, "hi", render(domain.Message{Text: "hi"}))
}
