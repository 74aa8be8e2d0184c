package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/recodeai/recode/parse"
)

func TestSystemPrompt_CoversBuiltinTools(t *testing.T) {
	prompt := SystemPrompt("/work/proj", nil)

	for name := range parse.DefaultSpecs {
		assert.Contains(t, prompt, "## "+name)
	}
	assert.Contains(t, prompt, "/work/proj")
	assert.Contains(t, prompt, "<read_file>")
	assert.Contains(t, prompt, "formatted using XML-style tags")
}

func TestSystemPrompt_RendersExtraSpecs(t *testing.T) {
	extra := map[string]parse.ToolSpec{
		"fetch_ticket": {
			Name: "fetch_ticket",
			Params: []parse.ParamSpec{
				{Name: "id", Kind: parse.KindString, Required: true},
				{Name: "fields", Kind: parse.KindString},
			},
		},
	}

	prompt := SystemPrompt("/work", extra)

	assert.Contains(t, prompt, "## fetch_ticket")
	assert.Contains(t, prompt, "Tool provided by a connected server.")
	assert.Contains(t, prompt, "- id: (required)")
	assert.Contains(t, prompt, "- fields: (optional)")
	assert.Contains(t, prompt, "<fetch_ticket>")
}

func TestSystemPrompt_EnumParamsListValues(t *testing.T) {
	prompt := SystemPrompt("/work", nil)
	assert.Contains(t, prompt, "One of: "+strings.Join(parse.BrowserActions, ", "))
}
