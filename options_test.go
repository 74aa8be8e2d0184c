package recode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		o := ApplyOptions()
		assert.Empty(t, o.Model)
		assert.Zero(t, o.MaxTokens)
		assert.Nil(t, o.Temperature)
		assert.Empty(t, o.StopSequences)
	})

	t.Run("all options", func(t *testing.T) {
		o := ApplyOptions(
			WithModel("claude-sonnet-4-20250514"),
			WithMaxTokens(4096),
			WithTemperature(0.7),
			WithStopSequences("</attempt_completion>"),
		)
		assert.Equal(t, "claude-sonnet-4-20250514", o.Model)
		assert.Equal(t, 4096, o.MaxTokens)
		assert.NotNil(t, o.Temperature)
		assert.Equal(t, 0.7, *o.Temperature)
		assert.Equal(t, []string{"</attempt_completion>"}, o.StopSequences)
	})

	t.Run("zero temperature is explicit", func(t *testing.T) {
		o := ApplyOptions(WithTemperature(0))
		assert.NotNil(t, o.Temperature)
		assert.Equal(t, 0.0, *o.Temperature)
	})
}
