package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHelpByCategory(t *testing.T) {
	text := buildHelpByCategory()

	assert.Contains(t, text, "**🕯️ Information**")
	assert.Contains(t, text, "`/about` - Discover the origin of this bot")
	assert.Contains(t, text, "`/help` - Get a list of available commands")

	// Commands sort alphabetically inside a category.
	aboutIdx := strings.Index(text, "`/about`")
	helpIdx := strings.Index(text, "`/help`")
	require.GreaterOrEqual(t, aboutIdx, 0)
	require.GreaterOrEqual(t, helpIdx, 0)
	assert.Less(t, aboutIdx, helpIdx)
}
