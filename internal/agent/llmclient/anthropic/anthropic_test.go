package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Client.Complete calls the Anthropic SDK's Messages.New directly rather
// than through a seam this package can substitute, so exercising it here
// would require live network access and credentials. The pure request
// shaping below is what's left to unit test without that.

func TestMaxTokensOrDefault(t *testing.T) {
	assert.Equal(t, 4096, maxTokensOrDefault(0))
	assert.Equal(t, 4096, maxTokensOrDefault(-5))
	assert.Equal(t, 2048, maxTokensOrDefault(2048))
}
