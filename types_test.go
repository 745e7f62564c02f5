package x402

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkParse(t *testing.T) {
	namespace, reference, err := Network("eip155:84532").Parse()
	require.NoError(t, err)
	assert.Equal(t, "eip155", namespace)
	assert.Equal(t, "84532", reference)

	for _, n := range []Network{"base-sepolia", "", "a:b:c"} {
		_, _, err := n.Parse()
		assert.Error(t, err, string(n))
	}
}
