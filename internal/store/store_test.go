package store

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newID()
		assert.Len(t, id, 24)
		_, err := hex.DecodeString(id)
		require.NoError(t, err)
		assert.False(t, seen[id], "ids must not repeat")
		seen[id] = true
	}
}
