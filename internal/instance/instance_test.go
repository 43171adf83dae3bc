// File: internal/instance/instance_test.go
package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_NumericPrefix(t *testing.T) {
	testCases := []struct {
		name       string
		identifier string
		expected   string
	}{
		{"dot separator", "01. Research Notes", "nb_01"},
		{"space separator", "7 quick ideas", "nb_7"},
		{"multi digit", "2024. Archive", "nb_2024"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Resolve(tc.identifier))
		})
	}
}

func TestResolve_HashFallback(t *testing.T) {
	// Non-numeric identifiers map to the first 8 hex digits of their MD5.
	assert.Equal(t, "nb_8d6230b7", Resolve("My Research Notes"))
	assert.Equal(t, "nb_2c1743a3", Resolve("alpha"))

	// No separator after the digits means no numeric prefix.
	assert.NotEqual(t, "nb_42", Resolve("42answers"))
	assert.Len(t, Resolve("42answers"), len("nb_")+8)
}

func TestResolve_Deterministic(t *testing.T) {
	first := Resolve("Shared Project Notebook")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Resolve("Shared Project Notebook"))
	}
}

func TestResolve_DistinctNotebooksGetDistinctKeys(t *testing.T) {
	assert.NotEqual(t, Resolve("alpha"), Resolve("beta"))
}
