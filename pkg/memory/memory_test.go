package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermHasAndIntersects(t *testing.T) {
	type scenario struct {
		name   string
		perms  Perm
		other  Perm
		has    bool
		shared bool
	}

	scenarios := []scenario{
		{"read-only has read", Read, Read, true, true},
		{"read-only lacks write", Read, Write, false, false},
		{"read-write has both", Read | Write, Read | Write, true, true},
		{"read-write intersects write-only filter", Read | Write, Write, true, true},
	}

	for _, s := range scenarios {
		t.Run(s.name, func(t *testing.T) {
			assert.Equal(t, s.has, s.perms.Has(s.other))
			assert.Equal(t, s.shared, s.perms.Intersects(s.other))
		})
	}
}

func TestPermString(t *testing.T) {
	assert.Equal(t, "r", Read.String())
	assert.Equal(t, "w", Write.String())
	assert.Equal(t, "rw", (Read | Write).String())
	assert.Equal(t, "-", Perm(0).String())
}

func TestErrorMessage(t *testing.T) {
	err := newError(ProcessAttach, 13)
	assert.Contains(t, err.Error(), "could not attach to process")
	assert.Contains(t, err.Error(), "13")
}
