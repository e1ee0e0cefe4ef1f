//go:build linux

package memory

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestEnumerateRegionsSelf exercises the real /proc/<pid>/maps parser
// against the test binary's own process, which is always readable without
// elevated privileges.
func TestEnumerateRegionsSelf(t *testing.T) {
	regions, err := enumerateRegions(os.Getpid(), nil, nil, Read|Write)
	assert.NoError(t, err)
	assert.NotEmpty(t, regions)

	for i := 1; i < len(regions); i++ {
		assert.LessOrEqual(t, regions[i-1].End, regions[i].Start, "regions must be ascending and non-overlapping")
	}
	for _, r := range regions {
		assert.Less(t, r.Start, r.End)
	}
}

func TestEnumerateRegionsNoSuchProcess(t *testing.T) {
	_, err := enumerateRegions(1<<30, nil, nil, Read|Write)
	assert.Error(t, err)
	var memErr *Error
	assert.ErrorAs(t, err, &memErr)
	assert.Equal(t, ProcessAttach, memErr.Kind)
}

func TestEnumerateRegionsEmptyRangeBounds(t *testing.T) {
	hi := uint64(1) << 63
	regions, err := enumerateRegions(os.Getpid(), &hi, nil, Read|Write)
	assert.NoError(t, err)
	assert.Empty(t, regions)

	zero := uint64(0)
	regions, err = enumerateRegions(os.Getpid(), nil, &zero, Read|Write)
	assert.NoError(t, err)
	assert.Empty(t, regions)
}
