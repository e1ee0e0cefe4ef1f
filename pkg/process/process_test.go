package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	infos []Info
	err   error
}

func (f fakeLister) List(ctx context.Context) ([]Info, error) { return f.infos, f.err }

func TestFilterEmptyPreservesOrder(t *testing.T) {
	infos := []Info{{PID: 3, Name: "zsh"}, {PID: 1, Name: "bash"}, {PID: 2, Name: "init"}}
	assert.Equal(t, infos, Filter(infos, ""))
}

func TestFilterByPrefixCaseInsensitiveSortedByLength(t *testing.T) {
	infos := []Info{
		{PID: 1, Name: "chromium-browser"},
		{PID: 2, Name: "Chrome"},
		{PID: 3, Name: "sshd"},
		{PID: 4, Name: "chrome-gpu-helper"},
	}

	got := Filter(infos, "chr")
	require.Len(t, got, 3)
	assert.Equal(t, "Chrome", got[0].Name)
	assert.Equal(t, "chromium-browser", got[1].Name)
	assert.Equal(t, "chrome-gpu-helper", got[2].Name)
}

func TestFilterNoMatches(t *testing.T) {
	infos := []Info{{PID: 1, Name: "bash"}}
	assert.Empty(t, Filter(infos, "zzz"))
}

func TestListAppliesFilter(t *testing.T) {
	lister := fakeLister{infos: []Info{{PID: 1, Name: "foo"}, {PID: 2, Name: "bar"}}}
	got, err := List(context.Background(), lister, "ba")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bar", got[0].Name)
}

func TestListPropagatesListerError(t *testing.T) {
	lister := fakeLister{err: assert.AnError}
	_, err := List(context.Background(), lister, "")
	assert.ErrorIs(t, err, assert.AnError)
}
