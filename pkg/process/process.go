// Package process lists running processes for the CLI's --list flag. It
// is an external collaborator of the scan engine: the engine only ever
// consumes the pid this package returns, never anything else about a
// process.
package process

import (
	"context"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// Info is one (pid, name) record.
type Info struct {
	PID  int32
	Name string
}

// Lister enumerates running processes. The real implementation is backed
// by gopsutil; tests substitute a fake.
type Lister interface {
	List(ctx context.Context) ([]Info, error)
}

// GopsutilLister is the real, OS-backed Lister.
type GopsutilLister struct{}

// List returns every running process gopsutil can see. Processes whose
// name cannot be read (already exited, permission denied) are skipped
// rather than failing the whole listing.
func (GopsutilLister) List(ctx context.Context) ([]Info, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		infos = append(infos, Info{PID: p.Pid, Name: name})
	}
	return infos, nil
}

// Filter applies the name-prefix filter rule: when filter, trimmed, is
// non-empty, only entries whose lower-cased name starts with the trimmed,
// lower-cased filter survive, and the result is sorted by ascending name
// length (closer prefix matches first). An empty or whitespace-only filter
// preserves native enumeration order.
func Filter(infos []Info, filter string) []Info {
	needle := strings.ToLower(strings.TrimSpace(filter))
	if needle == "" {
		return infos
	}

	matched := make([]Info, 0, len(infos))
	for _, info := range infos {
		if strings.HasPrefix(strings.ToLower(info.Name), needle) {
			matched = append(matched, info)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return len(matched[i].Name) < len(matched[j].Name)
	})
	return matched
}

// List lists processes via lister and applies Filter.
func List(ctx context.Context, lister Lister, filter string) ([]Info, error) {
	infos, err := lister.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(infos, filter), nil
}
