//go:build linux

package scan_test

import (
	"bufio"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/var77/memscan/pkg/memory"
	"github.com/var77/memscan/pkg/scan"
	"github.com/var77/memscan/pkg/testutil"
	"github.com/var77/memscan/pkg/valuetype"
)

// These exercise the engine against a real child process over
// process_vm_readv/writev. They require the fixture binary to be built
// (go build -o fixture-target ./internal/fixture) and either running as
// root or a permissive ptrace_scope, so they're skipped unless
// MEMSCAN_INTEGRATION_BIN points at the built binary.
func requireFixtureBinary(t *testing.T) string {
	t.Helper()
	bin := os.Getenv("MEMSCAN_INTEGRATION_BIN")
	if bin == "" {
		t.Skip("set MEMSCAN_INTEGRATION_BIN to the built internal/fixture binary to run this test")
	}
	return bin
}

func startFixture(t *testing.T) (*exec.Cmd, *bufio.Scanner, *testutil.ChildGuard) {
	t.Helper()
	bin := requireFixtureBinary(t)

	cmd := exec.Command(bin)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	guard := testutil.NewChildGuard(cmd)
	t.Cleanup(guard.Close)

	return cmd, bufio.NewScanner(stdout), guard
}

func readHexAddr(t *testing.T, scanner *bufio.Scanner) uint64 {
	t.Helper()
	require.True(t, scanner.Scan())
	line := strings.TrimSpace(scanner.Text())
	v, err := strconv.ParseUint(strings.TrimPrefix(line, "0x"), 16, 64)
	require.NoError(t, err)
	return v
}

func TestScanAgainstRealChildProcess(t *testing.T) {
	cmd, stdout, _ := startFixture(t)
	addr := readHexAddr(t, stdout)
	_ = readHexAddr(t, stdout) // readonly variable's address, unused here

	s, err := scan.New(cmd.Process.Pid, mustEncode(t, valuetype.U32, "31337"), valuetype.U32, nil, nil, memory.Write)
	require.NoError(t, err)

	results, err := s.Init()
	require.NoError(t, err)
	require.NotEmpty(t, results)

	found := false
	for _, r := range results {
		if r.Address == addr {
			found = true
		}
	}
	require.True(t, found, "expected to find the known variable's address among the results")
}

func mustEncode(t *testing.T, vt valuetype.Type, s string) []byte {
	t.Helper()
	b, err := vt.Parse(s)
	require.NoError(t, err)
	return b
}
