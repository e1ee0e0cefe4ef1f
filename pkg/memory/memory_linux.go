//go:build linux

package memory

import (
	"bufio"
	"errors"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// enumerateRegions parses /proc/<pid>/maps. Each line begins
// "HEXSTART-HEXEND PERMS ...": only the first three permission characters
// (r, w, x) are consulted. An unreadable maps file is ProcessAttach (no
// process with that pid, or permission withdrawn at attach time); a line
// that fails to parse ends the enumeration with MemRead(0).
func enumerateRegions(pid int, start, end *uint64, perms Perm) ([]Region, error) {
	f, err := os.Open("/proc/" + strconv.Itoa(pid) + "/maps")
	if err != nil {
		return nil, newError(ProcessAttach, errnoOf(err))
	}
	defer f.Close()

	startAddr := uint64(0)
	if start != nil {
		startAddr = *start
	}
	endAddr := uint64(^uint64(0))
	if end != nil {
		endAddr = *end
	}

	var regions []Region
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, newError(MemRead, 0)
		}

		rangePart := fields[0]
		dash := strings.IndexByte(rangePart, '-')
		if dash < 0 {
			return nil, newError(MemRead, 0)
		}
		regionStart, err := strconv.ParseUint(rangePart[:dash], 16, 64)
		if err != nil {
			return nil, newError(MemRead, 0)
		}
		regionEnd, err := strconv.ParseUint(rangePart[dash+1:], 16, 64)
		if err != nil {
			return nil, newError(MemRead, 0)
		}

		if regionEnd < startAddr || regionStart > endAddr {
			continue
		}

		rawPerms := fields[1]
		if len(rawPerms) < 3 {
			return nil, newError(MemRead, 0)
		}
		rawPerms = rawPerms[:3]

		var regionPerms Perm
		if strings.ContainsRune(rawPerms, 'r') {
			regionPerms |= Read
		}
		if strings.ContainsRune(rawPerms, 'w') {
			regionPerms |= Write
		}

		if !regionPerms.Intersects(perms) {
			continue
		}

		regions = append(regions, Region{Start: regionStart, End: regionEnd, Perms: regionPerms})
	}
	if err := scanner.Err(); err != nil {
		return nil, newError(MemRead, errnoOf(err))
	}

	return regions, nil
}

func readMemory(pid int, addr uint64, n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, n)
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(n)

	remote := []unix.Iovec{remoteIovec(addr, n)}

	got, err := unix.ProcessVMReadv(pid, local, remote, 0)
	if err != nil {
		return nil, normalizeLinuxIOError(err, MemRead)
	}
	if got != n {
		return nil, newError(MemRead, 0)
	}
	return buf, nil
}

func writeMemory(pid int, addr uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	local := []unix.Iovec{{Base: &data[0]}}
	local[0].SetLen(len(data))

	remote := []unix.Iovec{remoteIovec(addr, len(data))}

	got, err := unix.ProcessVMWritev(pid, local, remote, 0)
	if err != nil {
		return normalizeLinuxIOError(err, MemWrite)
	}
	if got != len(data) {
		return newError(MemWrite, 0)
	}
	return nil
}

// remoteIovec builds an Iovec pointing at an address in the TARGET
// process's address space. The kernel copies this pointer value into the
// remote iovec it walks; it is never dereferenced locally, so constructing
// it from a bare uintptr is safe despite looking unusual.
func remoteIovec(addr uint64, n int) unix.Iovec {
	var iov unix.Iovec
	iov.Base = (*byte)(unsafe.Pointer(uintptr(addr)))
	iov.SetLen(n)
	return iov
}

// normalizeLinuxIOError upgrades EPERM to ProcessAttach: on Linux, attach
// can succeed while every actual read/write still fails with EPERM, which
// behaves like a failed attach from the caller's point of view.
func normalizeLinuxIOError(err error, fallback ErrorKind) error {
	errno := errnoOf(err)
	if errno == int(unix.EPERM) {
		return newError(ProcessAttach, errno)
	}
	if errno == int(unix.ESRCH) {
		return newError(ProcessAttach, errno)
	}
	return newError(fallback, errno)
}

func errnoOf(err error) int {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return errnoOf(perr.Err)
	}
	return -1
}
