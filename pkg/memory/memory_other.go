//go:build !linux && !darwin

package memory

// This module's process-attach and region-enumeration primitives are only
// defined for Linux (/proc + process_vm_readv/writev) and Darwin
// (task_for_pid + mach_vm_region/read/write). Every other GOOS reports
// NoPermission from enumeration and ProcessAttach from read/write
// immediately rather than silently no-opping.

func enumerateRegions(pid int, start, end *uint64, perms Perm) ([]Region, error) {
	return nil, newError(NoPermission, -1)
}

func readMemory(pid int, addr uint64, n int) ([]byte, error) {
	return nil, newError(ProcessAttach, -1)
}

func writeMemory(pid int, addr uint64, data []byte) error {
	return newError(ProcessAttach, -1)
}
