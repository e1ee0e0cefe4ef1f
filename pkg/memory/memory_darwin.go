//go:build darwin

package memory

/*
#include <mach/mach.h>
#include <mach/mach_vm.h>
#include <mach/vm_region.h>
#include <mach/vm_map.h>
#include <stdlib.h>

// task_for_pid_wrap avoids exposing mach_port_name_t plumbing to cgo call
// sites; it returns the kernel return code and writes the task port out.
static kern_return_t task_for_pid_wrap(int pid, mach_port_name_t *task) {
	return task_for_pid(mach_task_self(), pid, task);
}

// region_info is the subset of vm_region_basic_info_data_64_t this package
// consults: the address/size walked out-params plus the protection bits.
typedef struct {
	mach_vm_address_t address;
	mach_vm_size_t size;
	vm_prot_t protection;
} region_info;

static kern_return_t region_wrap(mach_port_name_t task, mach_vm_address_t *address, region_info *out) {
	vm_region_basic_info_data_64_t info;
	mach_msg_type_number_t info_count = VM_REGION_BASIC_INFO_COUNT_64;
	mach_port_t object_name = MACH_PORT_NULL;
	mach_vm_size_t size = 0;

	kern_return_t kr = mach_vm_region(task, address, &size, VM_REGION_BASIC_INFO_64,
		(vm_region_info_t)&info, &info_count, &object_name);
	if (kr != KERN_SUCCESS) {
		return kr;
	}

	out->address = *address;
	out->size = size;
	out->protection = info.protection;
	return KERN_SUCCESS;
}

static kern_return_t read_wrap(mach_port_name_t task, mach_vm_address_t addr, mach_vm_size_t size, void *buf, mach_vm_size_t *out_size) {
	return mach_vm_read_overwrite(task, addr, size, (mach_vm_address_t)buf, out_size);
}

static kern_return_t write_wrap(mach_port_name_t task, mach_vm_address_t addr, void *buf, mach_msg_type_number_t size) {
	return mach_vm_write(task, addr, (vm_offset_t)buf, size);
}
*/
import "C"

import (
	"unsafe"
)

const (
	vmProtRead  = 1
	vmProtWrite = 2
)

// taskForPID obtains a Mach task port for pid; this requires root or the
// debugger entitlement in practice. Used by enumeration, where an
// unattachable target is reported as NoPermission.
func taskForPID(pid int) (C.mach_port_name_t, error) {
	var task C.mach_port_name_t
	kr := C.task_for_pid_wrap(C.int(pid), &task)
	if kr != C.KERN_SUCCESS {
		return 0, newError(NoPermission, int(kr))
	}
	return task, nil
}

// taskForPIDIO obtains a Mach task port for the read/write path. Failure to
// acquire the port here means the scan can no longer touch the process at
// all, so it is reported as ProcessAttach rather than NoPermission: a scan
// in progress treats this as fatal instead of skipping the block.
func taskForPIDIO(pid int) (C.mach_port_name_t, error) {
	var task C.mach_port_name_t
	kr := C.task_for_pid_wrap(C.int(pid), &task)
	if kr != C.KERN_SUCCESS {
		return 0, newError(ProcessAttach, int(kr))
	}
	return task, nil
}

// enumerateRegions walks the target's address space with mach_vm_region,
// starting at start (default 1, since address 0 is not a valid region
// start) and stopping at end (default u64::MAX) or KERN_INVALID_ADDRESS.
func enumerateRegions(pid int, start, end *uint64, perms Perm) ([]Region, error) {
	task, err := taskForPID(pid)
	if err != nil {
		return nil, err
	}

	address := uint64(1)
	if start != nil {
		address = *start
	}
	endAddr := uint64(^uint64(0))
	if end != nil {
		endAddr = *end
	}

	var regions []Region
	for {
		if address > endAddr {
			break
		}

		cAddr := C.mach_vm_address_t(address)
		var info C.region_info
		kr := C.region_wrap(task, &cAddr, &info)
		if kr == C.KERN_INVALID_ADDRESS {
			break
		}
		if kr != C.KERN_SUCCESS {
			return nil, newError(MemRead, int(kr))
		}

		var regionPerms Perm
		if info.protection&vmProtRead != 0 {
			regionPerms |= Read
		}
		if info.protection&vmProtWrite != 0 {
			regionPerms |= Write
		}

		regionStart := uint64(info.address)
		regionEnd := regionStart + uint64(info.size)
		if regionStart > endAddr {
			break
		}

		// mach_vm_region snaps the probe address up to the next region at
		// or above it, and a region starting past end ends the walk, so
		// every region reaching here overlaps [start, end]; only the
		// permission filter remains to apply.
		if regionPerms.Intersects(perms) {
			regions = append(regions, Region{Start: regionStart, End: regionEnd, Perms: regionPerms})
		}

		address = regionEnd
	}

	return regions, nil
}

func readMemory(pid int, addr uint64, n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}

	task, err := taskForPIDIO(pid)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, n)
	var outSize C.mach_vm_size_t
	kr := C.read_wrap(task, C.mach_vm_address_t(addr), C.mach_vm_size_t(n), unsafe.Pointer(&buf[0]), &outSize)
	if kr != C.KERN_SUCCESS {
		return nil, newError(MemRead, int(kr))
	}
	if int(outSize) != n {
		return nil, newError(MemRead, 0)
	}
	return buf, nil
}

func writeMemory(pid int, addr uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	task, err := taskForPIDIO(pid)
	if err != nil {
		return err
	}

	kr := C.write_wrap(task, C.mach_vm_address_t(addr), unsafe.Pointer(&data[0]), C.mach_msg_type_number_t(len(data)))
	if kr != C.KERN_SUCCESS {
		return newError(MemWrite, int(kr))
	}
	return nil
}
