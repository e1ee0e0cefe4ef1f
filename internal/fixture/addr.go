package main

import "unsafe"

// addrOf returns the runtime address of v as a plain integer, the way a
// test reading this process's stdout needs it: a value the test can feed
// straight into Scan.SetStartAddress/SetEndAddress.
func addrOf(v *uint32) uintptr {
	return uintptr(unsafe.Pointer(v))
}
