package uinput

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Request numbers from include/uapi/linux/uinput.h.
const (
	ioctlBase = 'U' // UINPUT_IOCTL_BASE

	nrDevCreate  = 1   // UI_DEV_CREATE
	nrDevDestroy = 2   // UI_DEV_DESTROY
	nrDevSetup   = 3   // UI_DEV_SETUP
	nrAbsSetup   = 4   // UI_ABS_SETUP
	nrSetEvBit   = 100 // UI_SET_EVBIT
	nrSetKeyBit  = 101 // UI_SET_KEYBIT
	nrSetAbsBit  = 103 // UI_SET_ABSBIT

	maxNameLen = 80 // UINPUT_MAX_NAME_SIZE
)

// Field layout of the _IOC encoding in include/asm-generic/ioctl.h.
// The size field is 14 bits on x86 and ARM, which are the only hosts we ship for.
const (
	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocNone  = 0
	iocWrite = 1
)

func ioc(dir, typ, nr uint, size uintptr) uint {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNrShift | uint(size)<<iocSizeShift
}

// ioReq is the _IO macro.
func ioReq(nr uint) uint { return ioc(iocNone, ioctlBase, nr, 0) }

// iow is the _IOW macro.
func iow(nr uint, size uintptr) uint { return ioc(iocWrite, ioctlBase, nr, size) }

// setBitReq encodes one of the UI_SET_*BIT requests, which all take an int.
func setBitReq(nr uint) uint {
	var i int32
	return iow(nr, unsafe.Sizeof(i))
}

func ioctl(fd int, req uint, arg uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), arg); errno != 0 {
		return errno
	}
	return nil
}
