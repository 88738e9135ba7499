package defs

// Syscall numbers. Stable across the ABI; argument registers a0-a5,
// syscall number in a7, return value in a0 (see vm.Trapframe).
const (
	SYS_FORK      = 1
	SYS_EXIT      = 2
	SYS_WAIT      = 3
	SYS_PIPE      = 4
	SYS_READ      = 5
	SYS_KILL      = 6
	SYS_EXECV     = 7
	SYS_FSTAT     = 8
	SYS_CHDIR     = 9
	SYS_DUP       = 10
	SYS_GETPID    = 11
	SYS_SBRK      = 12
	SYS_SLEEP     = 13
	SYS_UPTIME    = 14
	SYS_OPEN      = 15
	SYS_WRITE     = 16
	SYS_MKNOD     = 17
	SYS_UNLINK    = 18
	SYS_LINK      = 19
	SYS_MKDIR     = 20
	SYS_CLOSE     = 21
	SYS_GETDIRENT = 22
	SYS_REBOOT    = 23
	SYS_GETTIME   = 24
	SYS_LSEEK     = 25
	SYS_RMDIR     = 26
	SYS_MOUNT     = 27
	SYS_UMOUNT    = 28
	SYS_IOCTL     = 29
)

// File open flags (bitmask).
const (
	O_RDONLY = 0x000
	O_WRONLY = 0x001
	O_RDWR   = 0x002
	O_CREAT  = 0x200
	O_TRUNC  = 0x400
	O_APPEND = 0x800
)

// Seek whence values.
const (
	SEEK_SET = 0
	SEEK_CUR = 1
	SEEK_END = 2
)
