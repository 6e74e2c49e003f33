// Package uapi holds the Linux user-space API constants the rest of the
// kernel core is built against: inode type/permission bits, mount flags,
// open flags, seek whences and the clone namespace bitmask. Values match
// the corresponding <linux/...> headers exactly so that guest syscall
// arguments can be compared against them without translation.
package uapi

// ID is a POSIX uid_t/gid_t.
type ID = uint32

// Mode is a combined inode type + permission bitfield (S_IFMT | perm bits).
type Mode = uint32

// Inode type bits (S_IFxxx), packed into the high bits of Mode.
const (
	S_IFMT   Mode = 0170000
	S_IFSOCK Mode = 0140000
	S_IFLNK  Mode = 0120000
	S_IFREG  Mode = 0100000
	S_IFBLK  Mode = 0060000
	S_IFDIR  Mode = 0040000
	S_IFCHR  Mode = 0020000
	S_IFIFO  Mode = 0010000
)

// Permission bits.
const (
	S_ISUID Mode = 0004000
	S_ISGID Mode = 0002000
	S_ISVTX Mode = 0001000

	S_IRWXU Mode = 00700
	S_IRUSR Mode = 00400
	S_IWUSR Mode = 00200
	S_IXUSR Mode = 00100

	S_IRWXG Mode = 00070
	S_IRGRP Mode = 00040
	S_IWGRP Mode = 00020
	S_IXGRP Mode = 00010

	S_IRWXO Mode = 00007
	S_IROTH Mode = 00004
	S_IWOTH Mode = 00002
	S_IXOTH Mode = 00001

	S_IRWXUGO Mode = S_IRWXU | S_IRWXG | S_IRWXO
	S_IALLUGO Mode = S_ISUID | S_ISGID | S_ISVTX | S_IRWXUGO
	S_IRUGO   Mode = S_IRUSR | S_IRGRP | S_IROTH
	S_IWUGO   Mode = S_IWUSR | S_IWGRP | S_IWOTH
	S_IXUGO   Mode = S_IXUSR | S_IXGRP | S_IXOTH
)

// Dirent mirrors struct linux_dirent64 for directory enumeration results.
type Dirent struct {
	Ino    uint64
	Off    int64
	Type   NodeType
	Name   string
}

// Mount flags (MS_*). One half applies per-filesystem, the other half
// per-mount (MS_PERMOUNT_MASK) — see MountPermountMask below.
const (
	MS_RDONLY      uint32 = 1 << 0
	MS_NOSUID      uint32 = 1 << 1
	MS_NODEV       uint32 = 1 << 2
	MS_NOEXEC      uint32 = 1 << 3
	MS_SYNCHRONOUS uint32 = 1 << 4
	MS_REMOUNT     uint32 = 1 << 5
	MS_MANDLOCK    uint32 = 1 << 6
	MS_DIRSYNC     uint32 = 1 << 7
	MS_NOATIME     uint32 = 1 << 10
	MS_NODIRATIME  uint32 = 1 << 11
	MS_RELATIME    uint32 = 1 << 21
	MS_KERNMOUNT   uint32 = 1 << 22
	MS_I_VERSION   uint32 = 1 << 23
	MS_STRICTATIME uint32 = 1 << 24
	MS_LAZYTIME    uint32 = 1 << 25
	MS_SILENT      uint32 = 1 << 15
)

// MountPermountMask is the set of MS_* flags that apply to a single Mount
// rather than to the whole FileSystem.
const MountPermountMask = MS_NODEV | MS_NOEXEC | MS_NOSUID | MS_NOATIME | MS_NODIRATIME | MS_RELATIME

// Open flags (O_*).
const (
	O_ACCMODE   uint32 = 0003
	O_RDONLY    uint32 = 0
	O_WRONLY    uint32 = 1
	O_RDWR      uint32 = 2
	O_CREAT     uint32 = 0100
	O_EXCL      uint32 = 0200
	O_NOCTTY    uint32 = 0400
	O_TRUNC     uint32 = 01000
	O_APPEND    uint32 = 02000
	O_NONBLOCK  uint32 = 04000
	O_DSYNC     uint32 = 010000
	O_DIRECT    uint32 = 040000
	O_DIRECTORY uint32 = 0200000
	O_NOFOLLOW  uint32 = 0400000
	O_NOATIME   uint32 = 01000000
	O_CLOEXEC   uint32 = 02000000
	O_SYNC      uint32 = 04010000
	O_PATH      uint32 = 010000000
)

// Seek whences.
const (
	SEEK_SET int = 0
	SEEK_CUR int = 1
	SEEK_END int = 2
)

// Clone namespace bits, matching <linux/sched.h>.
const (
	CLONE_NEWNS      uint32 = 0x00020000
	CLONE_NEWCGROUP  uint32 = 0x02000000
	CLONE_NEWUTS     uint32 = 0x04000000
	CLONE_NEWIPC     uint32 = 0x08000000
	CLONE_NEWUSER    uint32 = 0x10000000
	CLONE_NEWPID     uint32 = 0x20000000
	CLONE_NEWNET     uint32 = 0x40000000
)

// CAP_DAC_OVERRIDE is the one capability the permission policy checks for.
const CAP_DAC_OVERRIDE = 1

// NodeType classifies a Node by its S_IFMT bits.
type NodeType uint32

const (
	NodeRegular NodeType = NodeType(S_IFREG)
	NodeDir     NodeType = NodeType(S_IFDIR)
	NodeSymlink NodeType = NodeType(S_IFLNK)
	NodeCharDev NodeType = NodeType(S_IFCHR)
	NodeBlkDev  NodeType = NodeType(S_IFBLK)
	NodePipe    NodeType = NodeType(S_IFIFO)
	NodeSocket  NodeType = NodeType(S_IFSOCK)
)

// TypeOf extracts the NodeType encoded in mode.
func TypeOf(mode Mode) NodeType { return NodeType(mode & S_IFMT) }
