// Package cpio iterates Linux "newc" and "newc+CRC" CPIO archives,
// following the record layout and stop conditions of the host service's
// CpioArchive.cpp: magic-delimited ASCII-hex fixed headers, a
// NUL-terminated path, 4-byte-aligned padding around both header and
// data, and a TRAILER!!! sentinel marking end of archive.
package cpio

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/djp952/vm-linux-sub000/streamreader"
	"github.com/djp952/vm-linux-sub000/uapi"
	"github.com/djp952/vm-linux-sub000/vfs"
	"github.com/djp952/vm-linux-sub000/vmerrno"
)

const (
	magicNewc    = "070701"
	magicNewcCRC = "070702"
	trailer      = "TRAILER!!!"

	headerFieldCount = 13
	headerFieldWidth = 8
	// magic(6) + 13 fields * 8
	headerLen = 6 + headerFieldCount*headerFieldWidth
)

// File is one decoded CPIO record.
type File struct {
	Inode      uint32
	Mode       uapi.Mode
	UID        uapi.ID
	GID        uapi.ID
	NLink      uint32
	MTime      uint32
	DataLength uint32
	DevMajor   uint32
	DevMinor   uint32
	RDevMajor  uint32
	RDevMinor  uint32
	CRC        uint32
	Path       string

	// Data is a bounded sub-reader over this entry's payload, valid only
	// until the next call to Next.
	Data io.Reader
}

// Visitor is called once per archive entry; EnumerateFiles stops early
// if it returns an error.
type Visitor func(File) error

// Reader iterates the entries of a newc/newc+CRC archive read from src.
type Reader struct {
	src     streamreader.Reader
	pos     int64
	pending *boundedReader
}

// NewReader wraps a Stream Reader for CPIO iteration.
func NewReader(src streamreader.Reader) *Reader {
	return &Reader{src: src}
}

// boundedReader drains up to n bytes from a streamreader.Reader.
type boundedReader struct {
	r              streamreader.Reader
	remaining      int64
	originalLength int64
}

func (b *boundedReader) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.r.Read(p)
	b.remaining -= int64(n)
	return n, err
}

// drainPending consumes whatever is left unread of the previous entry's
// data sub-stream plus the 4-byte alignment pad that follows it, the way
// the original iterator realigned the base stream before parsing the
// next header regardless of how much of the callback's sub-stream was
// actually consumed.
func (r *Reader) drainPending() error {
	if r.pending == nil {
		return nil
	}
	pending := r.pending
	r.pending = nil

	if pending.remaining > 0 {
		if err := r.src.SeekForward(pending.remaining); err != nil {
			return err
		}
	}
	if pad := alignTo4(pending.originalLength) - pending.originalLength; pad > 0 {
		if err := r.src.SeekForward(pad); err != nil {
			return err
		}
	}
	return nil
}

func readFull(r streamreader.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		m, err := r.Read(buf[got:])
		got += m
		if err != nil {
			if got < n {
				return buf[:got], io.ErrUnexpectedEOF
			}
			break
		}
		if m == 0 {
			break
		}
	}
	if got < n {
		return buf[:got], io.ErrUnexpectedEOF
	}
	return buf, nil
}

func parseHex(field string) (uint32, error) {
	v, err := strconv.ParseUint(field, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("cpio: malformed hex field %q: %w", field, err)
	}
	return uint32(v), nil
}

func alignTo4(n int64) int64 {
	if n%4 == 0 {
		return n
	}
	return n + (4 - n%4)
}

// Next decodes and returns the next archive entry. It returns io.EOF
// once the TRAILER!!! record has been consumed, or when the magic does
// not match / a short read occurs on the header (iteration stops
// silently in both cases, matching the original EnumerateFiles).
func (r *Reader) Next() (File, error) {
	if err := r.drainPending(); err != nil {
		return File{}, err
	}

	raw, err := readFull(r.src, headerLen)
	if err != nil {
		return File{}, io.EOF
	}
	r.pos += int64(len(raw))

	magic := string(raw[:6])
	hasCRC := magic == magicNewcCRC
	if magic != magicNewc && !hasCRC {
		return File{}, io.EOF
	}

	fields := make([]uint32, headerFieldCount)
	for i := 0; i < headerFieldCount; i++ {
		start := 6 + i*headerFieldWidth
		v, err := parseHex(string(raw[start : start+headerFieldWidth]))
		if err != nil {
			return File{}, vmerrno.Wrap(vmerrno.E_IO, err)
		}
		fields[i] = v
	}

	inode, mode, uid, gid, nlink, mtime, filesize := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6]
	devMajor, devMinor, rdevMajor, rdevMinor, nameSize, crc := fields[7], fields[8], fields[9], fields[10], fields[11], fields[12]

	nameBuf, err := readFull(r.src, int(nameSize))
	if err != nil {
		return File{}, io.EOF
	}
	r.pos += int64(len(nameBuf))
	path := strings.TrimRight(string(nameBuf), "\x00")

	headerBytes := int64(headerLen) + int64(nameSize)
	if pad := alignTo4(headerBytes) - headerBytes; pad > 0 {
		if err := r.src.SeekForward(pad); err != nil {
			return File{}, err
		}
		r.pos += pad
	}

	if path == trailer {
		return File{}, io.EOF
	}

	entry := File{
		Inode:      inode,
		Mode:       mode,
		UID:        uid,
		GID:        gid,
		NLink:      nlink,
		MTime:      mtime,
		DataLength: filesize,
		DevMajor:   devMajor,
		DevMinor:   devMinor,
		RDevMajor:  rdevMajor,
		RDevMinor:  rdevMinor,
		Path:       path,
	}
	if hasCRC {
		entry.CRC = crc
	}

	br := &boundedReader{r: r.src, remaining: int64(filesize), originalLength: int64(filesize)}
	entry.Data = br
	r.pending = br
	return entry, nil
}

// EnumerateFiles drives visit across every entry in the archive. After
// each callback returns, the unread remainder of its data sub-stream and
// the trailing 4-byte pad are consumed before the next header is parsed
// (or, for the final entry, once iteration ends) — the caller never has
// to manage sub-stream bookkeeping itself.
func EnumerateFiles(src streamreader.Reader, visit Visitor) error {
	r := NewReader(src)
	for {
		entry, err := r.Next()
		if err == io.EOF {
			return r.drainPending()
		}
		if err != nil {
			return err
		}
		if err := visit(entry); err != nil {
			return err
		}
	}
}

// Extract drives EnumerateFiles into dest, creating a directory, regular
// file or symlink for each archive entry according to its mode bits.
// Intermediate path components are created as needed. Paths are
// resolved from root within the Mount dest. This is deliberately
// filesystem-agnostic: root may be RootFS's single node, a HostFS
// subtree, or any future driver's Directory, the same way the
// original EnumerateFiles was driven by a callback rather than a
// hardcoded destination.
func Extract(src streamreader.Reader, dest vfs.Mount, root vfs.Directory, uid, gid uapi.ID) error {
	return EnumerateFiles(src, func(f File) error {
		dir, name, err := resolveParent(dest, root, f.Path)
		if err != nil {
			return err
		}

		switch uapi.TypeOf(f.Mode) {
		case uapi.NodeDir:
			_, err = dir.CreateDirectory(dest, name, f.Mode&uapi.S_IALLUGO, uid, gid)
			if err != nil {
				return err
			}
		case uapi.NodeSymlink:
			target, rerr := io.ReadAll(f.Data)
			if rerr != nil {
				return rerr
			}
			_, err = dir.CreateSymlink(dest, name, string(target), uid, gid)
			if err != nil {
				return err
			}
		default:
			node, cerr := dir.CreateFile(dest, name, f.Mode&uapi.S_IALLUGO, uid, gid)
			if cerr != nil {
				return cerr
			}
			file, ok := node.(vfs.File)
			if !ok {
				return vmerrno.E_IO
			}
			buf := make([]byte, 32*1024)
			var off int64
			for {
				n, rerr := f.Data.Read(buf)
				if n > 0 {
					if _, werr := file.WriteAt(dest, off, 0, buf[:n]); werr != nil {
						return werr
					}
					off += int64(n)
				}
				if rerr == io.EOF {
					break
				}
				if rerr != nil {
					return rerr
				}
			}
		}
		return nil
	})
}

// resolveParent walks all but the last path component of p, creating
// intermediate directories that don't yet exist.
func resolveParent(mount vfs.Mount, root vfs.Directory, p string) (vfs.Directory, string, error) {
	p = strings.Trim(p, "/")
	parts := strings.Split(p, "/")
	dir := root
	for _, part := range parts[:len(parts)-1] {
		node, err := dir.Lookup(mount, part)
		if err != nil {
			created, cerr := dir.CreateDirectory(mount, part, uapi.S_IRWXUGO, 0, 0)
			if cerr != nil {
				return nil, "", cerr
			}
			node = created
		}
		sub, ok := node.(vfs.Directory)
		if !ok {
			return nil, "", vmerrno.E_NOTDIR
		}
		dir = sub
	}
	return dir, parts[len(parts)-1], nil
}
