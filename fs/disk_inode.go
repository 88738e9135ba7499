package fs

import "encoding/binary"

// encodeDiskInode writes ip's on-disk fields into buf at byte offset
// off, in the layout spec.md 6 gives for the filesystem's format.
func encodeDiskInode(f Format, buf []byte, off uint32, ip *Inode) {
	le := binary.LittleEndian
	p := buf[off:]
	if f == XV6FS {
		le.PutUint16(p[0:2], uint16(ip.Type))
		le.PutUint16(p[2:4], uint16(ip.Major))
		le.PutUint16(p[4:6], uint16(ip.Minor))
		le.PutUint16(p[6:8], uint16(ip.Nlink))
		le.PutUint32(p[8:12], ip.Size)
		for i := 0; i < xv6fsNDirect+1; i++ {
			a := uint32(0)
			if i < len(ip.Addrs) {
				a = ip.Addrs[i]
			}
			le.PutUint32(p[12+4*i:16+4*i], a)
		}
		return
	}
	le.PutUint16(p[0:2], uint16(ip.Type))
	le.PutUint16(p[2:4], ip.UID)
	le.PutUint16(p[4:6], ip.GID)
	le.PutUint16(p[6:8], ip.Mode)
	le.PutUint16(p[8:10], uint16(ip.Nlink))
	le.PutUint32(p[10:14], ip.Size)
	le.PutUint32(p[14:18], ip.Ctime)
	le.PutUint32(p[18:22], ip.Mtime)
	base := 22
	for i := 0; i < vimixfsNDirect+2; i++ {
		a := uint32(0)
		if i < len(ip.Addrs) {
			a = ip.Addrs[i]
		}
		le.PutUint32(p[base+4*i:base+4+4*i], a)
	}
}

// decodeDiskInode is the inverse of encodeDiskInode.
func decodeDiskInode(f Format, buf []byte, off uint32, ip *Inode) {
	le := binary.LittleEndian
	p := buf[off:]
	if ip.Addrs == nil {
		ip.Addrs = newAddrs(f)
	}
	if f == XV6FS {
		ip.Type = int16(le.Uint16(p[0:2]))
		ip.Major = int16(le.Uint16(p[2:4]))
		ip.Minor = int16(le.Uint16(p[4:6]))
		ip.Nlink = int16(le.Uint16(p[6:8]))
		ip.Size = le.Uint32(p[8:12])
		for i := 0; i < xv6fsNDirect+1; i++ {
			ip.Addrs[i] = le.Uint32(p[12+4*i : 16+4*i])
		}
		return
	}
	ip.Type = int16(le.Uint16(p[0:2]))
	ip.UID = le.Uint16(p[2:4])
	ip.GID = le.Uint16(p[4:6])
	ip.Mode = le.Uint16(p[6:8])
	ip.Nlink = int16(le.Uint16(p[8:10]))
	ip.Size = le.Uint32(p[10:14])
	ip.Ctime = le.Uint32(p[14:18])
	ip.Mtime = le.Uint32(p[18:22])
	base := 22
	for i := 0; i < vimixfsNDirect+2; i++ {
		ip.Addrs[i] = le.Uint32(p[base+4*i : base+4+4*i])
	}
}
