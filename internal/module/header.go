// Package module reads the PE headers of a module file before it is handed to the loader.
package module

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ImageDOSHeader is the MS-DOS stub header
type ImageDOSHeader struct {
	Magic    uint16
	Cblp     uint16
	Cp       uint16
	Crlc     uint16
	Cparhdr  uint16
	MinAlloc uint16
	MaxAlloc uint16
	SS       uint16
	SP       uint16
	CSum     uint16
	IP       uint16
	CS       uint16
	LfaRlc   uint16
	Ovno     uint16
	Res      [4]uint16
	OEMID    uint16
	OEMInfo  uint16
	Res2     [10]uint16
	LfaNew   int32 // file offset of the NT headers
}

// ImageFileHeader is the COFF file header
type ImageFileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

const (
	IMAGE_DOS_SIGNATURE = 0x5A4D // MZ
	IMAGE_NT_SIGNATURE  = 0x00004550

	IMAGE_FILE_DLL = 0x2000

	IMAGE_NT_OPTIONAL_HDR32_MAGIC = 0x10b
	IMAGE_NT_OPTIONAL_HDR64_MAGIC = 0x20b

	IMAGE_FILE_MACHINE_I386  = 0x014c
	IMAGE_FILE_MACHINE_AMD64 = 0x8664
	IMAGE_FILE_MACHINE_ARM64 = 0xaa64
)

var (
	ErrNotPE  = errors.New("not a PE image")
	ErrNotDLL = errors.New("PE image is not a DLL")
)

// Header summarises what the loader will see
type Header struct {
	Machine         uint16
	Characteristics uint16
	Is64            bool
}

// IsDLL reports whether the image is marked as a dynamic-link library
func (h Header) IsDLL() bool {
	return h.Characteristics&IMAGE_FILE_DLL != 0
}

// Arch names the image's machine type
func (h Header) Arch() string {
	switch h.Machine {
	case IMAGE_FILE_MACHINE_I386:
		return "x86"
	case IMAGE_FILE_MACHINE_AMD64:
		return "x64"
	case IMAGE_FILE_MACHINE_ARM64:
		return "arm64"
	default:
		return fmt.Sprintf("machine 0x%04x", h.Machine)
	}
}

// ReadHeader parses the DOS, COFF and optional header magic from r
func ReadHeader(r io.ReaderAt) (Header, error) {
	var dos ImageDOSHeader
	if err := binary.Read(io.NewSectionReader(r, 0, 1<<20), binary.LittleEndian, &dos); err != nil {
		return Header{}, fmt.Errorf("%w: read DOS header: %v", ErrNotPE, err)
	}
	if dos.Magic != IMAGE_DOS_SIGNATURE {
		return Header{}, fmt.Errorf("%w: bad DOS signature 0x%04x", ErrNotPE, dos.Magic)
	}
	if dos.LfaNew <= 0 {
		return Header{}, fmt.Errorf("%w: bad NT header offset %d", ErrNotPE, dos.LfaNew)
	}

	nt := io.NewSectionReader(r, int64(dos.LfaNew), 1<<20)
	var sig uint32
	if err := binary.Read(nt, binary.LittleEndian, &sig); err != nil {
		return Header{}, fmt.Errorf("%w: read NT signature: %v", ErrNotPE, err)
	}
	if sig != IMAGE_NT_SIGNATURE {
		return Header{}, fmt.Errorf("%w: bad NT signature 0x%08x", ErrNotPE, sig)
	}

	var fh ImageFileHeader
	if err := binary.Read(nt, binary.LittleEndian, &fh); err != nil {
		return Header{}, fmt.Errorf("%w: read file header: %v", ErrNotPE, err)
	}
	var magic uint16
	if err := binary.Read(nt, binary.LittleEndian, &magic); err != nil {
		return Header{}, fmt.Errorf("%w: read optional header: %v", ErrNotPE, err)
	}

	h := Header{Machine: fh.Machine, Characteristics: fh.Characteristics}
	switch magic {
	case IMAGE_NT_OPTIONAL_HDR32_MAGIC:
	case IMAGE_NT_OPTIONAL_HDR64_MAGIC:
		h.Is64 = true
	default:
		return Header{}, fmt.Errorf("%w: unknown optional header magic 0x%04x", ErrNotPE, magic)
	}
	return h, nil
}

// Inspect opens path and checks that it is a loadable DLL
func Inspect(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	h, err := ReadHeader(f)
	if err != nil {
		return Header{}, err
	}
	if !h.IsDLL() {
		return h, ErrNotDLL
	}
	return h, nil
}
