package linker

import (
	"bytes"
	"debug/elf"

	"github.com/govld/govld/pkg/utils"
)

type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeEmpty
	FileTypeObject
	FileTypeArchive
)

func GetFileType(content []byte) FileType {
	if len(content) == 0 {
		return FileTypeEmpty
	}

	if CheckMagic(content) {
		typ := utils.Read[uint16](content[16:])
		if elf.Type(typ) == elf.ET_REL {
			return FileTypeObject
		}
	}

	if bytes.HasPrefix(content, []byte("!<arch>\n")) {
		return FileTypeArchive
	}

	return FileTypeUnknown
}
