package linker

import (
	"github.com/govld/govld/pkg/utils"
)

// ReadArchiveMembers extracts the object-file members of a GNU ar
// archive ("!<arch>\n" format). The archive's symbol-index and long-name
// string-table members are skipped; everything else is handed back as a
// File whose Parent points at the enclosing archive.
func ReadArchiveMembers(file *File) []*File {
	const magicLen = 8

	pos := magicLen
	var strTab []byte
	var files []*File

	for pos+AhdrSize <= len(file.Contents) {
		hdr := utils.Read[ArHdr](file.Contents[pos:])
		body := pos + AhdrSize
		size := hdr.GetSize()
		end := body + size
		utils.Assert(end <= len(file.Contents))

		switch {
		case hdr.IsStrTab():
			strTab = file.Contents[body:end]
		case hdr.IsSymtab():
			// skip, unused by this linker's symbol resolution
		default:
			files = append(files, &File{
				Name:     hdr.ReadName(strTab),
				Contents: file.Contents[body:end],
				Parent:   file,
			})
		}

		pos = end
		if pos%2 == 1 {
			pos++ // members are padded to an even offset
		}
	}

	return files
}
