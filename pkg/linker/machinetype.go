package linker

import (
	"debug/elf"

	"github.com/govld/govld/pkg/utils"
)

type MachineType uint8

const (
	MachineTypeNone MachineType = iota
	MachineTypeRISCV64
)

func (m MachineType) String() string {
	switch m {
	case MachineTypeNone:
		return "none"
	case MachineTypeRISCV64:
		return "riscv64"
	}
	return "unknown"
}

func GetMachineTypeFromContents(content []byte) MachineType {
	if GetFileType(content) != FileTypeObject {
		return MachineTypeNone
	}

	machine := utils.Read[uint16](content[18:])
	if elf.Machine(machine) != elf.EM_RISCV {
		return MachineTypeNone
	}

	if elf.Class(content[4]) != elf.ELFCLASS64 {
		return MachineTypeNone
	}

	return MachineTypeRISCV64
}

func CheckFileCompatibility(ctx *Context, file *File) {
	t := GetMachineTypeFromContents(file.Contents)
	if t != ctx.Args.Emulation {
		utils.Fatal(file.Name + ": incompatible file type")
	}
}
