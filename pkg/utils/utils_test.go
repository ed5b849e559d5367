package utils_test

import (
	"testing"

	"github.com/govld/govld/pkg/utils"
)

func TestReadWriteRoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	utils.Write[uint64](buf, 0x0102030405060708)
	if got := utils.Read[uint64](buf); got != 0x0102030405060708 {
		t.Fatalf("got %x, want %x", got, 0x0102030405060708)
	}
}

func TestReadSlice(t *testing.T) {
	data := make([]byte, 12)
	utils.Write[uint32](data[0:], 1)
	utils.Write[uint32](data[4:], 2)
	utils.Write[uint32](data[8:], 3)

	got := utils.ReadSlice[uint32](data, 4)
	want := []uint32{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRemovePrefix(t *testing.T) {
	if s, ok := utils.RemovePrefix(".text.foo", ".text."); !ok || s != "foo" {
		t.Fatalf("got (%q, %v), want (%q, true)", s, ok, "foo")
	}
	if s, ok := utils.RemovePrefix(".data", ".text."); ok {
		t.Fatalf("got (%q, %v), want ok=false", s, ok)
	}
}

func TestRemoveIf(t *testing.T) {
	elems := []int{1, 2, 3, 4, 5, 6}
	got := utils.RemoveIf(elems, func(v int) bool { return v%2 == 0 })
	want := []int{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestAllZeros(t *testing.T) {
	if !utils.AllZeros([]byte{0, 0, 0}) {
		t.Fatalf("expected all-zero slice to report true")
	}
	if utils.AllZeros([]byte{0, 1, 0}) {
		t.Fatalf("expected slice with a set byte to report false")
	}
}

func TestAlignTo(t *testing.T) {
	cases := []struct{ val, align, want uint64 }{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{5, 0, 5},
	}
	for _, c := range cases {
		if got := utils.AlignTo(c.val, c.align); got != c.want {
			t.Fatalf("AlignTo(%d, %d) = %d, want %d", c.val, c.align, got, c.want)
		}
	}
}

func TestBitAndBits(t *testing.T) {
	val := uint32(0b1011_0100)
	if got := utils.Bit(val, 2); got != 1 {
		t.Fatalf("Bit(%b, 2) = %d, want 1", val, got)
	}
	if got := utils.Bit(val, 0); got != 0 {
		t.Fatalf("Bit(%b, 0) = %d, want 0", val, got)
	}
	if got := utils.Bits(val, 7, 4); got != 0b1011 {
		t.Fatalf("Bits(%b, 7, 4) = %b, want %b", val, got, 0b1011)
	}
}

func TestSignExtend(t *testing.T) {
	if got := utils.SignExtend(0xFFF, 11); got != 0xFFFFFFFFFFFFFFFF {
		t.Fatalf("SignExtend(0xFFF, 11) = %x, want all-ones", got)
	}
	if got := utils.SignExtend(0x7FF, 11); got != 0x7FF {
		t.Fatalf("SignExtend(0x7FF, 11) = %x, want 0x7FF", got)
	}
}

func TestBitCeil(t *testing.T) {
	cases := []struct{ val, want uint64 }{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{5, 8},
		{16, 16},
		{17, 32},
	}
	for _, c := range cases {
		if got := utils.BitCeil(c.val); got != c.want {
			t.Fatalf("BitCeil(%d) = %d, want %d", c.val, got, c.want)
		}
	}
}
