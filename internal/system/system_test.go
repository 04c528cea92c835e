package system

import (
	"bytes"
	"testing"

	"nesgo/internal/cartridge"
)

func buildNROM(program []byte) *cartridge.Cartridge {
	var buf bytes.Buffer
	buf.WriteString("NES\x1A")
	buf.WriteByte(2) // 2x16KB PRG
	buf.WriteByte(1) // 1x8KB CHR
	buf.WriteByte(0)
	buf.WriteByte(0)
	buf.Write(make([]byte, 8))

	prg := make([]byte, 0x8000)
	copy(prg, program)
	// Reset vector -> $8000
	prg[0x7FFC] = 0x00
	prg[0x7FFD] = 0x80
	buf.Write(prg)
	buf.Write(make([]byte, 0x2000))

	cart, err := cartridge.LoadFromReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		panic(err)
	}
	return cart
}

func TestSystem_RunFrame_ProducesOnePulsePerFrame(t *testing.T) {
	cart := buildNROM([]byte{0xEA}) // NOP forever (falls through to more NOPs/zero bytes)
	sys := New(cart)

	sys.RunFrame()
	buf := sys.FrameBuffer()
	if len(buf) != 256*240 {
		t.Fatalf("frame buffer length = %d, want %d", len(buf), 256*240)
	}
}

func TestSystem_OAMDMA_CopiesPageIntoOAM(t *testing.T) {
	// LDA #$AA ; STA $00 ; STA $4014 (DMA from page 0)
	program := []byte{0xA9, 0xAA, 0x85, 0x00, 0xA9, 0x00, 0x8D, 0x14, 0x40}
	cart := buildNROM(program)
	sys := New(cart)

	for i := 0; i < 2000; i++ {
		sys.Tick()
	}

	got := sys.PPU.ReadRegister(0x2004) // OAMDATA at OAMADDR (wrapped to 0 after 256 writes)
	if got != 0xAA {
		t.Fatalf("OAM[0] after DMA = %#x, want 0xAA", got)
	}
}

func TestSystem_Reset_ReloadsResetVector(t *testing.T) {
	cart := buildNROM([]byte{0xEA})
	sys := New(cart)
	if sys.CPU.PC != 0x8000 {
		t.Fatalf("PC = %#x, want 0x8000", sys.CPU.PC)
	}
	sys.CPU.PC = 0x1234
	sys.Reset()
	if sys.CPU.PC != 0x8000 {
		t.Fatalf("PC after Reset = %#x, want 0x8000", sys.CPU.PC)
	}
}
