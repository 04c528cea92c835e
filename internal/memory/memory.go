// Package memory implements the CPU and PPU address buses: bounds-checked
// work RAM, register-window decoding, and delegation into the cartridge
// mapper.
package memory

import "nesgo/internal/cartridge"

// PPUInterface is the register-window surface the CPU bus dispatches
// $2000-$3FFF accesses to. A plain interface is used here (not the tagged
// dispatch used for mappers) because register access happens once per CPU
// memory operation, not once per PPU dot.
type PPUInterface interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// InputInterface is the gamepad shift-register surface at $4016-$4017.
type InputInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CPUBus implements the 16-bit CPU address space from SPEC_FULL.md §4.4.
type CPUBus struct {
	ram [0x800]uint8

	ppu   PPUInterface
	input InputInterface
	cart  *cartridge.Cartridge

	apuStub [0x18]uint8 // $4000-$4017 scratch; only $4014/$4016/$4017 are given real semantics

	openBus uint8

	OAMDMAPending bool
	OAMDMAPage    uint8
}

// NewCPUBus builds a CPU bus bound to the given PPU register window and
// cartridge. The gamepad interface can be attached later via SetInput.
func NewCPUBus(ppu PPUInterface, cart *cartridge.Cartridge) *CPUBus {
	return &CPUBus{ppu: ppu, cart: cart}
}

// SetInput attaches the gamepad shift-register source.
func (b *CPUBus) SetInput(input InputInterface) { b.input = input }

// Read returns the byte visible on the CPU bus at address.
func (b *CPUBus) Read(address uint16) uint8 {
	var value uint8
	switch {
	case address < 0x2000:
		value = b.ram[address&0x07FF]

	case address < 0x4000:
		value = b.ppu.ReadRegister(0x2000 + (address & 0x0007))

	case address < 0x4020:
		switch address {
		case 0x4014:
			value = 0
		case 0x4016, 0x4017:
			if b.input != nil {
				value = b.input.Read(address)
			}
		default:
			value = b.apuStub[address-0x4000]
		}

	case address < 0x6000:
		value = b.openBus

	case b.cart != nil:
		value = b.cart.Mapper.ReadPRG(address)

	default:
		value = b.openBus
	}
	b.openBus = value
	return value
}

// Write stores a byte on the CPU bus at address.
func (b *CPUBus) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		b.ram[address&0x07FF] = value

	case address < 0x4000:
		b.ppu.WriteRegister(0x2000+(address&0x0007), value)

	case address < 0x4020:
		switch address {
		case 0x4014:
			b.OAMDMAPending = true
			b.OAMDMAPage = value
		case 0x4016:
			if b.input != nil {
				b.input.Write(address, value)
			}
		case 0x4017:
			if b.input != nil {
				b.input.Write(address, value)
			}
			b.apuStub[address-0x4000] = value
		default:
			b.apuStub[address-0x4000] = value
		}

	case address < 0x6000:
		// Expansion ROM area, unmapped.

	default:
		if b.cart != nil {
			b.cart.Mapper.WritePRG(address, value)
		}
	}
}

// WritePPURegister is used by the CPU's OAM DMA handler to stream bytes into
// OAMDATA without going through the general address decode.
func (b *CPUBus) WritePPURegister(address uint16, value uint8) {
	b.ppu.WriteRegister(address, value)
}
