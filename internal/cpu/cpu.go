// Package cpu implements a cycle-accurate 6502 interpreter for the NES CPU
// core: registers, addressing modes, the documented and widely-emulated
// unofficial instruction set, and interrupt sequencing.
package cpu

// AddressingMode identifies how an instruction's operand address is formed.
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

const (
	stackBase = 0x0100

	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	zeroPageMask = 0xFF
	pageMask     = 0xFF00

	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
)

// Bus is the CPU's view of the 16-bit address space.
type Bus interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// instruction is one entry of the 256-slot opcode table.
type instruction struct {
	name        string
	mode        AddressingMode
	cycles      uint8
	pageCrossOK bool // a page-crossing indexed read adds one cycle for this opcode
	exec        func(c *CPU, addr uint16, mode AddressingMode) (extraCycles uint8)
}

// CPU is a 6502 core, driven one master-clock credit at a time via Tick.
type CPU struct {
	A, X, Y uint8
	SP      uint8
	PC      uint16

	C, Z, I, D, B1, B2, V, N bool

	bus Bus

	instructions [256]instruction

	cyclesRemaining uint8
	TotalCycles     uint64

	NMI *uint8 // shared edge line, written 1 by the PPU, polled+cleared here
	IRQ *uint8 // shared edge line, written 1 by the mapper, polled+cleared here
	nmiEdge bool

	halted bool // true once a KIL (unassigned) opcode has executed; diagnostic only
}

// New creates a CPU wired to bus, with NMI/IRQ bound to the given shared
// signal bytes owned by the containing system context.
func New(bus Bus, nmi, irq *uint8) *CPU {
	c := &CPU{bus: bus, NMI: nmi, IRQ: irq}
	c.initInstructions()
	return c
}

// PowerUp sets the documented 6502 power-up register state and loads PC from
// the reset vector.
func (c *CPU) PowerUp() {
	c.A, c.X, c.Y = 0, 0, 0
	c.SP = 0xFD
	c.C, c.Z, c.V, c.N, c.D = false, false, false, false, false
	c.I = true
	c.B1, c.B2 = true, true
	c.PC = c.readWord(resetVector)
	c.cyclesRemaining = 0
	c.TotalCycles = 0
}

// Reset reproduces the abbreviated 6502 reset sequence: SP -= 3, I set, PC
// reloaded from the reset vector. Register contents otherwise survive.
func (c *CPU) Reset() {
	c.SP -= 3
	c.I = true
	c.PC = c.readWord(resetVector)
	c.cyclesRemaining = 0
}

// Tick consumes one CPU-cycle credit. When the instruction in flight has
// been fully charged, it polls interrupts: a dispatched interrupt takes this
// tick and charges its 7 cycles; otherwise it fetches and executes the next
// instruction, charging its cycle cost into cyclesRemaining.
func (c *CPU) Tick() {
	c.TotalCycles++
	if c.cyclesRemaining > 0 {
		c.cyclesRemaining--
		return
	}
	if c.pollInterrupts() {
		c.cyclesRemaining--
		return
	}
	c.cyclesRemaining = c.stepInstruction() - 1
}

// AtInstructionBoundary reports whether the next Tick will fetch a new
// instruction rather than continue charging one already in flight.
func (c *CPU) AtInstructionBoundary() bool {
	return c.cyclesRemaining == 0
}

func (c *CPU) pollInterrupts() bool {
	nmiAsserted := c.NMI != nil && *c.NMI != 0
	if nmiAsserted && !c.nmiEdge {
		*c.NMI = 0
		c.dispatchInterrupt(nmiVector, false, false)
		c.nmiEdge = true
		return true
	}
	c.nmiEdge = nmiAsserted

	if c.IRQ != nil && *c.IRQ != 0 && !c.I {
		*c.IRQ = 0
		c.dispatchInterrupt(irqVector, false, false)
		return true
	}
	return false
}

func (c *CPU) dispatchInterrupt(vector uint16, b1, b2 bool) {
	c.pushWord(c.PC)
	c.pushStatus(b1, b2)
	c.I = true
	c.PC = c.readWord(vector)
	c.cyclesRemaining += 7
}

// stepInstruction fetches, decodes and executes one instruction, returning
// its total charged cycle count (base + any page-cross/branch surcharge).
func (c *CPU) stepInstruction() uint8 {
	opcode := c.read(c.PC)
	c.PC++
	instr := &c.instructions[opcode]

	addr, pageCrossed := c.operandAddress(instr.mode)
	extra := instr.exec(c, addr, instr.mode)

	if pageCrossed && instr.pageCrossOK {
		extra++
	}
	return instr.cycles + extra
}

func (c *CPU) read(address uint16) uint8  { return c.bus.Read(address) }
func (c *CPU) write(address uint16, v uint8) { c.bus.Write(address, v) }

func (c *CPU) readWord(address uint16) uint16 {
	lo := uint16(c.read(address))
	hi := uint16(c.read(address + 1))
	return hi<<8 | lo
}

// operandAddress decodes the addressing mode at PC, advancing PC past the
// instruction's operand bytes, and reports whether an indexed read crossed a
// page boundary.
func (c *CPU) operandAddress(mode AddressingMode) (uint16, bool) {
	switch mode {
	case Implied, Accumulator:
		return 0, false

	case Immediate:
		addr := c.PC
		c.PC++
		return addr, false

	case ZeroPage:
		addr := uint16(c.read(c.PC))
		c.PC++
		return addr, false

	case ZeroPageX:
		base := c.read(c.PC)
		c.PC++
		return uint16((base + c.X) & zeroPageMask), false

	case ZeroPageY:
		base := c.read(c.PC)
		c.PC++
		return uint16((base + c.Y) & zeroPageMask), false

	case Relative:
		offset := int8(c.read(c.PC))
		c.PC++
		base := c.PC
		target := uint16(int32(base) + int32(offset))
		return target, (base & pageMask) != (target & pageMask)

	case Absolute:
		addr := c.readWord(c.PC)
		c.PC += 2
		return addr, false

	case AbsoluteX:
		base := c.readWord(c.PC)
		c.PC += 2
		addr := base + uint16(c.X)
		return addr, (base & pageMask) != (addr & pageMask)

	case AbsoluteY:
		base := c.readWord(c.PC)
		c.PC += 2
		addr := base + uint16(c.Y)
		return addr, (base & pageMask) != (addr & pageMask)

	case Indirect:
		ptr := c.readWord(c.PC)
		c.PC += 2
		if ptr&zeroPageMask == zeroPageMask {
			lo := uint16(c.read(ptr))
			hi := uint16(c.read(ptr & pageMask))
			return hi<<8 | lo, false
		}
		return c.readWord(ptr), false

	case IndexedIndirect:
		base := c.read(c.PC)
		c.PC++
		ptr := (base + c.X) & zeroPageMask
		lo := uint16(c.read(uint16(ptr)))
		hi := uint16(c.read(uint16((ptr + 1) & zeroPageMask)))
		return hi<<8 | lo, false

	case IndirectIndexed:
		ptr := uint16(c.read(c.PC))
		c.PC++
		lo := uint16(c.read(ptr))
		hi := uint16(c.read((ptr + 1) & zeroPageMask))
		base := hi<<8 | lo
		addr := base + uint16(c.Y)
		return addr, (base & pageMask) != (addr & pageMask)

	default:
		return 0, false
	}
}

// operand reads the instruction's operand value given its decoded address:
// immediate mode reads straight from the fetched address, everything else
// reads through the bus at the effective address.
func (c *CPU) operand(addr uint16, mode AddressingMode) uint8 {
	return c.read(addr)
}

func (c *CPU) push(v uint8) {
	c.write(stackBase+uint16(c.SP), v)
	c.SP--
}

func (c *CPU) pop() uint8 {
	c.SP++
	return c.read(stackBase + uint16(c.SP))
}

func (c *CPU) pushWord(v uint16) {
	c.push(uint8(v >> 8))
	c.push(uint8(v))
}

func (c *CPU) popWord() uint16 {
	lo := uint16(c.pop())
	hi := uint16(c.pop())
	return hi<<8 | lo
}

func (c *CPU) setZN(v uint8) {
	c.Z = v == 0
	c.N = v&nFlagMask != 0
}

// StatusByte packs the flag booleans into the conventional 6502 P register
// layout, with B1/B2 reflecting their last-pushed semantics.
func (c *CPU) StatusByte() uint8 {
	var p uint8
	if c.C {
		p |= cFlagMask
	}
	if c.Z {
		p |= zFlagMask
	}
	if c.I {
		p |= iFlagMask
	}
	if c.D {
		p |= dFlagMask
	}
	if c.B1 {
		p |= bFlagMask
	}
	p |= unusedMask
	if c.V {
		p |= vFlagMask
	}
	if c.N {
		p |= nFlagMask
	}
	return p
}

func (c *CPU) setStatusByte(p uint8) {
	c.C = p&cFlagMask != 0
	c.Z = p&zFlagMask != 0
	c.I = p&iFlagMask != 0
	c.D = p&dFlagMask != 0
	c.V = p&vFlagMask != 0
	c.N = p&nFlagMask != 0
	// B1/B2 are not real storage bits on the 6502: PLP/RTI always clear both.
	c.B1, c.B2 = false, false
}

// pushStatus pushes P with the documented interrupt-specific B1/B2 values:
// NMI/IRQ push (false, false); BRK and PHP push (true, true).
func (c *CPU) pushStatus(b1, b2 bool) {
	p := c.StatusByte() &^ bFlagMask
	if b1 {
		p |= bFlagMask
	}
	_ = b2 // B2 has no separate storage bit; retained for documentation of intent
	c.push(p)
}
