// Package system wires the CPU, PPU, cartridge and input components into a
// single NTSC NES, driving them at the correct 1:3 CPU:PPU clock ratio.
package system

import (
	"nesgo/internal/cartridge"
	"nesgo/internal/cpu"
	"nesgo/internal/input"
	"nesgo/internal/memory"
	"nesgo/internal/ppu"
)

// System is the flat component graph for one emulated console: it owns the
// shared NMI/IRQ signal bytes CPU and PPU poll directly, rather than routing
// interrupt delivery through callbacks.
type System struct {
	CPU *cpu.CPU
	PPU *ppu.PPU

	cpuBus *memory.CPUBus
	ppuBus *memory.PPUBus
	cart   *cartridge.Cartridge

	Input *input.InputState

	nmiLine uint8
	irqLine uint8

	oddCPUCycle bool
}

// New builds a System around the given cartridge.
func New(cart *cartridge.Cartridge) *System {
	s := &System{cart: cart}

	s.ppuBus = memory.NewPPUBus(cart)
	s.PPU = ppu.New(s.ppuBus, &s.nmiLine)

	s.cpuBus = memory.NewCPUBus(s.PPU, cart)
	s.Input = input.NewInputState()
	s.cpuBus.SetInput(s.Input)

	s.CPU = cpu.New(s.cpuBus, &s.nmiLine, &s.irqLine)
	cart.Mapper.SetIRQLine(&s.irqLine)

	s.Reset()
	return s
}

// Reset returns CPU and PPU to their power-up state.
func (s *System) Reset() {
	s.CPU.PowerUp()
	s.PPU.Reset()
	s.Input.Reset()
	s.nmiLine, s.irqLine = 0, 0
	s.oddCPUCycle = false
}

// Tick advances the system by one CPU cycle: the PPU runs three dots per
// CPU cycle, matching the NTSC 5.37MHz:1.79MHz clock ratio, and OAM DMA is
// serviced between instructions when the CPU bus has recorded a pending
// $4014 write.
func (s *System) Tick() {
	s.PPU.Tick()
	s.PPU.Tick()
	s.PPU.Tick()

	if s.cpuBus.OAMDMAPending {
		s.runOAMDMA()
		return
	}

	s.CPU.Tick()
	s.oddCPUCycle = !s.oddCPUCycle
}

// runOAMDMA performs the 256-byte OAM copy and burns the corresponding
// 513/514 CPU cycles (514 when the DMA starts on an odd CPU cycle), charged
// as PPU-only ticks so the 1:3 clock ratio is preserved while the CPU is
// suspended.
func (s *System) runOAMDMA() {
	s.cpuBus.OAMDMAPending = false
	page := s.cpuBus.OAMDMAPage

	stallCycles := 513
	if s.oddCPUCycle {
		stallCycles = 514
	}

	base := uint16(page) << 8
	for i := 0; i < 256; i++ {
		value := s.cpuBus.Read(base + uint16(i))
		s.cpuBus.WritePPURegister(0x2004, value)
	}

	for i := 0; i < stallCycles; i++ {
		s.PPU.Tick()
		s.PPU.Tick()
		s.PPU.Tick()
		s.oddCPUCycle = !s.oddCPUCycle
	}
}

// StepInstruction advances the system through exactly one CPU instruction
// (or one OAM DMA stall, whichever the next Tick begins), used by debug
// tooling that single-steps at instruction granularity.
func (s *System) StepInstruction() {
	s.Tick()
	for !s.CPU.AtInstructionBoundary() {
		s.Tick()
	}
}

// RunFrame advances the system until one full PPU frame has completed.
func (s *System) RunFrame() {
	for !s.PPU.ConsumeFrameComplete() {
		s.Tick()
	}
}

// FrameBuffer returns the most recently completed frame's pixels.
func (s *System) FrameBuffer() [256 * 240]uint32 {
	return s.PPU.FrameBuffer()
}

// CycleCount returns the total number of CPU cycles executed since reset.
func (s *System) CycleCount() uint64 {
	return s.CPU.TotalCycles
}
