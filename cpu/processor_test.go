package cpu

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/sarchlab/uemu/insts"
)

var _ = Describe("Processor", func() {
	var (
		mockCtrl *gomock.Controller
		set      *insts.InstructionSet
		p        *Processor
	)

	decode := func(text string) insts.Instruction {
		inst, err := insts.NewDecoder(set).DecodeText(text)
		Expect(err).ToNot(HaveOccurred())
		return inst
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		set = insts.NewDefaultSet()
		p = MakeBuilder().WithID(3).Build()
		p.StartExecution(0)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should build with defaults", func() {
		fresh := MakeBuilder().Build()

		Expect(fresh.State()).To(Equal(Idle))
		Expect(fresh.PC()).To(Equal(uint64(0)))
		Expect(fresh.Registers()).To(HaveKey("R15"))
		Expect(fresh.Registers()).To(HaveKey("FLAGS"))
		Expect(fresh.PerformanceCounters()).To(
			HaveKey(CounterInstructionsExecuted))
	})

	It("should not execute unless running", func() {
		idle := MakeBuilder().Build()

		completed, effects, err := idle.ExecuteInstruction(decode("NOP"))

		Expect(completed).To(BeFalse())
		Expect(effects).To(BeNil())
		Expect(err).ToNot(HaveOccurred())
	})

	It("should add registers and advance the PC by one", func() {
		p.SetRegister("R1", 3)
		p.SetRegister("R2", 4)

		completed, effects, err :=
			p.ExecuteInstruction(decode("ADD R0, R1, R2"))

		Expect(completed).To(BeTrue())
		Expect(err).ToNot(HaveOccurred())
		Expect(p.GetRegister("R0")).To(Equal(int64(7)))
		Expect(p.PC()).To(Equal(uint64(1)))
		Expect(effects).To(ContainElement(
			RegisterWrite{Register: "R0", Value: 7}))
	})

	It("should subtract and multiply", func() {
		p.SetRegister("R1", 10)
		p.SetRegister("R2", 4)

		p.ExecuteInstruction(decode("SUB R3, R1, R2"))
		p.ExecuteInstruction(decode("MUL R4, R1, R2"))

		Expect(p.GetRegister("R3")).To(Equal(int64(6)))
		Expect(p.GetRegister("R4")).To(Equal(int64(40)))
	})

	It("should treat missing sources as zero", func() {
		inst := decode("ADD R0, R1, R2")
		inst.Operands = []string{"R0", "R8", "R99"}

		completed, _, err := p.ExecuteInstruction(inst)

		Expect(completed).To(BeTrue())
		Expect(err).ToNot(HaveOccurred())
		Expect(p.GetRegister("R0")).To(Equal(int64(0)))
	})

	It("should fail computing into an unknown register", func() {
		inst := decode("ADD R0, R1, R2")
		inst.Operands = []string{"R99", "R1", "R2"}

		completed, _, err := p.ExecuteInstruction(inst)

		Expect(completed).To(BeFalse())
		Expect(err).To(BeAssignableToTypeOf(&RegisterError{}))
	})

	It("should set the PC to the jump target, not target+1", func() {
		completed, effects, err := p.ExecuteInstruction(decode("JMP 42"))

		Expect(completed).To(BeTrue())
		Expect(err).ToNot(HaveOccurred())
		Expect(p.PC()).To(Equal(uint64(42)))
		Expect(effects).To(ContainElement(Jump{Target: 42}))
	})

	It("should take JZ only when the zero flag is set", func() {
		p.ExecuteInstruction(decode("JZ 10"))
		Expect(p.PC()).To(Equal(uint64(1)))

		p.SetZeroFlag(true)
		p.ExecuteInstruction(decode("JZ 10"))
		Expect(p.PC()).To(Equal(uint64(10)))
	})

	It("should take JNZ only when the zero flag is clear", func() {
		p.SetZeroFlag(true)
		p.ExecuteInstruction(decode("JNZ 10"))
		Expect(p.PC()).To(Equal(uint64(1)))

		p.SetZeroFlag(false)
		p.ExecuteInstruction(decode("JNZ 10"))
		Expect(p.PC()).To(Equal(uint64(10)))
	})

	It("should jump through a register target", func() {
		p.SetRegister("R5", 7)

		inst := decode("JMP 0")
		inst.Operands = []string{"R5"}

		p.ExecuteInstruction(inst)

		Expect(p.PC()).To(Equal(uint64(7)))
	})

	It("should emit a read intent for LOAD", func() {
		_, effects, err := p.ExecuteInstruction(decode("LOAD R0, 0x40"))

		Expect(err).ToNot(HaveOccurred())
		Expect(effects).To(ContainElement(
			MemoryRead{Address: 0x40, Dest: "R0"}))
		Expect(p.PerformanceCounters()[CounterMemoryAccesses]).To(
			Equal(uint64(1)))
	})

	It("should emit a write intent for STORE", func() {
		p.SetRegister("R0", 5)

		_, effects, err := p.ExecuteInstruction(decode("STORE R0, 100"))

		Expect(err).ToNot(HaveOccurred())
		Expect(effects).To(ContainElement(
			MemoryWrite{Address: 100, Value: 5}))
	})

	It("should fail on an unparsable address operand", func() {
		inst := decode("LOAD R0, 0x40")
		inst.Operands = []string{"R0", "banana"}

		completed, _, err := p.ExecuteInstruction(inst)

		Expect(completed).To(BeFalse())
		Expect(err).To(HaveOccurred())
	})

	It("should terminate on HALT and stay terminated", func() {
		completed, effects, err := p.ExecuteInstruction(decode("HALT"))

		Expect(completed).To(BeTrue())
		Expect(err).ToNot(HaveOccurred())
		Expect(effects).To(ContainElement(Halt{}))
		Expect(p.State()).To(Equal(Terminated))

		completed, effects, err = p.ExecuteInstruction(decode("NOP"))

		Expect(completed).To(BeFalse())
		Expect(effects).To(BeNil())
		Expect(err).ToNot(HaveOccurred())
	})

	It("should count executed instructions", func() {
		p.ExecuteInstruction(decode("NOP"))
		p.ExecuteInstruction(decode("NOP"))

		Expect(p.PerformanceCounters()[CounterInstructionsExecuted]).To(
			Equal(uint64(2)))
		Expect(p.CycleCount()).To(Equal(uint64(2)))
	})

	It("should dispatch unknown system instructions to the handler", func() {
		handler := NewMockCustomInstructionHandler(mockCtrl)
		p = MakeBuilder().WithCustomHandler(handler).Build()
		p.StartExecution(0)

		inst := insts.Instruction{
			Name: "SYSCALL",
			Type: insts.System,
		}
		handler.EXPECT().
			Execute(p, inst).
			Return([]SideEffect{RegisterWrite{Register: "R0", Value: 1}})

		completed, effects, err := p.ExecuteInstruction(inst)

		Expect(completed).To(BeTrue())
		Expect(err).ToNot(HaveOccurred())
		Expect(effects).To(HaveLen(1))
	})

	It("should only be busy while work is in flight", func() {
		fresh := MakeBuilder().Build()
		Expect(fresh.IsBusy()).To(BeFalse())

		fresh.StartExecution(0)
		Expect(fresh.IsBusy()).To(BeTrue())

		fresh.Wait()
		Expect(fresh.IsBusy()).To(BeTrue())

		fresh.Resume()
		fresh.Block()
		Expect(fresh.IsBusy()).To(BeTrue())

		fresh.Terminate()
		Expect(fresh.IsBusy()).To(BeFalse())
	})

	It("should transition through the waiting states", func() {
		p.Wait()
		Expect(p.State()).To(Equal(Waiting))

		p.Resume()
		Expect(p.State()).To(Equal(Running))

		p.Block()
		Expect(p.State()).To(Equal(Blocked))

		p.Resume()
		Expect(p.State()).To(Equal(Running))
	})

	It("should reset everything and call the reset hook", func() {
		hook := NewMockResetHook(mockCtrl)
		p = MakeBuilder().WithResetHook(hook).Build()
		p.StartExecution(5)
		p.SetRegister("R1", 99)
		p.ExecuteInstruction(insts.Instruction{Name: "NOP", Type: insts.System})

		hook.EXPECT().ResetAdditionalState()

		p.Reset()

		Expect(p.State()).To(Equal(Idle))
		Expect(p.PC()).To(Equal(uint64(0)))
		Expect(p.GetRegister("R1")).To(Equal(int64(0)))
		Expect(p.CycleCount()).To(Equal(uint64(0)))
	})
})
