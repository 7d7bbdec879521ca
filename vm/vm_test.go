package vm

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/uemu/cpu"
	"github.com/sarchlab/uemu/hooking"
	"github.com/sarchlab/uemu/mem"
	"github.com/sarchlab/uemu/tracing"
)

// recordingHook captures every hook invocation it receives.
type recordingHook struct {
	ctxs []hooking.HookCtx
}

func (h *recordingHook) Func(ctx hooking.HookCtx) {
	h.ctxs = append(h.ctxs, ctx)
}

func (h *recordingHook) at(pos *hooking.HookPos) []hooking.HookCtx {
	var out []hooking.HookCtx
	for _, ctx := range h.ctxs {
		if ctx.Pos == pos {
			out = append(out, ctx)
		}
	}
	return out
}

func machineEvents(m *VirtualMachine, name string) []tracing.TraceEvent {
	custom := tracing.Custom
	var out []tracing.TraceEvent
	for _, e := range m.TraceEvents(tracing.EventQuery{Type: &custom}) {
		if e.Data["event"] == name {
			out = append(out, e)
		}
	}
	return out
}

var _ = Describe("VirtualMachine", func() {
	var (
		mockCtrl *gomock.Controller
		machine  *VirtualMachine
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		machine = MakeBuilder().WithName("test_vm").Build()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should build with the default configuration", func() {
		Expect(machine.Name()).To(Equal("test_vm"))
		Expect(machine.State()).To(Equal(StateIdle))
		Expect(machine.GlobalClock()).To(Equal(uint64(0)))
		Expect(machine.Processors()).To(HaveLen(1))
		Expect(machine.Tracer()).NotTo(BeNil())
		Expect(machine.Metrics()).NotTo(BeNil())
		Expect(machine.DataRecorder()).To(BeNil())
	})

	It("should generate a name when none is given", func() {
		anonymous := MakeBuilder().Build()

		Expect(strings.HasPrefix(anonymous.Name(), "uemu_")).To(BeTrue())
	})

	Context("when loading programs", func() {
		It("should mint a distinct ID per program", func() {
			id1, err := machine.LoadProgram([]string{"HALT"})
			Expect(err).NotTo(HaveOccurred())
			id2, err := machine.LoadProgram([]string{"HALT"})
			Expect(err).NotTo(HaveOccurred())

			Expect(id1).NotTo(Equal(id2))
			Expect(machine.LoadedPrograms()).To(HaveLen(2))
			Expect(machine.LoadedPrograms()[id1].ProcessorID).To(Equal(0))
		})

		It("should place programs back to back", func() {
			id1, _ := machine.LoadProgram([]string{"NOP", "HALT"})
			id2, _ := machine.LoadProgram([]string{"HALT"})

			Expect(machine.LoadedPrograms()[id1].EntryPoint).
				To(Equal(uint64(0)))
			Expect(machine.LoadedPrograms()[id2].EntryPoint).
				To(Equal(uint64(2)))
		})

		It("should skip blank lines and comments", func() {
			id, err := machine.LoadProgram([]string{
				"; setup",
				"",
				"# comment",
				"HALT",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(machine.LoadedPrograms()[id].Instructions).To(HaveLen(1))
		})

		It("should log a program_loaded event", func() {
			id, _ := machine.LoadProgram([]string{"HALT"})

			events := machineEvents(machine, "program_loaded")
			Expect(events).To(HaveLen(1))
			Expect(events[0].Data["program_id"]).To(Equal(id))
		})

		It("should invoke the ProgramLoaded hook", func() {
			hook := &recordingHook{}
			machine.AcceptHook(hook)

			id, _ := machine.LoadProgram([]string{"HALT"})

			loaded := hook.at(hooking.HookPosProgramLoaded)
			Expect(loaded).To(HaveLen(1))
			Expect(loaded[0].Item.(*Program).ID).To(Equal(id))
		})

		It("should reject unknown processors", func() {
			_, err := machine.LoadProgramOnProcessor(7, []string{"HALT"})

			Expect(err).To(HaveOccurred())
		})

		It("should reject empty programs", func() {
			_, err := machine.LoadProgram([]string{"; nothing"})

			Expect(err).To(HaveOccurred())
			Expect(machine.LoadedPrograms()).To(BeEmpty())
		})

		It("should propagate loader failures", func() {
			loader := NewMockProgramLoader(mockCtrl)
			loader.EXPECT().
				Load(gomock.Any(), gomock.Any(), "bad").
				Return(errors.New("unreadable"))

			failing := MakeBuilder().WithProgramLoader(loader).Build()
			_, err := failing.LoadProgram("bad")

			Expect(err).To(MatchError("unreadable"))
		})
	})

	Context("when stepping", func() {
		It("should do nothing before the machine starts", func() {
			machine.LoadProgram([]string{"HALT"})

			Expect(machine.Step()).To(BeTrue())
			Expect(machine.GlobalClock()).To(Equal(uint64(0)))
		})

		It("should report no more work after the machine finishes", func() {
			machine.Stop()

			Expect(machine.Step()).To(BeFalse())
		})

		It("should fire the cycle hooks with the clock value", func() {
			hook := &recordingHook{}
			machine.AcceptHook(hook)
			machine.LoadProgram([]string{"HALT"})
			machine.Start()

			machine.Step()

			before := hook.at(hooking.HookPosBeforeCycle)
			after := hook.at(hooking.HookPosAfterCycle)
			Expect(before).To(HaveLen(1))
			Expect(before[0].Item).To(Equal(uint64(0)))
			Expect(after).To(HaveLen(1))
			Expect(after[0].Item).To(Equal(uint64(1)))
		})
	})

	Context("when running a program to completion", func() {
		BeforeEach(func() {
			_, err := machine.LoadProgram([]string{
				"ADD R0, R1, R2",
				"STORE R0, 100",
				"HALT",
			})
			Expect(err).NotTo(HaveOccurred())

			p := machine.Processor(0)
			Expect(p.SetRegister("R1", 2)).To(Succeed())
			Expect(p.SetRegister("R2", 3)).To(Succeed())
		})

		It("should compute and store the result", func() {
			cycles := machine.Run(0)

			Expect(cycles).To(Equal(3))
			Expect(machine.State()).To(Equal(StateFinished))
			Expect(machine.GlobalClock()).To(Equal(uint64(3)))

			p := machine.Processor(0)
			Expect(p.GetRegister("R0")).To(Equal(int64(5)))
			Expect(p.State()).To(Equal(cpu.Terminated))

			stored, err := machine.Memory().Read(100, 4, mem.NoContext)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(Equal(uint64(5)))
		})

		It("should trace instructions and memory accesses", func() {
			machine.Run(0)

			instType := tracing.Instruction
			instructions := machine.TraceEvents(
				tracing.EventQuery{Type: &instType})
			Expect(instructions).To(HaveLen(3))

			memType := tracing.MemoryAccess
			accesses := machine.TraceEvents(tracing.EventQuery{Type: &memType})
			Expect(accesses).To(HaveLen(1))
			Expect(*accesses[0].Address).To(Equal(uint64(100)))
			Expect(accesses[0].Data["access_type"]).To(Equal("write"))
		})

		It("should count instructions and memory accesses", func() {
			machine.Run(0)

			exported := machine.Metrics().Metrics()
			Expect(exported["instructions_executed"]).To(Equal(uint64(3)))
			Expect(exported["memory_accesses"]).To(Equal(uint64(1)))
		})

		It("should log machine lifecycle events", func() {
			machine.Run(0)

			Expect(machineEvents(machine, "vm_started")).To(HaveLen(1))
			Expect(machineEvents(machine, "vm_stopped")).To(HaveLen(1))
		})
	})

	Context("when the cycle budget runs out", func() {
		BeforeEach(func() {
			machine.LoadProgram([]string{"JMP 0"})
		})

		It("should pause rather than finish", func() {
			cycles := machine.Run(5)

			Expect(cycles).To(Equal(5))
			Expect(machine.State()).To(Equal(StatePaused))
			Expect(machine.GlobalClock()).To(Equal(uint64(5)))
		})

		It("should resume from where it paused", func() {
			machine.Run(5)

			cycles := machine.Run(2)

			Expect(cycles).To(Equal(2))
			Expect(machine.State()).To(Equal(StatePaused))
			Expect(machine.GlobalClock()).To(Equal(uint64(7)))
		})
	})

	Context("when a processor runs past its code", func() {
		It("should terminate that processor", func() {
			machine.LoadProgram([]string{"ADD R0, R1, R2"})

			machine.Run(0)

			Expect(machine.State()).To(Equal(StateFinished))
			Expect(machine.Processor(0).State()).To(Equal(cpu.Terminated))
		})
	})

	Context("when a processor faults", func() {
		var faulty *VirtualMachine

		BeforeEach(func() {
			faulty = MakeBuilder().WithNumProcessors(2).Build()

			_, err := faulty.LoadProgramOnProcessor(0, []string{
				"LOAD R0, 70000",
				"HALT",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = faulty.LoadProgramOnProcessor(1, []string{
				"ADD R0, R1, R2",
				"HALT",
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should terminate only the faulting processor", func() {
			hook := &recordingHook{}
			faulty.AcceptHook(hook)

			faulty.Run(0)

			Expect(faulty.State()).To(Equal(StateFinished))
			Expect(faulty.Processor(0).State()).To(Equal(cpu.Terminated))
			Expect(faulty.Processor(0).PC()).To(Equal(uint64(0)),
				"the faulting instruction must not complete")

			faults := hook.at(hooking.HookPosFault)
			Expect(faults).To(HaveLen(1))
			Expect(faults[0].Item.(*cpu.Processor).ID()).To(Equal(0))

			secType := tracing.Security
			events := faulty.TraceEvents(tracing.EventQuery{Type: &secType})
			Expect(events).To(HaveLen(1))
			Expect(events[0].Data["event"]).To(Equal("fault"))
			Expect(events[0].ProcessorID).To(Equal(0))
		})

		It("should let the other processor finish its program", func() {
			faulty.Run(0)

			instType := tracing.Instruction
			pid := 1
			executed := faulty.TraceEvents(tracing.EventQuery{
				Type:        &instType,
				ProcessorID: &pid,
			})
			Expect(executed).To(HaveLen(2))
		})
	})

	Context("when allocating data memory", func() {
		It("should hand out aligned, non-overlapping blocks", func() {
			first, err := machine.AllocateMemory(100, 16)
			Expect(err).NotTo(HaveOccurred())
			Expect(first).To(Equal(uint64(0)))

			second, err := machine.AllocateMemory(100, 16)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(uint64(112)))
		})

		It("should reject allocations beyond capacity", func() {
			_, err := machine.AllocateMemory(1<<20, 16)

			Expect(err).To(HaveOccurred())
		})

		It("should reuse freed blocks", func() {
			first, _ := machine.AllocateMemory(100, 16)

			Expect(machine.FreeMemory(first, 100)).To(Succeed())
			Expect(machine.FreeMemory(first, 100)).NotTo(Succeed())

			again, err := machine.AllocateMemory(100, 16)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(Equal(first))
		})

		It("should release all allocations on reset", func() {
			machine.AllocateMemory(100, 16)

			machine.Reset()

			first, err := machine.AllocateMemory(100, 16)
			Expect(err).NotTo(HaveOccurred())
			Expect(first).To(Equal(uint64(0)))
		})
	})

	Context("when switching contexts", func() {
		It("should trace the switch and count it", func() {
			machine.SwitchContext(0, "t0", "t1", "preempted")

			csType := tracing.ContextSwitch
			events := machine.TraceEvents(tracing.EventQuery{Type: &csType})
			Expect(events).To(HaveLen(1))
			Expect(events[0].Data["from_thread"]).To(Equal("t0"))
			Expect(events[0].Data["to_thread"]).To(Equal("t1"))
			Expect(events[0].ThreadID).To(Equal("t1"))

			exported := machine.Metrics().Metrics()
			Expect(exported["context_switches"]).To(Equal(uint64(1)))
		})
	})

	Context("when resetting", func() {
		BeforeEach(func() {
			machine.LoadProgram([]string{"HALT"})
			machine.Run(0)
		})

		It("should return to the initial state", func() {
			machine.Reset()

			Expect(machine.State()).To(Equal(StateIdle))
			Expect(machine.GlobalClock()).To(Equal(uint64(0)))
			Expect(machine.Processor(0).State()).To(Equal(cpu.Idle))
			Expect(machine.TraceEvents(tracing.EventQuery{})).To(BeEmpty())
		})

		It("should keep loaded programs so the machine can run again", func() {
			machine.Reset()

			Expect(machine.LoadedPrograms()).To(HaveLen(1))

			cycles := machine.Run(0)
			Expect(cycles).To(Equal(1))
			Expect(machine.State()).To(Equal(StateFinished))
		})

		It("should call the reset hook", func() {
			called := false
			hooked := MakeBuilder().
				WithResetHook(func(m *VirtualMachine) { called = true }).
				Build()

			hooked.Reset()

			Expect(called).To(BeTrue())
		})
	})

	It("should report machine statistics", func() {
		machine.LoadProgram([]string{"HALT"})
		machine.Run(0)

		stats := machine.Statistics()

		Expect(stats["processors"]).To(Equal(1))
		Expect(stats["state"]).To(Equal("finished"))
		Expect(stats["global_clock"]).To(Equal(uint64(1)))
		Expect(stats["instructions_executed"]).To(Equal(uint64(1)))
	})
})
