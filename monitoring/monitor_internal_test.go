package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gorilla/mux"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/uemu/mem"
	"github.com/sarchlab/uemu/vm"
)

func get(handler http.HandlerFunc, target string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	handler(recorder, httptest.NewRequest(http.MethodGet, target, nil))
	return recorder
}

var _ = Describe("Monitor", func() {
	var (
		m       *Monitor
		machine *vm.VirtualMachine
	)

	BeforeEach(func() {
		machine = vm.MakeBuilder().Build()

		m = NewMonitor()
		m.RegisterMachine(machine)
	})

	It("should refuse privileged port numbers", func() {
		m.WithPortNumber(80)

		Expect(m.portNumber).To(Equal(0))
	})

	It("should report the machine state", func() {
		rsp := get(m.state, "/api/state")

		Expect(rsp.Body.String()).To(Equal(`{"state":"idle","clock":0}`))
	})

	It("should pause and continue the machine", func() {
		machine.LoadProgram([]string{"JMP 0"})
		machine.Start()

		get(m.pauseMachine, "/api/pause")
		Expect(machine.State()).To(Equal(vm.StatePaused))

		get(m.continueMachine, "/api/continue")
		Expect(machine.State()).To(Equal(vm.StateRunning))
	})

	It("should step the machine", func() {
		machine.LoadProgram([]string{"NOP", "HALT"})
		machine.Start()

		rsp := get(m.stepMachine, "/api/step")
		Expect(rsp.Body.String()).To(Equal(`{"more":true}`))
		Expect(machine.GlobalClock()).To(Equal(uint64(1)))

		rsp = get(m.stepMachine, "/api/step")
		Expect(rsp.Body.String()).To(Equal(`{"more":false}`))
	})

	It("should list the processors", func() {
		rsp := get(m.listProcessors, "/api/list_processors")

		Expect(rsp.Body.String()).To(Equal("[0]"))
	})

	It("should serve machine statistics", func() {
		rsp := get(m.listMetrics, "/api/metrics")

		var stats map[string]any
		Expect(json.Unmarshal(rsp.Body.Bytes(), &stats)).To(Succeed())
		Expect(stats).To(HaveKey("state"))
		Expect(stats).To(HaveKey("instructions_executed"))
	})

	It("should filter traces by query parameters", func() {
		machine.LoadProgram([]string{"HALT"})
		machine.Run(0)

		rsp := get(m.listTraces, "/api/traces?type=INSTRUCTION")

		var events []map[string]any
		Expect(json.Unmarshal(rsp.Body.Bytes(), &events)).To(Succeed())
		Expect(events).To(HaveLen(1))
		Expect(events[0]["event_type"]).To(Equal("INSTRUCTION"))
	})

	It("should reject malformed processor filters", func() {
		rsp := get(m.listTraces, "/api/traces?processor_id=banana")

		Expect(rsp.Code).To(Equal(http.StatusBadRequest))
	})

	It("should serve the memory map", func() {
		rsp := get(m.memoryMap, "/api/memory_map")

		var segments []map[string]any
		Expect(json.Unmarshal(rsp.Body.Bytes(), &segments)).To(Succeed())
		Expect(segments).To(HaveLen(1))
		Expect(segments[0]["name"]).To(Equal("unified"))
	})

	It("should dump a memory region", func() {
		Expect(machine.Memory().WriteBytes(16, []byte{1, 2, 3, 4},
			mem.NoContext)).To(Succeed())

		r := mux.NewRouter()
		r.HandleFunc("/api/memory/{start}/{size}", m.dumpMemory)

		recorder := httptest.NewRecorder()
		r.ServeHTTP(recorder,
			httptest.NewRequest(http.MethodGet, "/api/memory/16/4", nil))

		var rsp map[string]any
		Expect(json.Unmarshal(recorder.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp["start"]).To(Equal(16.0))
		Expect(rsp["size"]).To(Equal(4.0))
	})

	It("should manage progress bars", func() {
		bar := m.CreateProgressBar("loading", 100)
		bar.IncrementFinished(10)

		rsp := get(m.listProgressBars, "/api/progress")

		var bars []map[string]any
		Expect(json.Unmarshal(rsp.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]["name"]).To(Equal("loading"))
		Expect(bars[0]["finished"]).To(Equal(10.0))

		m.CompleteProgressBar(bar)
		Expect(m.progressBars).To(BeEmpty())
	})

	It("should advance a tracked run bar as the machine cycles", func() {
		machine.LoadProgram([]string{"NOP", "NOP", "HALT"})

		bar := m.TrackRun("demo.asm", 3)
		Expect(bar.Completion()).To(Equal(0.0))

		machine.Run(0)

		Expect(bar.Finished).To(Equal(uint64(3)))
		Expect(bar.Completion()).To(Equal(1.0))

		rsp := get(m.listProgressBars, "/api/progress")

		var bars []map[string]any
		Expect(json.Unmarshal(rsp.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]["total"]).To(Equal(3.0))
		Expect(bars[0]["finished"]).To(Equal(3.0))

		m.CompleteProgressBar(bar)
		Expect(m.progressBars).To(BeEmpty())
	})
})
