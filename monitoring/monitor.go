// Package monitoring turns a virtual machine into a web server so that the
// machine can be observed and controlled while it runs.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/uemu/hooking"
	"github.com/sarchlab/uemu/tracing"
	"github.com/sarchlab/uemu/vm"
)

// Monitor can turn a virtual machine into a server and allows external
// monitoring and controlling of the machine.
type Monitor struct {
	machine     *vm.VirtualMachine
	portNumber  int
	openBrowser bool

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowserLaunch makes StartServer open the dashboard in the default
// browser.
func (m *Monitor) WithBrowserLaunch() *Monitor {
	m.openBrowser = true
	return m
}

// RegisterMachine registers the virtual machine to be monitored.
func (m *Monitor) RegisterMachine(machine *vm.VirtualMachine) {
	m.machine = machine
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// cycleProgressHook advances a progress bar by one for every executed
// machine cycle.
type cycleProgressHook struct {
	bar *ProgressBar
}

func (h cycleProgressHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos != hooking.HookPosAfterCycle {
		return
	}

	h.bar.IncrementFinished(1)
}

// TrackRun creates a progress bar that follows the machine's clock. The bar
// advances by one for each cycle the machine executes, with totalCycles as
// the expected budget (0 when the run is unbounded). Call
// CompleteProgressBar when the run ends.
func (m *Monitor) TrackRun(name string, totalCycles uint64) *ProgressBar {
	bar := m.CreateProgressBar(name, totalCycles)

	m.machine.AcceptHook(cycleProgressHook{bar: bar})

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars)-1)
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// StartServer starts the monitor as a web server with a custom port if wanted.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	r.HandleFunc("/api/state", m.state)
	r.HandleFunc("/api/pause", m.pauseMachine)
	r.HandleFunc("/api/continue", m.continueMachine)
	r.HandleFunc("/api/step", m.stepMachine)
	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/metrics", m.listMetrics)
	r.HandleFunc("/api/efficiency", m.listEfficiency)
	r.HandleFunc("/api/traces", m.listTraces)
	r.HandleFunc("/api/trace_statistics", m.traceStatistics)
	r.HandleFunc("/api/memory_map", m.memoryMap)
	r.HandleFunc("/api/memory/{start}/{size}", m.dumpMemory)
	r.HandleFunc("/api/access_pattern", m.accessPattern)
	r.HandleFunc("/api/list_processors", m.listProcessors)
	r.HandleFunc("/api/processor/{id}", m.listProcessorDetails)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring virtual machine with %s\n", url)

	if m.openBrowser {
		err = browser.OpenURL(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %s\n", err)
		}
	}

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"state\":\"%s\",\"clock\":%d}",
		m.machine.State(), m.machine.GlobalClock())
}

func (m *Monitor) pauseMachine(w http.ResponseWriter, _ *http.Request) {
	m.machine.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueMachine(w http.ResponseWriter, _ *http.Request) {
	m.machine.Start()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) stepMachine(w http.ResponseWriter, _ *http.Request) {
	more := m.machine.Step()
	fmt.Fprintf(w, "{\"more\":%t}", more)
}

func (m *Monitor) run(_ http.ResponseWriter, _ *http.Request) {
	go func() {
		m.machine.Run(0)
	}()
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%d}", m.machine.GlobalClock())
}

func (m *Monitor) listMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.machine.Statistics())
}

func (m *Monitor) listEfficiency(w http.ResponseWriter, _ *http.Request) {
	metrics := m.machine.Metrics()
	if metrics == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	writeJSON(w, metrics.EfficiencyAnalysis())
}

func (m *Monitor) listTraces(w http.ResponseWriter, r *http.Request) {
	q := tracing.EventQuery{}

	typeName := r.URL.Query().Get("type")
	if typeName != "" {
		et := tracing.EventTypeByName(typeName)
		q.Type = &et
	}

	processorStr := r.URL.Query().Get("processor_id")
	if processorStr != "" {
		pid, err := strconv.Atoi(processorStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Invalid processor ID: %s", processorStr)
			return
		}

		q.ProcessorID = &pid
	}

	threadID := r.URL.Query().Get("thread_id")
	if threadID != "" {
		q.ThreadID = &threadID
	}

	writeJSON(w, m.machine.TraceEvents(q))
}

func (m *Monitor) traceStatistics(w http.ResponseWriter, _ *http.Request) {
	tracer := m.machine.Tracer()
	if tracer == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	writeJSON(w, tracer.GetStatistics())
}

func (m *Monitor) memoryMap(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.machine.Memory().MemoryMap())
}

func (m *Monitor) dumpMemory(w http.ResponseWriter, r *http.Request) {
	start, err := strconv.ParseUint(mux.Vars(r)["start"], 0, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Invalid start address: %s", err)
		return
	}

	size, err := strconv.ParseUint(mux.Vars(r)["size"], 0, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Invalid size: %s", err)
		return
	}

	data, err := m.machine.Memory().DumpMemory(start, size)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	writeJSON(w, map[string]any{
		"start": start,
		"size":  size,
		"data":  data,
	})
}

func (m *Monitor) accessPattern(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.machine.Memory().AccessPattern())
}

func (m *Monitor) listProcessors(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "[")
	for i, p := range m.machine.Processors() {
		if i > 0 {
			fmt.Fprint(w, ",")
		}

		fmt.Fprintf(w, "%d", p.ID())
	}
	fmt.Fprint(w, "]")
}

func (m *Monitor) listProcessorDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Invalid processor ID: %s", err)
		return
	}

	p := m.machine.Processor(id)
	if p == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err = w.Write([]byte("Processor not found"))
		dieOnErr(err)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(p)
	serializer.SetMaxDepth(1)
	err = serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
