// Package monitoring serves a running simulation over HTTP so that it can be
// inspected and advanced from a browser.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/quantsim/chrono/idgen"
	"github.com/quantsim/chrono/lifecycle"
	"github.com/quantsim/chrono/logging"
	"github.com/quantsim/chrono/monitoring/web"
	"github.com/quantsim/chrono/simulation"
	"github.com/quantsim/chrono/timing"
)

// ErrNotStarted is returned when the server is used before StartServer.
var ErrNotStarted = errors.New("monitoring: server not started")

// Monitor turns a simulation into a server and allows external monitoring
// and controlling of the simulation.
type Monitor struct {
	simulation *simulation.Simulation
	portNumber int
	ids        idgen.Generator

	server   *http.Server
	listener net.Listener

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor for s.
func NewMonitor(s *simulation.Simulation) *Monitor {
	return &Monitor{
		simulation: s,
		ids:        idgen.NewXID(),
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		m.log(logging.Warning, fmt.Sprintf(
			"port %d is not allowed for the monitor, using a random port",
			portNumber))
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		id:        m.ids.Generate(),
		name:      name,
		startTime: time.Now(),
		total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the dashboard.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the router serving the API and the dashboard.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now).Methods(http.MethodGet)
	r.HandleFunc("/api/timers", m.listTimers).Methods(http.MethodGet)
	r.HandleFunc("/api/advance/{to}", m.advance).Methods(http.MethodPost)
	r.HandleFunc("/api/components", m.listComponents).Methods(http.MethodGet)
	r.HandleFunc("/api/component/{name}", m.componentDetails).
		Methods(http.MethodGet)
	r.HandleFunc("/api/states", m.listTransitions).Methods(http.MethodGet)
	r.HandleFunc("/api/progress", m.listProgressBars).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background and returns the dashboard
// URL.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", fmt.Errorf("monitoring: listen on %s: %w", actualPort, err)
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log(logging.Error, "monitor stopped: "+err.Error())
		}
	}()

	url := m.URL()
	m.log(logging.Info, "monitoring simulation with "+url)

	return url, nil
}

// URL returns the address of the dashboard, or an empty string before the
// server starts.
func (m *Monitor) URL() string {
	if m.listener == nil {
		return ""
	}

	return fmt.Sprintf("http://localhost:%d",
		m.listener.Addr().(*net.TCPAddr).Port)
}

// OpenInBrowser opens the dashboard in the default browser.
func (m *Monitor) OpenInBrowser() error {
	if m.listener == nil {
		return ErrNotStarted
	}

	browser.Stdout = os.Stderr

	return browser.OpenURL(m.URL())
}

// Shutdown stops the server.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) log(level logging.Level, msg string) {
	m.simulation.Logger().Log(m.simulation.Now(), level, logging.Normal,
		"Monitor", msg)
}

type nowRsp struct {
	NowNs     uint64  `json:"now_ns"`
	Timestamp float64 `json:"timestamp"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.simulation.Now()

	writeJSON(w, http.StatusOK, nowRsp{
		NowNs:     now,
		Timestamp: timing.NanosToSecs(now),
	})
}

func (m *Monitor) listTimers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, m.simulation.Timers())
}

type eventRsp struct {
	Name    string `json:"name"`
	EventID string `json:"event_id"`
	TsEvent uint64 `json:"ts_event"`
	TsInit  uint64 `json:"ts_init"`
}

type advanceRsp struct {
	NowNs  uint64     `json:"now_ns"`
	Peek   bool       `json:"peek"`
	Events []eventRsp `json:"events"`
	Error  string     `json:"error,omitempty"`
}

func (m *Monitor) advance(w http.ResponseWriter, r *http.Request) {
	to, err := strconv.ParseUint(mux.Vars(r)["to"], 10, 64)
	if err != nil {
		http.Error(w, "invalid target time", http.StatusBadRequest)
		return
	}

	peek := r.URL.Query().Get("peek") == "true"

	var events []timing.TimeEvent
	if peek {
		events, err = m.simulation.Peek(to)
	} else {
		events, err = m.simulation.RunUntil(to)
	}

	if errors.Is(err, simulation.ErrTimeBackward) ||
		errors.Is(err, simulation.ErrRunInProgress) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	rsp := advanceRsp{
		NowNs:  m.simulation.Now(),
		Peek:   peek,
		Events: make([]eventRsp, 0, len(events)),
	}
	for _, e := range events {
		rsp.Events = append(rsp.Events, eventRsp{
			Name:    e.Name,
			EventID: e.EventID,
			TsEvent: e.TsEvent,
			TsInit:  e.TsInit,
		})
	}
	if err != nil {
		rsp.Error = err.Error()
	}

	writeJSON(w, http.StatusOK, rsp)
}

type componentRsp struct {
	Name  string                   `json:"name"`
	State lifecycle.ComponentState `json:"state"`
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	comps := m.simulation.Components()

	rsp := make([]componentRsp, 0, len(comps))
	for _, c := range comps {
		rsp = append(rsp, componentRsp{Name: c.Name(), State: c.State()})
	}

	writeJSON(w, http.StatusOK, rsp)
}

func (m *Monitor) componentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component, err := m.simulation.Component(name)
	if err != nil {
		http.Error(w, "Component not found", http.StatusNotFound)
		return
	}

	buf := bytes.NewBuffer(nil)
	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	if err := serializer.Serialize(buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

func (m *Monitor) listTransitions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, lifecycle.Transitions())
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	rsp := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		rsp = append(rsp, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, http.StatusOK, rsp)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

// profileDuration is how long /api/profile samples the CPU.
var profileDuration = time.Second

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, prof)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
