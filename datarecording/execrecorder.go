package datarecording

import (
	"os"
	"strings"
	"time"
)

const execTimeFormat = "2006-01-02 15:04:05.000000000"

type execInfo struct {
	Property string
	Value    string
}

// ExecRecorder records how a run was launched into the exec_info table.
type ExecRecorder struct {
	tableName string
	recorder  DataRecorder
	entries   []execInfo
}

// NewExecRecorder creates the exec_info table on recorder.
func NewExecRecorder(recorder DataRecorder) (*ExecRecorder, error) {
	e := &ExecRecorder{
		tableName: "exec_info",
		recorder:  recorder,
	}

	if err := recorder.CreateTable(e.tableName, execInfo{}); err != nil {
		return nil, err
	}

	return e, nil
}

// Start notes the start time, the command line and the working directory.
func (e *ExecRecorder) Start() {
	e.Note("Start Time", time.Now().Format(execTimeFormat))
	e.Note("Command", strings.Join(os.Args, " "))

	if cwd, err := os.Getwd(); err == nil {
		e.Note("Working Directory", cwd)
	}
}

// Note adds a property that is written when the run ends.
func (e *ExecRecorder) Note(property, value string) {
	e.entries = append(e.entries, execInfo{Property: property, Value: value})
}

// End writes the collected properties along with the end time.
func (e *ExecRecorder) End() error {
	e.Note("End Time", time.Now().Format(execTimeFormat))

	for _, entry := range e.entries {
		if err := e.recorder.InsertData(e.tableName, entry); err != nil {
			return err
		}
	}
	e.entries = nil

	return e.recorder.Flush()
}
