package cmd

import (
	"bytes"
	"encoding/json"
	"io"
)

// ReadTool is the tool name of file reads in hook events.
const ReadTool = "Read"

// HookEvent is the JSON a Claude Code hook receives on stdin.
type HookEvent struct {
	SessionID     string    `json:"session_id"`
	HookEventName string    `json:"hook_event_name,omitempty"`
	ToolName      string    `json:"tool_name"`
	ToolInput     ToolInput `json:"tool_input"`
	IsSubagent    bool      `json:"is_subagent,omitempty"`
}

// ToolInput holds the Read arguments. Offset and Limit are kept raw since
// only their presence matters.
type ToolInput struct {
	FilePath string          `json:"file_path"`
	Offset   json.RawMessage `json:"offset,omitempty"`
	Limit    json.RawMessage `json:"limit,omitempty"`
}

// IsRead reports whether the event is a file read.
func (e HookEvent) IsRead() bool {
	return e.ToolName == ReadTool
}

// IsChunked reports whether the read asked for a slice of the file.
func (e HookEvent) IsChunked() bool {
	return present(e.ToolInput.Offset) || present(e.ToolInput.Limit)
}

func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// DecodeEvent reads one hook event.
func DecodeEvent(r io.Reader) (HookEvent, error) {
	var ev HookEvent
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return HookEvent{}, err
	}
	return ev, nil
}

// Output is the JSON written to stdout to stop a tool call.
type Output struct {
	Continue   bool   `json:"continue"`
	StopReason string `json:"stopReason,omitempty"`
}

// Result is what a hook decided for one event.
type Result struct {
	Deny       bool
	StopReason string
	// Notice is feedback written to stderr when the call proceeds.
	Notice string
}

// Write emits r in the hook protocol: a stop object on out for denials,
// otherwise the notice on errOut. Allowed reads with no notice are silent.
func (r Result) Write(out, errOut io.Writer) error {
	if r.Deny {
		data, err := json.Marshal(Output{Continue: false, StopReason: r.StopReason})
		if err != nil {
			return err
		}
		_, err = out.Write(append(data, '\n'))
		return err
	}
	if r.Notice != "" {
		_, err := io.WriteString(errOut, r.Notice+"\n")
		return err
	}
	return nil
}
