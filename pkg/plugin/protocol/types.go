// Package protocol defines the newline-delimited JSON protocol spoken between
// the automation client and the plugin server running inside the CAD host.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Command names understood by the plugin.
const (
	CommandGetDesignInfo         = "get_design_info"
	CommandGetComponentHierarchy = "get_component_hierarchy"
	CommandCreateSketch          = "create_sketch"
	CommandCreateRectangle       = "create_rectangle"
	CommandCreateCircle          = "create_circle"
	CommandCreateExtrude         = "create_extrude"
	CommandGetSketches           = "get_sketches"
	CommandGetFeatures           = "get_features"
	CommandDrawLine              = "draw_line"
	CommandDrawArc               = "draw_arc"
	CommandDrawPolygon           = "draw_polygon"
)

// ErrMissingCommand is returned for a request without a command name.
var ErrMissingCommand = errors.New("Missing command parameter")

// Command is a single request: a command name and its parameter bag.
type Command struct {
	Name   string         `json:"command"`
	Params map[string]any `json:"params"`
}

// NewCommand creates a command with a non-nil parameter bag.
func NewCommand(name string, params map[string]any) *Command {
	if params == nil {
		params = map[string]any{}
	}
	return &Command{Name: name, Params: params}
}

// Validate checks the command has a name.
func (c *Command) Validate() error {
	if c.Name == "" {
		return ErrMissingCommand
	}
	return nil
}

// Response is the reply to a Command. On the wire it is a flat JSON object:
// {"success": true, ...data} or {"error": "<message>", ...data}.
type Response struct {
	Success bool
	Error   string
	Data    map[string]any
}

// Success builds a successful response carrying data.
func Success(data map[string]any) Response {
	if data == nil {
		data = map[string]any{}
	}
	return Response{Success: true, Data: data}
}

// Failure builds an error response.
func Failure(format string, args ...any) Response {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return Response{Error: msg}
}

// Failed reports whether the response is not a success.
func (r Response) Failed() bool {
	return !r.Success
}

// Get returns a data field.
func (r Response) Get(key string) (any, bool) {
	v, ok := r.Data[key]
	return v, ok
}

// With returns a copy of r with an extra data field.
func (r Response) With(key string, value any) Response {
	data := make(map[string]any, len(r.Data)+1)
	for k, v := range r.Data {
		data[k] = v
	}
	data[key] = value
	r.Data = data
	return r
}

// Map returns the flattened wire form as a map.
func (r Response) Map() map[string]any {
	out := make(map[string]any, len(r.Data)+1)
	for k, v := range r.Data {
		out[k] = v
	}
	if r.Error != "" {
		out["error"] = r.Error
		delete(out, "success")
	} else if r.Success {
		out["success"] = true
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (r Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// UnmarshalJSON implements json.Unmarshaler. An "error" field that is a
// boolean true (a handled failure report) takes its text from "message".
func (r *Response) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("invalid response: not an object")
	}

	*r = Response{}
	if v, ok := raw["success"].(bool); ok {
		r.Success = v
		delete(raw, "success")
	}
	switch v := raw["error"].(type) {
	case string:
		r.Error = v
		r.Success = false
		delete(raw, "error")
	case bool:
		if v {
			r.Success = false
			r.Error = "unknown error"
			if msg, ok := raw["message"].(string); ok && msg != "" {
				r.Error = msg
			}
		}
		delete(raw, "error")
	}
	r.Data = raw
	return nil
}

// ParseParams converts a parameter bag into a typed struct. Fields already
// set on target are kept when the bag does not name them.
func ParseParams(params map[string]any, target any) error {
	if len(params) == 0 {
		return nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to parse params: %w", err)
	}
	if err := json.Unmarshal(b, target); err != nil {
		return fmt.Errorf("failed to parse params: %w", err)
	}
	return nil
}
