package config

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// configSchema closes the document structure: unknown keys, wrong types and
// out-of-range values are rejected before the document is decoded.
// The telemetry section is validated by telemetry.Config instead.
const configSchema = `
#Duration: string | int

#Command: "get_design_info" | "get_component_hierarchy" | "create_sketch" |
	"create_rectangle" | "create_circle" | "create_extrude" | "get_sketches" |
	"get_features" | "draw_line" | "draw_arc" | "draw_polygon"

#Category: "plugin_comm" | "host_api" | "validation" | "resource" |
	"network" | "filesystem" | "config" | "unknown"

#Policy: {
	max_retries?:    int & >=0 & <=20
	initial_delay?:  #Duration
	backoff_factor?: number & >=1
	recoverable?:    bool
}

#Config: {
	server?: {
		host?:         string
		port?:         int & >=0 & <=65535
		idle_timeout?: #Duration
	}
	client?: {
		host?:            string
		port?:            int & >=1 & <=65535
		dial_timeout?:    #Duration
		timeout?:         #Duration
		reconnect_delay?: #Duration
	}
	bridge?: {
		use_plugin_mode?: bool
		retry?:           bool
		direct_commands?: [...#Command]
	}
	errors?: {
		max_history?:    int & >=1
		summary_window?: #Duration
		policies?: [#Category]: #Policy
	}
	activity?: {
		enabled?:           bool
		path?:              string
		max_open_conns?:    int & >=0
		conn_max_lifetime?: #Duration
	}
	telemetry?: {...}
	heartbeat_interval?: #Duration
}
`

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaVal  cue.Value
	schemaErr  error
)

func compiledSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		val := schemaCtx.CompileString(configSchema, cue.Filename("config.cue"))
		if err := val.Err(); err != nil {
			schemaErr = fmt.Errorf("failed to compile config schema: %w", err)
			return
		}
		schemaVal = val.LookupPath(cue.ParsePath("#Config"))
		schemaErr = schemaVal.Err()
	})
	return schemaCtx, schemaVal, schemaErr
}

// CheckSchema validates a decoded YAML document against the config schema.
func CheckSchema(doc map[string]any) error {
	if len(doc) == 0 {
		return nil
	}
	ctx, schema, err := compiledSchema()
	if err != nil {
		return err
	}

	data := ctx.Encode(doc)
	if err := data.Err(); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	unified := schema.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config schema violation: %w", err)
	}
	return nil
}
