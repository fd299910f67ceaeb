// Package wyoming implements tts.Model backends that speak a Wyoming-style
// event protocol to a model server, either a resident worker process over
// stdin/stdout or a TCP server.
//
// Wire format (per event):
//
//	<json_length> <payload_length>\n
//	<json_bytes>\n
//	<payload_bytes>   (if payload_length > 0)
//
// Conversation:
//
//	load{model_dir,load_jit,load_trt,fp16}      -> info{sample_rate} | error{text}
//	synthesize{text,instruction,speed,rate,width,channels} + s16le prompt
//	                                            -> audio-start{rate,width,channels}
//	                                               audio-chunk{...} + s16le segment   (zero or more)
//	                                               audio-stop
//	                                            | error{text} at any point
package wyoming

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	eventLoad       = "load"
	eventInfo       = "info"
	eventSynthesize = "synthesize"
	eventAudioStart = "audio-start"
	eventAudioChunk = "audio-chunk"
	eventAudioStop  = "audio-stop"
	eventError      = "error"
)

// maxPayload bounds a single event payload (one audio segment).
const maxPayload = 256 << 20

type event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// writeEvent sends a Wyoming event.
func writeEvent(w io.Writer, evt event, payload []byte) error {
	jsonBytes, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	// Header, JSON and payload go out in one write so that a pipe reader
	// never sees a partial header.
	header := fmt.Sprintf("%d %d\n", len(jsonBytes), len(payload))
	buf := make([]byte, 0, len(header)+len(jsonBytes)+1+len(payload))
	buf = append(buf, header...)
	buf = append(buf, jsonBytes...)
	buf = append(buf, '\n')
	buf = append(buf, payload...)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing %s event: %w", evt.Type, err)
	}
	return nil
}

// readEvent reads a Wyoming event.
func readEvent(r *bufio.Reader) (*event, []byte, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	parts := strings.SplitN(strings.TrimSpace(line), " ", 2)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("invalid wyoming header: %q", line)
	}

	jsonLen, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || jsonLen < 0 {
		return nil, nil, fmt.Errorf("parsing json_length %q", parts[0])
	}
	payloadLen, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || payloadLen < 0 || payloadLen > maxPayload {
		return nil, nil, fmt.Errorf("parsing payload_length %q", parts[1])
	}

	// JSON plus its trailing newline.
	jsonBuf := make([]byte, jsonLen+1)
	if _, err := io.ReadFull(r, jsonBuf); err != nil {
		return nil, nil, fmt.Errorf("reading json: %w", err)
	}

	var evt event
	if err := json.Unmarshal(jsonBuf[:jsonLen], &evt); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling event: %w", err)
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, fmt.Errorf("reading payload: %w", err)
		}
	}

	return &evt, payload, nil
}

// intField reads a numeric field from decoded event data.
func intField(data map[string]any, key string, def int) int {
	if v, ok := data[key].(float64); ok {
		return int(v)
	}
	return def
}
