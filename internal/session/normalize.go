package session

import (
	"encoding/json"
	"strings"
)

// outputKind tags a normalized line from an agent subprocess's stdout,
// mirroring §6.3's recognized shapes.
type outputKind string

const (
	outputText   outputKind = "text"
	outputTool   outputKind = "tool_use"
	outputResult outputKind = "tool_result"
	outputDone   outputKind = "done"
	outputSess   outputKind = "session"
	outputErr    outputKind = "error"
	outputRaw    outputKind = "raw"
)

// normalized is what normalizeLine reduces one subprocess stdout line to.
type normalized struct {
	kind      outputKind
	text      string
	toolName  string
	sessionID string
	costUSD   float64
	durationMS float64
}

const toolResultTruncateLen = 200

// normalizeLine parses one line of agent subprocess stdout into the shapes
// listed in §6.3. Lines that aren't JSON, or whose "type" isn't recognized,
// pass through as raw text rather than failing the session.
func normalizeLine(line string) normalized {
	line = strings.TrimSpace(line)
	if line == "" {
		return normalized{kind: outputRaw, text: line}
	}

	var generic map[string]any
	if err := json.Unmarshal([]byte(line), &generic); err != nil {
		return normalized{kind: outputRaw, text: line}
	}

	typ, _ := generic["type"].(string)
	switch typ {
	case "assistant", "message":
		return normalized{kind: outputText, text: extractContentText(generic)}

	case "content_block_delta":
		if delta, ok := generic["delta"].(map[string]any); ok {
			if dtype, _ := delta["type"].(string); dtype == "text_delta" {
				if text, ok := delta["text"].(string); ok {
					return normalized{kind: outputText, text: text}
				}
			}
		}
		return normalized{kind: outputRaw, text: line}

	case "tool_use", "tool_call":
		return normalized{kind: outputTool, toolName: extractToolName(generic)}

	case "tool_result", "tool_response":
		text := extractContentText(generic)
		if len(text) > toolResultTruncateLen {
			text = text[:toolResultTruncateLen]
		}
		return normalized{kind: outputResult, text: text}

	case "result", "done", "finish", "complete":
		n := normalized{kind: outputDone}
		if cost, ok := generic["total_cost_usd"].(float64); ok {
			n.costUSD = cost
		}
		if dur, ok := generic["duration_ms"].(float64); ok {
			n.durationMS = dur
		}
		return n

	case "system":
		if subtype, _ := generic["subtype"].(string); subtype == "init" {
			if id, ok := generic["session_id"].(string); ok && id != "" {
				return normalized{kind: outputSess, sessionID: id}
			}
		}
		return normalized{kind: outputRaw, text: line}

	case "session":
		for _, key := range []string{"session_id", "sessionID", "id"} {
			if id, ok := generic[key].(string); ok && id != "" {
				return normalized{kind: outputSess, sessionID: id}
			}
		}
		return normalized{kind: outputRaw, text: line}

	case "error":
		return normalized{kind: outputErr, text: extractContentText(generic)}

	default:
		return normalized{kind: outputRaw, text: line}
	}
}

// extractContentText pulls a display string out of the handful of shapes
// "content"/"message.content" can take: a bare string, or a list of
// Anthropic-style content blocks ({"type":"text","text":"..."}).
func extractContentText(m map[string]any) string {
	if s, ok := m["content"].(string); ok {
		return s
	}
	if msg, ok := m["message"].(map[string]any); ok {
		if s, ok := msg["content"].(string); ok {
			return s
		}
		if blocks, ok := msg["content"].([]any); ok {
			return joinTextBlocks(blocks)
		}
	}
	if blocks, ok := m["content"].([]any); ok {
		return joinTextBlocks(blocks)
	}
	if s, ok := m["error"].(string); ok {
		return s
	}
	return ""
}

func joinTextBlocks(blocks []any) string {
	var b strings.Builder
	for _, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := block["text"].(string); ok {
			b.WriteString(text)
		}
	}
	return b.String()
}

// extractToolName supports both the flat {"name":"..."} shape and the
// nested "<name>ToolCall" form some CLIs emit.
func extractToolName(m map[string]any) string {
	if name, ok := m["name"].(string); ok {
		return name
	}
	if call, ok := m["tool_call"].(map[string]any); ok {
		for key := range call {
			if strings.HasSuffix(key, "ToolCall") {
				return strings.TrimSuffix(key, "ToolCall")
			}
		}
	}
	return ""
}
