package conversation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/deskmate-ai/deskmate/logging"
)

// FallbackNotice replaces an empty final text when a turn completes without
// any assistant prose, for example when the model only issued tool calls.
const FallbackNotice = "I processed the request using my tools, but I don't have a final text response to share yet."

// RenderedActivity is the rendered outcome of one turn: formatted tool
// activity entries in arrival order plus the accumulated final text.
type RenderedActivity struct {
	ToolActivity []string `json:"tool_activity"`
	FinalText    string   `json:"final_text"`
}

// RendererOptions configures a Renderer.
type RendererOptions struct {
	Logger logging.Logger
}

// Renderer converts classified events into human-readable fragments. Payload
// irregularities never fail a turn; anything that does not parse as
// structured data renders as literal text.
type Renderer struct {
	logger logging.Logger
}

// NewRenderer constructs a Renderer.
func NewRenderer(optFns ...func(o *RendererOptions)) *Renderer {
	opts := RendererOptions{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Renderer{logger: opts.Logger}
}

// Consume drains the turn, rendering events in arrival order. On runner
// failure it returns the activity rendered so far together with the error;
// the final text then stays empty.
func (r *Renderer) Consume(turn *Turn) (RenderedActivity, error) {
	out := RenderedActivity{ToolActivity: []string{}}
	var text strings.Builder

	for turn.Next() {
		r.renderInto(&out, &text, turn.Event())
	}

	if err := turn.Err(); err != nil {
		return out, err
	}

	out.FinalText = text.String()
	if out.FinalText == "" {
		out.FinalText = FallbackNotice
	}

	return out, nil
}

// RenderEvents renders an already materialized sequence. Rendering is pure:
// the same sequence always yields the same activity.
func (r *Renderer) RenderEvents(events []Event) RenderedActivity {
	out := RenderedActivity{ToolActivity: []string{}}
	var text strings.Builder

	for _, ev := range events {
		r.renderInto(&out, &text, ev)
	}

	out.FinalText = text.String()
	if out.FinalText == "" {
		out.FinalText = FallbackNotice
	}

	return out
}

func (r *Renderer) renderInto(out *RenderedActivity, text *strings.Builder, ev Event) {
	switch ev := ev.(type) {
	case ToolCall:
		out.ToolActivity = append(out.ToolActivity, r.renderToolCall(ev))
	case ToolResponse:
		out.ToolActivity = append(out.ToolActivity, r.renderToolResponse(ev))
	case TextChunk:
		text.WriteString(ev.Text)
	}
}

func (r *Renderer) renderToolCall(call ToolCall) string {
	block := call.RawArguments
	if call.Arguments != nil {
		if raw, err := json.Marshal(call.Arguments); err == nil {
			block = jsonBlock(raw)
		} else {
			r.logger.Debug("renderer.arguments.unserializable", "tool", call.Name, "error", err.Error())
		}
	} else {
		r.logger.Debug("renderer.arguments.literal", "tool", call.Name)
	}

	return fmt.Sprintf("Tool Call: `%s`\n%s", call.Name, block)
}

func (r *Renderer) renderToolResponse(resp ToolResponse) string {
	return fmt.Sprintf("Tool Response from `%s`\n%s", resp.Name, r.renderPayload(resp.Name, resp.Payload))
}

// renderPayload interprets the payload as structured data when possible. A
// non-empty array renders as record bullets, any other structure (object,
// empty array, scalar) as a formatted JSON block and anything unparseable as
// its literal text. The empty-array check must run before the bullet path so
// an empty result never renders as an empty list.
func (r *Renderer) renderPayload(toolName string, payload any) string {
	doc, ok := payloadJSON(payload)
	if !ok || !gjson.Valid(doc) {
		r.logger.Debug("renderer.payload.literal", "tool", toolName)
		return literalText(payload)
	}

	parsed := gjson.Parse(doc)
	if parsed.IsArray() {
		if records := parsed.Array(); len(records) > 0 {
			return renderRecords(records)
		}
	}

	return jsonBlock([]byte(doc))
}

// payloadJSON produces the JSON document form of a payload. Raw JSON and
// strings pass through untouched, keeping the document's field order; other
// values are marshaled.
func payloadJSON(payload any) (string, bool) {
	switch p := payload.(type) {
	case json.RawMessage:
		return string(p), true
	case string:
		return p, true
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", false
	}

	return string(raw), true
}

func literalText(payload any) string {
	switch p := payload.(type) {
	case json.RawMessage:
		return string(p)
	case string:
		return p
	}
	return fmt.Sprintf("%v", payload)
}

// renderRecords emits one bullet per record in sequence order.
func renderRecords(records []gjson.Result) string {
	lines := make([]string, 0, len(records))
	for _, record := range records {
		lines = append(lines, "- "+renderRecord(record))
	}
	return strings.Join(lines, "\n")
}

// renderRecord joins a record's fields as `field`: value pairs, skipping
// empty values. Non-record items render in their plain textual form.
func renderRecord(record gjson.Result) string {
	if !record.IsObject() {
		return record.String()
	}

	var pairs []string
	record.ForEach(func(key, value gjson.Result) bool {
		if emptyValue(value) {
			return true
		}
		pairs = append(pairs, fmt.Sprintf("`%s`: %s", key.String(), value.String()))
		return true
	})

	return strings.Join(pairs, ", ")
}

// emptyValue reports whether a field value carries no content: JSON null, an
// empty string or an empty container. Zero and false are values.
func emptyValue(v gjson.Result) bool {
	switch {
	case v.Type == gjson.Null:
		return true
	case v.Type == gjson.String:
		return v.Str == ""
	case v.IsArray():
		return len(v.Array()) == 0
	case v.IsObject():
		return len(v.Map()) == 0
	}
	return false
}

func jsonBlock(raw []byte) string {
	formatted := strings.TrimSpace(string(pretty.Pretty(raw)))
	return "```json\n" + formatted + "\n```"
}
