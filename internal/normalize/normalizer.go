// Package normalize turns heterogeneous MCP host envelopes into presentational
// blocks, result links and a final text.
//
// The host's tool result shape changed across versions without a version
// flag, so links are located by an ordered list of extractors, each of which
// recognises one known shape and ignores the rest.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/xiaot623/integritas/internal/domain"
)

// ParsePolicy controls what happens when a JSON-looking tool content text
// fails to parse during link extraction.
type ParsePolicy int

const (
	// ParseSilent treats the failure as "no links found".
	ParseSilent ParsePolicy = iota
	// ParseWarn additionally logs the failure and reports it in Result.Warnings.
	ParseWarn
)

// ParsePolicyFromString maps "warn" to ParseWarn and anything else to ParseSilent.
func ParsePolicyFromString(s string) ParsePolicy {
	if strings.EqualFold(strings.TrimSpace(s), "warn") {
		return ParseWarn
	}
	return ParseSilent
}

// Result is a normalized host response.
type Result struct {
	Blocks    []domain.Block
	Links     []domain.Link
	FinalText string
	Warnings  []string
}

// Normalizer converts host envelopes.
type Normalizer struct {
	policy     ParsePolicy
	extractors []LinkExtractor
}

// New creates a Normalizer. With no extractors, DefaultExtractors is used.
func New(policy ParsePolicy, extractors ...LinkExtractor) *Normalizer {
	if len(extractors) == 0 {
		extractors = DefaultExtractors
	}
	return &Normalizer{policy: policy, extractors: extractors}
}

// Normalize parses a raw host envelope. It fails only when body is not a JSON
// object; every nested shape mismatch degrades to missing blocks or links.
func (n *Normalizer) Normalize(body []byte) (Result, error) {
	env := asObject(body)
	if env == nil {
		return Result{}, domain.NewError(domain.ErrorMalformedResponse, "host response is not a JSON object", nil)
	}

	var res Result
	res.FinalText, _ = asString(env["finalText"])

	var links []domain.Link
	for _, raw := range asArray(env["tool_steps"]) {
		step := decodeStep(raw)
		label := Label(step.Name)

		res.Blocks = append(res.Blocks,
			domain.HeadingBlock("Tool"),
			domain.ToolInfoBlock(fmt.Sprintf("I used a tool called %s via the Integritas API.", label)),
			domain.ToolJSONBlock(ToolJSON(step.Result)),
		)
		links = append(links, n.stepLinks(step, &res)...)
	}
	links = append(links, linkArray(env["links"])...)

	res.Links = dedupe(links)
	return res, nil
}

// NormalizeEnvelope normalizes an already decoded envelope.
func (n *Normalizer) NormalizeEnvelope(env domain.HostResponse) (Result, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return n.Normalize(body)
}

// stepLinks runs the extractors over result.structuredContent, then over the
// structuredContent of a JSON envelope embedded in result.content[0].text.
func (n *Normalizer) stepLinks(step domain.ToolStep, res *Result) []domain.Link {
	kind := Classify(step.Name)
	result := asObject(step.Result)

	links := n.extract(kind, asObject(result["structuredContent"]))

	text, ok := asString(asObject(firstElem(result["content"]))["text"])
	if !ok || !strings.HasPrefix(strings.TrimSpace(text), "{") {
		return links
	}
	var parsed Object
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		if n.policy == ParseWarn {
			msg := fmt.Sprintf("tool step %q returned content text that is not valid JSON: %v", step.Name, err)
			log.Printf("WARN: %s", msg)
			res.Warnings = append(res.Warnings, msg)
		}
		return links
	}
	return append(links, n.extract(kind, asObject(parsed["structuredContent"]))...)
}

func (n *Normalizer) extract(kind ToolKind, sc Object) []domain.Link {
	if sc == nil {
		return nil
	}
	var links []domain.Link
	for _, extractor := range n.extractors {
		links = append(links, extractor(kind, sc)...)
	}
	return links
}

// ToolJSON pretty-prints a tool result, preferring result.structuredContent.
// Key order of the original payload is preserved.
func ToolJSON(result json.RawMessage) string {
	if isNull(result) {
		return "{}"
	}
	payload := result
	if sc, ok := asObject(result)["structuredContent"]; ok && !isNull(sc) {
		payload = sc
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err == nil {
		return buf.String()
	}
	buf.Reset()
	if err := json.Indent(&buf, result, "", "  "); err == nil {
		return buf.String()
	}
	return string(result)
}

// decodeStep reads the fields of a tool step whose types match; anything else
// is left empty.
func decodeStep(raw json.RawMessage) domain.ToolStep {
	obj := asObject(raw)
	var step domain.ToolStep
	step.Name, _ = asString(obj["name"])
	step.UID, _ = asString(obj["uid"])
	step.TxID, _ = asString(obj["tx_id"])
	step.Args = obj["args"]
	step.Result = obj["result"]
	return step
}

func firstElem(raw json.RawMessage) json.RawMessage {
	arr := asArray(raw)
	if len(arr) == 0 {
		return nil
	}
	return arr[0]
}

// dedupe keeps the first link seen for each href.
func dedupe(links []domain.Link) []domain.Link {
	seen := make(map[string]bool, len(links))
	out := make([]domain.Link, 0, len(links))
	for _, l := range links {
		if seen[l.Href] {
			continue
		}
		seen[l.Href] = true
		out = append(out, l)
	}
	return out
}
