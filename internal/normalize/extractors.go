package normalize

import (
	"bytes"
	"encoding/json"

	"github.com/xiaot623/integritas/internal/domain"
)

// Object is a lazily decoded JSON object.
type Object map[string]json.RawMessage

// LinkExtractor inspects one structured-content object and returns the links
// it recognises. It returns nil when the object does not have its shape.
type LinkExtractor func(kind ToolKind, sc Object) []domain.Link

// DefaultExtractors lists the known envelope shapes, newest first.
var DefaultExtractors = []LinkExtractor{
	envelopeLinks,
	directDataURL,
	nestedRawURL,
}

// envelopeLinks reads structuredContent.links[].
func envelopeLinks(_ ToolKind, sc Object) []domain.Link {
	return linkArray(sc["links"])
}

// directDataURL reads structuredContent.data.proof_url for stamps and
// structuredContent.data.verification_url for verifications.
func directDataURL(kind ToolKind, sc Object) []domain.Link {
	data := asObject(sc["data"])
	switch kind {
	case KindStamp:
		return linkFrom(data["proof_url"], proofLabel, proofRel)
	case KindVerify:
		return linkFrom(data["verification_url"], verificationLabel, verificationRel)
	}
	return nil
}

// nestedRawURL reads the legacy data.raw.data payloads.
func nestedRawURL(kind ToolKind, sc Object) []domain.Link {
	raw := asObject(asObject(asObject(sc["data"])["raw"])["data"])
	switch kind {
	case KindStamp:
		return linkFrom(asObject(raw["proofFile"])["download_url"], proofLabel, proofRel)
	case KindVerify:
		return linkFrom(asObject(raw["file"])["download_url"], verificationLabel, verificationRel)
	}
	return nil
}

const (
	proofLabel        = "Download proof"
	proofRel          = "proof"
	verificationLabel = "View verification"
	verificationRel   = "verification"
)

func linkFrom(href json.RawMessage, label, rel string) []domain.Link {
	s, ok := asString(href)
	if !ok || s == "" {
		return nil
	}
	return []domain.Link{{Href: s, Label: label, Rel: rel}}
}

// linkArray decodes an array of {href, label?, rel?} objects, skipping
// entries without a string href.
func linkArray(raw json.RawMessage) []domain.Link {
	var links []domain.Link
	for _, item := range asArray(raw) {
		obj := asObject(item)
		href, ok := asString(obj["href"])
		if !ok || href == "" {
			continue
		}
		label, _ := asString(obj["label"])
		rel, _ := asString(obj["rel"])
		links = append(links, domain.Link{Href: href, Label: label, Rel: rel})
	}
	return links
}

func asObject(raw json.RawMessage) Object {
	if !startsWith(raw, '{') {
		return nil
	}
	var obj Object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}

func asArray(raw json.RawMessage) []json.RawMessage {
	if !startsWith(raw, '[') {
		return nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil
	}
	return arr
}

func asString(raw json.RawMessage) (string, bool) {
	if !startsWith(raw, '"') {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func startsWith(raw json.RawMessage, c byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == c
}
