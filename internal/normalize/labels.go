package normalize

import (
	"strings"
	"unicode"
)

var toolLabels = map[string]string{
	"stamp_data":       "Stamp Data",
	"verify_data":      "Verify Data",
	"health":           "Health Check",
	"ready":            "Readiness Check",
	"stamp_hash":       "Stamp Hash",
	"validate_hash":    "Validate Hash",
	"get_stamp_status": "Check Stamp Status",
	"resolve_proof":    "Resolve Proof",
}

// Label returns the human-readable label for a tool name. Unknown names have
// underscores replaced by spaces and the first letter of each word upper-cased.
func Label(name string) string {
	if name == "" {
		return "Tool"
	}
	if label, ok := toolLabels[name]; ok {
		return label
	}

	runes := []rune(strings.ReplaceAll(name, "_", " "))
	for i, r := range runes {
		if isWordRune(r) && (i == 0 || !isWordRune(runes[i-1])) {
			runes[i] = unicode.ToUpper(r)
		}
	}
	return string(runes)
}

func isWordRune(r rune) bool {
	return r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}

// ToolKind groups tool names whose results share a link layout.
type ToolKind int

const (
	KindOther ToolKind = iota
	KindStamp
	KindVerify
)

// Classify maps a tool name onto the stamp/verify families whose results
// carry proof and verification links.
func Classify(name string) ToolKind {
	switch {
	case strings.HasPrefix(name, "stamp"):
		return KindStamp
	case strings.HasPrefix(name, "verify"), strings.HasPrefix(name, "validate"):
		return KindVerify
	default:
		return KindOther
	}
}
