package manager

import (
	"fmt"
	"strings"
)

// Kind identifies a model family. Each kind has exactly one registry slot.
type Kind int

const (
	KindASR Kind = iota
	KindLLM
	KindClassifier
	numKinds
)

// Kinds lists every kind in slot order.
var Kinds = [numKinds]Kind{KindASR, KindLLM, KindClassifier}

func (k Kind) String() string {
	switch k {
	case KindASR:
		return "asr"
	case KindLLM:
		return "llm"
	case KindClassifier:
		return "classifier"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) valid() bool { return k >= 0 && k < numKinds }

// ParseKind maps a kind name ("asr", "llm", "classifier") to its Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asr":
		return KindASR, nil
	case "llm":
		return KindLLM, nil
	case "classifier":
		return KindClassifier, nil
	}
	return 0, fmt.Errorf("unknown model kind %q", s)
}
