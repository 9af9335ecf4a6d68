package content

import (
	"fmt"
	"strings"
	"time"
)

// Kind names an independent generation pipeline.
type Kind string

const (
	KindAdvice          Kind = "advice"
	KindVirtualEvidence Kind = "virtual_evidence"
)

var Kinds = []Kind{KindAdvice, KindVirtualEvidence}

func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindAdvice, KindVirtualEvidence:
		return k, true
	case "virtual-evidence", "evidence":
		return KindVirtualEvidence, true
	}
	return "", false
}

func (k Kind) Valid() bool { return k == KindAdvice || k == KindVirtualEvidence }

func (k Kind) String() string { return string(k) }

const versionLayout = "20060102T150405.000000Z"

// NewVersionID returns "<kind>-<utc timestamp>" which sorts chronologically within a kind.
func NewVersionID(kind Kind, at time.Time) string {
	return fmt.Sprintf("%s-%s", kind, at.UTC().Format(versionLayout))
}
