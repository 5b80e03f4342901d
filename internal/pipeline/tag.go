// Package pipeline describes which extraction strategies run, in which
// order, and the thresholds that decide when to escalate between them.
//
// Every type here is an immutable value. Methods that "change" a
// configuration return a new value.
package pipeline

import (
	"fmt"
	"strings"
)

// Tag names an extraction tier. Tags are ordered by cost: a larger tag is
// more expensive and expected to be more accurate.
type Tag int

const (
	TagStructural Tag = iota + 1
	TagLayout
	TagOCR
	TagVision
)

var tagNames = map[Tag]string{
	TagStructural: "structural",
	TagLayout:     "layout",
	TagOCR:        "ocr",
	TagVision:     "vision",
}

// AllTags lists every tag in cost order.
func AllTags() []Tag { return []Tag{TagStructural, TagLayout, TagOCR, TagVision} }

func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return fmt.Sprintf("tag(%d)", int(t))
}

func (t Tag) Valid() bool {
	_, ok := tagNames[t]
	return ok
}

func (t Tag) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tag %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tag) UnmarshalText(b []byte) error {
	v, err := ParseTag(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseTag accepts a tag name case-insensitively.
func ParseTag(s string) (Tag, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range tagNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown strategy %q", s)
}
