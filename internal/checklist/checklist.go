// Package checklist converts between free-text checklists and the ordered
// item -> completed state stored for every checklist reply.
package checklist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/spetr/tobedo/pkg/types"
)

const (
	checkedBox   = "- [x] "
	uncheckedBox = "- [ ] "
)

var (
	bulletRe   = regexp.MustCompile(`^(?:[-*+•]|\d+[.)])(?:\s+|$)`)
	checkboxRe = regexp.MustCompile(`^\[([ xX])\]\s*`)
)

// Item is a single checklist entry.
type Item struct {
	Text      string
	Completed bool
}

// State is an ordered mapping from item text to its completion flag.
// Insertion order is the order items appeared in the source message.
type State struct {
	m *orderedmap.OrderedMap[string, bool]
}

// NewState returns an empty state.
func NewState() *State {
	return &State{m: orderedmap.New[string, bool]()}
}

// Set adds or updates an item. New items are appended.
func (s *State) Set(text string, completed bool) {
	s.m.Set(text, completed)
}

// Get returns the completion flag of an item.
func (s *State) Get(text string) (completed, ok bool) {
	return s.m.Get(text)
}

// Len returns the number of items.
func (s *State) Len() int {
	return s.m.Len()
}

// Items returns the items in order.
func (s *State) Items() []Item {
	items := make([]Item, 0, s.m.Len())
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		items = append(items, Item{Text: pair.Key, Completed: pair.Value})
	}
	return items
}

// Toggle flips the item at index and returns its new flag.
func (s *State) Toggle(index int) (bool, error) {
	if index < 0 || index >= s.m.Len() {
		return false, fmt.Errorf("%w: item index %d out of range [0,%d)", types.ErrInvalidInput, index, s.m.Len())
	}
	i := 0
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		if i == index {
			pair.Value = !pair.Value
			return pair.Value, nil
		}
		i++
	}
	return false, fmt.Errorf("%w: item index %d not found", types.ErrInvalidInput, index)
}

// MarshalJSON encodes the state as a JSON object preserving item order.
func (s *State) MarshalJSON() ([]byte, error) {
	return s.m.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object of booleans.
func (s *State) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

// Encode serializes the state for storage.
func Encode(s *State) ([]byte, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode checklist state: %w", err)
	}
	return data, nil
}

// Decode parses a stored state. Anything that is not a JSON object whose
// values are booleans is reported as types.ErrDataFormat.
func Decode(data []byte) (*State, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: checklist state is not a JSON object", types.ErrDataFormat)
	}

	m := orderedmap.New[string, bool]()
	if err := m.UnmarshalJSON(trimmed); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDataFormat, err)
	}
	return &State{m: m}, nil
}

// Validate reports types.ErrDataFormat for an item text that Render cannot
// write as a single line that parses back to the same text.
func (s *State) Validate() error {
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		if strings.Contains(pair.Key, "\n") {
			return fmt.Errorf("%w: item %q spans several lines", types.ErrDataFormat, pair.Key)
		}
		if item, ok := parseLine(uncheckedBox + pair.Key); !ok || item.Text != pair.Key {
			return fmt.Errorf("%w: item %q does not survive rendering", types.ErrDataFormat, pair.Key)
		}
	}
	return nil
}

// Parse turns message text into a checklist. Every non-blank line is an item.
// Leading list bullets and "[ ]"/"[x]" boxes are stripped; a checked box marks
// the item completed.
func Parse(text string) *State {
	s := NewState()
	for _, line := range strings.Split(text, "\n") {
		item, ok := parseLine(line)
		if !ok {
			continue
		}
		s.Set(item.Text, item.Completed)
	}
	return s
}

func parseLine(line string) (Item, bool) {
	line = strings.TrimSpace(line)
	line = bulletRe.ReplaceAllString(line, "")

	var item Item
	if m := checkboxRe.FindStringSubmatch(line); m != nil {
		item.Completed = m[1] != " "
		line = line[len(m[0]):]
	}

	item.Text = strings.TrimSpace(line)
	return item, item.Text != ""
}

// Render formats items as "- [x] text" / "- [ ] text" lines.
func Render(items []Item) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		if item.Completed {
			b.WriteString(checkedBox)
		} else {
			b.WriteString(uncheckedBox)
		}
		b.WriteString(item.Text)
	}
	return b.String()
}

// String renders the whole state.
func (s *State) String() string {
	return Render(s.Items())
}
