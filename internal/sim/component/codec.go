package component

import (
	"encoding/json"
	"fmt"
)

// Client-derived or local-only kinds are deliberately absent.
var wireKinds = map[string]func() Component{
	KindPosition:       func() Component { return &Position{} },
	KindSize:           func() Component { return &Size{} },
	KindItem:           func() Component { return &Item{} },
	KindTool:           func() Component { return &Tool{} },
	KindBlock:          func() Component { return &Block{} },
	KindPlayer:         func() Component { return &Player{} },
	KindPowerDevice:    func() Component { return &PowerDevice{} },
	KindPowerGenerator: func() Component { return &PowerGenerator{} },
	KindPowerConsumer:  func() Component { return &PowerConsumer{} },
}

// IsWireKind reports whether kind may be carried in a spawn message.
func IsWireKind(kind string) bool {
	_, ok := wireKinds[kind]
	return ok
}

type record struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// List is an ordered component payload that round-trips through JSON as
// tagged records.
type List []Component

func (l List) MarshalJSON() ([]byte, error) {
	out := make([]record, 0, len(l))
	for _, c := range l {
		if c == nil {
			continue
		}
		if !IsWireKind(c.Kind()) {
			return nil, fmt.Errorf("component %s is not transferable", c.Kind())
		}
		b, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", c.Kind(), err)
		}
		out = append(out, record{Kind: c.Kind(), Data: b})
	}
	return json.Marshal(out)
}

func (l *List) UnmarshalJSON(b []byte) error {
	var recs []record
	if err := json.Unmarshal(b, &recs); err != nil {
		return err
	}
	out := make(List, 0, len(recs))
	for _, r := range recs {
		mk, ok := wireKinds[r.Kind]
		if !ok {
			return fmt.Errorf("unknown component kind %q", r.Kind)
		}
		c := mk()
		if len(r.Data) > 0 {
			if err := json.Unmarshal(r.Data, c); err != nil {
				return fmt.Errorf("component %s: %w", r.Kind, err)
			}
		}
		out = append(out, c)
	}
	*l = out
	return nil
}
