package remote

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Nodes are held in their generic JSON form (map[string]any, []any,
// float64, string, bool). Empty objects and arrays are never stored, so a
// node whose last child is removed reads as absent.

func toNode(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	var n any
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decoding value: %w", err)
	}
	return prune(n), nil
}

func prune(n any) any {
	switch v := n.(type) {
	case map[string]any:
		for k, child := range v {
			if c := prune(child); c == nil {
				delete(v, k)
			} else {
				v[k] = c
			}
		}
		if len(v) == 0 {
			return nil
		}
	case []any:
		if len(v) == 0 {
			return nil
		}
	}
	return n
}

func getAt(root any, segs []string) (any, bool) {
	cur := root
	for _, s := range segs {
		switch n := cur.(type) {
		case map[string]any:
			v, ok := n[s]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(s)
			if err != nil || i < 0 || i >= len(n) {
				return nil, false
			}
			cur = n[i]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// setAt returns root with the node at segs replaced by v; a nil v removes
// the node. Writing below an array turns the array into an index-keyed
// object, as the hosted database does.
func setAt(root any, segs []string, v any) any {
	if len(segs) == 0 {
		return v
	}

	var m map[string]any
	switch n := root.(type) {
	case map[string]any:
		m = n
	case []any:
		m = make(map[string]any, len(n))
		for i, e := range n {
			if e != nil {
				m[strconv.Itoa(i)] = e
			}
		}
	default:
		m = make(map[string]any)
	}

	child := setAt(m[segs[0]], segs[1:], v)
	if child == nil {
		delete(m, segs[0])
	} else {
		m[segs[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func decodeNode(n any, dst any) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding node: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding node: %w", err)
	}
	return nil
}
