package aggregate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Flatten reads every numeric leaf of a JSON document into dotted paths.
// Non-numeric leaves and nulls are skipped.
func Flatten(doc []byte) (map[string]float64, error) {
	out := map[string]float64{}
	if len(bytes.TrimSpace(doc)) == 0 {
		return out, nil
	}

	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("flatten metrics document: %w", err)
	}
	walk("", root, out)
	return out, nil
}

func walk(prefix string, node any, out map[string]float64) {
	switch v := node.(type) {
	case map[string]any:
		for key, child := range v {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			walk(path, child, out)
		}
	case json.Number:
		if f, err := v.Float64(); err == nil {
			out[prefix] = f
		}
	}
}
