package debug

import (
	"encoding/json"
	"fmt"
	"os"
)

// Logf writes a formatted trace line to stderr. Arguments that are decoded
// JSON values or raw JSON are rendered indented.
func Logf(msg string, args ...any) {
	for i := range args {
		a := args[i]
		switch x := a.(type) {
		case map[string]any, []any, json.Number:
			d, err := json.MarshalIndent(a, "   |", "  ")
			if err != nil {
				args[i] = fmt.Sprintf("%v", a)
				continue
			}
			args[i] = string(d)
		case json.RawMessage:
			var v any
			if err := json.Unmarshal(x, &v); err != nil {
				args[i] = string(x)
				continue
			}
			d, _ := json.MarshalIndent(v, "   |", "  ")
			args[i] = string(d)
		}
	}
	fmt.Fprintf(os.Stderr, msg, args...)
}
