// Package debug holds tracing switches read once from the environment.
//
// Each switch is enabled by setting the corresponding GSP_DEBUG_* variable
// to a value accepted by [strconv.ParseBool].
package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type debug struct {
	Encode    bool
	Decode    bool
	Diff      bool
	Transform bool
	Sync      bool
}

var d *debug

func init() {
	d = &debug{}
	d.Encode = boolEnv("GSP_DEBUG_ENCODE")
	d.Decode = boolEnv("GSP_DEBUG_DECODE")
	d.Diff = boolEnv("GSP_DEBUG_DIFF")
	d.Transform = boolEnv("GSP_DEBUG_TRANSFORM")
	d.Sync = boolEnv("GSP_DEBUG_SYNC")
}

func boolEnv(v string) bool {
	x := os.Getenv(v)
	if x == "" {
		return false
	}
	b, _ := strconv.ParseBool(x)
	return b
}

func Encode() bool {
	return d.Encode
}
func Decode() bool {
	return d.Decode
}
func Diff() bool {
	return d.Diff
}
func Transform() bool {
	return d.Transform
}
func Sync() bool {
	return d.Sync
}

func LogAny(v any) {
	d, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", v)
		return
	}
	os.Stderr.Write(d)
	os.Stderr.Write([]byte{'\n'})
}
