// File: cmd/output.go
package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// emitJSON writes v to stdout as indented JSON. Command results go to
// stdout; all logging stays on stderr so output remains pipeable.
func emitJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emitLines prints one value per line.
func emitLines(lines []string) {
	for _, line := range lines {
		fmt.Println(line)
	}
}
