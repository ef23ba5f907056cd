// Package assert panics when a value the program built itself is malformed.
// It is not for validating input.
package assert

import (
	"fmt"
)

func Length(value string, expected int) {
	if len(value) != expected {
		msg := fmt.Sprintf("assert.Length expected %d actual %d", expected, len(value))
		panic(msg)
	}
}

// Positive panics unless id identifies a stored record
func Positive(name string, id int64) {
	if id <= 0 {
		panic(fmt.Sprintf("assert.Positive %s must be positive, got %d", name, id))
	}
}
