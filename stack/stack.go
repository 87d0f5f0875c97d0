// Package stack implements the operand stack used to stage arguments and
// collect results.
package stack

import (
	"github.com/wippyai/wasm-executor/errors"
	"github.com/wippyai/wasm-executor/value"
)

// Stack is a LIFO container of values. It is not safe for concurrent use.
type Stack struct {
	values []value.Value
}

// New creates an empty stack.
func New() *Stack {
	return &Stack{values: make([]value.Value, 0, 16)}
}

// Push moves v onto the top of the stack.
func (s *Stack) Push(v value.Value) {
	s.values = append(s.values, v)
}

// Pop removes and returns the top value.
func (s *Stack) Pop() (value.Value, error) {
	n := len(s.values)
	if n == 0 {
		return value.Value{}, errors.StackEmpty()
	}
	v := s.values[n-1]
	s.values[n-1] = value.Value{}
	s.values = s.values[:n-1]
	return v, nil
}

// Peek returns the top value without removing it.
func (s *Stack) Peek() (value.Value, bool) {
	if len(s.values) == 0 {
		return value.Value{}, false
	}
	return s.values[len(s.values)-1], true
}

// Size returns the current depth.
func (s *Stack) Size() int {
	return len(s.values)
}

// Values returns a copy of the stack contents, bottom first.
func (s *Stack) Values() []value.Value {
	out := make([]value.Value, len(s.values))
	copy(out, s.values)
	return out
}

// Reset empties the stack.
func (s *Stack) Reset() {
	clear(s.values)
	s.values = s.values[:0]
}
