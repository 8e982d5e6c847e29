/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: stack.go
Description: Failure chain rendering for the CrashGuard engine. Walks the wrapped
error chain to produce one ordered textual frame dump per failure, and carries
recovered panic values together with the goroutine stack captured at recovery time.
*/

package collect

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// PanicError wraps a value recovered from a panic, keeping the goroutine
// stack captured at the recovery site.
type PanicError struct {
	Value any
	Stack []byte
}

// RecoveredPanic builds a PanicError for a recover() value, capturing the
// current goroutine stack. Call it directly inside the deferred function so
// the stack still shows the panic site.
func RecoveredPanic(value any) *PanicError {
	return &PanicError{Value: value, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a wrapped error panic value so the chain walk continues
// through it.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// FormatErrorChain renders a failure and its full cause chain as text, one
// entry per wrapped failure, root cause last. A stack is appended for the
// outermost failure that carries one; plain wrapped errors contribute their
// message only, since Go errors do not record per-level stacks.
func FormatErrorChain(failure error) string {
	if failure == nil {
		failure = errors.New("report requested with no failure")
	}

	var b strings.Builder
	var stack []byte
	depth := 0
	for err := failure; err != nil; err = errors.Unwrap(err) {
		if depth > 0 {
			b.WriteString("caused by: ")
		}
		b.WriteString(err.Error())
		b.WriteByte('\n')
		var pe *PanicError
		if errors.As(err, &pe) && stack == nil {
			stack = pe.Stack
		}
		depth++
		// A cycle in Unwrap would loop forever; cap the walk.
		if depth >= 64 {
			b.WriteString("... cause chain truncated\n")
			break
		}
	}

	if stack == nil {
		stack = debug.Stack()
	}
	b.WriteByte('\n')
	b.Write(stack)
	return b.String()
}
