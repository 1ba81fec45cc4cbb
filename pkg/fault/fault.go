// Package fault is the single fatal-failure path of the sampler.
//
// Configuration errors, HAL failures, precondition violations and output
// overflows are all reported as *Fault values. They end up in Halt, which
// hands them to the process-wide handler installed with SetHandler.
package fault

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
)

// Fault kinds.
var (
	ErrConfig       = errors.New("invalid configuration")
	ErrHAL          = errors.New("hal failure")
	ErrPrecondition = errors.New("precondition violated")
	ErrOverflow     = errors.New("buffer overflow")
)

// Fault is a fatal condition raised by Step.
type Fault struct {
	Kind error  // One of the Err* kinds
	Step string // Name of the operation that failed
	Err  error  // Underlying cause, may be nil
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %v", f.Step, f.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", f.Step, f.Kind, f.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (f *Fault) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Err}
}

// Config returns a configuration fault.
func Config(step string, err error) *Fault {
	return &Fault{Kind: ErrConfig, Step: step, Err: err}
}

// HAL returns a fault for a failed hardware step.
func HAL(step string, err error) *Fault {
	return &Fault{Kind: ErrHAL, Step: step, Err: err}
}

// Precondition returns a precondition fault.
func Precondition(step string, msg string) *Fault {
	return &Fault{Kind: ErrPrecondition, Step: step, Err: errors.New(msg)}
}

// Overflow returns an output overflow fault.
func Overflow(step string, err error) *Fault {
	return &Fault{Kind: ErrOverflow, Step: step, Err: err}
}

// Assert panics with a precondition fault when cond is false.
func Assert(cond bool, step string, msg string) {
	if !cond {
		panic(Precondition(step, msg))
	}
}

// Handler receives a fault from Halt. Handlers are not expected to return.
type Handler func(f *Fault)

var (
	mu      sync.RWMutex
	handler Handler = exit
)

func exit(*Fault) {
	os.Exit(1)
}

// SetHandler installs the process-wide fatal handler. Call it once during
// startup, before any command runs. A nil handler restores the default, which
// exits the process.
func SetHandler(h Handler) {
	mu.Lock()
	defer mu.Unlock()
	if h == nil {
		h = exit
	}
	handler = h
}

// Halt reports f and passes it to the installed handler. If the handler
// returns, Halt returns f so callers can surface it as an error.
func Halt(f *Fault) error {
	log.Printf("Assertion Failed %q: %v", f.Step, f)

	mu.RLock()
	h := handler
	mu.RUnlock()

	h(f)
	return f
}

// Recover converts a *Fault panic into a Halt call and stores the fault in
// errp. It must be deferred directly. Other panics are re-raised.
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	f, ok := r.(*Fault)
	if !ok {
		panic(r)
	}
	err := Halt(f)
	if errp != nil {
		*errp = err
	}
}

// As extracts a *Fault from err.
func As(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
