package injector

// Result is the outcome of one module injection
type Result int

const (
	// Succeeded the remote loader call completed
	Succeeded Result = iota
	// AllocationFailed no memory could be reserved in the target
	AllocationFailed
	// WriteFailed the module path could not be written into the target
	WriteFailed
	// ThreadCreationFailed the remote thread could not be started
	ThreadCreationFailed
	// LoaderReturnedFailure the loader ran but returned a NULL module handle
	LoaderReturnedFailure
	// TimedOut the remote thread did not finish in time
	TimedOut
)

func (r Result) String() string {
	switch r {
	case Succeeded:
		return "Succeeded"
	case AllocationFailed:
		return "AllocationFailed"
	case WriteFailed:
		return "WriteFailed"
	case ThreadCreationFailed:
		return "ThreadCreationFailed"
	case LoaderReturnedFailure:
		return "LoaderReturnedFailure"
	case TimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

// Outcome is the per-module report produced by Inject
type Outcome struct {
	Module       string
	Result       Result
	ModuleHandle uint32 // remote thread exit code, the low bits of the loaded HMODULE
	Err          error
}

// OK reports whether the module was injected
func (o Outcome) OK() bool {
	return o.Result == Succeeded
}
