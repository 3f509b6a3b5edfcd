package sandbox

import "fmt"

// Kind classifies a finished execution
type Kind int

const (
	KindSuccess Kind = iota
	KindExecutionFailure
	KindTimeout
	KindToolchainMissing
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindExecutionFailure:
		return "execution_failure"
	case KindTimeout:
		return "timeout"
	case KindToolchainMissing:
		return "toolchain_missing"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the raw result of running a build/run command.
//
// ExitCode is nil when the process did not complete on its own (timeout,
// output limit or missing toolchain). OutputTruncated means a stream went
// over the output cap and the process was killed. Detail holds the process error text, e.g. "exit status 1",
// and is only meant to be shown when both streams are empty.
type Outcome struct {
	Stdout           string
	Stderr           string
	ExitCode         *int
	TimedOut         bool
	OutputTruncated  bool
	ToolchainMissing bool
	Detail           string
}

// Kind returns the classification, toolchain-missing first, then timeout,
// then the exit status. A truncated run is always a failure.
func (o Outcome) Kind() Kind {
	switch {
	case o.ToolchainMissing:
		return KindToolchainMissing
	case o.TimedOut:
		return KindTimeout
	case o.OutputTruncated:
		return KindExecutionFailure
	case o.ExitCode != nil && *o.ExitCode == 0:
		return KindSuccess
	default:
		return KindExecutionFailure
	}
}

func exitCode(code int) *int {
	return &code
}
