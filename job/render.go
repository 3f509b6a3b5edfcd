package job

import (
	"fmt"
	"time"

	"github.com/isdmx/runbox/sandbox"
)

// OutputLimitMessage is appended to the kept output of a program that
// wrote more than the configured cap
const OutputLimitMessage = "Error: Output Limit Exceeded"

// TimeoutMessage is the text shown when a program exceeds timeout
func TimeoutMessage(timeout time.Duration) string {
	return fmt.Sprintf("Error: Execution Timed Out (Limit: %s)", formatLimit(timeout))
}

// Render turns an outcome into the text returned to the client
func Render(outcome sandbox.Outcome, missingToolchain string, timeout time.Duration) string {
	switch outcome.Kind() {
	case sandbox.KindToolchainMissing:
		return missingToolchain
	case sandbox.KindTimeout:
		return TimeoutMessage(timeout)
	case sandbox.KindSuccess:
		return combine(outcome.Stdout, outcome.Stderr, "Debug")
	default:
		combined := combine(outcome.Stdout, outcome.Stderr, "Error")
		if outcome.OutputTruncated {
			return combined + "\n" + OutputLimitMessage
		}
		if combined == "" {
			return outcome.Detail
		}
		return combined
	}
}

func combine(stdout, stderr, label string) string {
	if stderr == "" {
		return stdout
	}
	return stdout + "\n" + label + ":\n" + stderr
}

// formatLimit prints whole seconds as "5s" and anything else as a duration
func formatLimit(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return d.String()
}
