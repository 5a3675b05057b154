package cli

import (
	"fmt"
	"io"
	"os"
	"time"
)

// progressStep prints "<label>... done (1.2s)" around a long operation.
// A nil step is valid and prints nothing.
type progressStep struct {
	out     io.Writer
	started time.Time
}

func startProgress(out io.Writer, format string, args ...any) *progressStep {
	if !progressEnabled() {
		return nil
	}
	fmt.Fprintf(out, format+"... ", args...)
	return &progressStep{out: out, started: time.Now()}
}

// Finish ends the step with the outcome of the operation.
func (p *progressStep) Finish(err error) {
	if p == nil {
		return
	}
	if err != nil {
		fmt.Fprintf(p.out, "failed: %v\n", err)
		return
	}
	fmt.Fprintf(p.out, "done (%s)\n", roundElapsed(time.Since(p.started)))
}

func progressEnabled() bool {
	if IsJSONOutput() || noProgress {
		return false
	}
	for _, env := range []string{"TPLSYNC_NO_PROGRESS", "NO_PROGRESS"} {
		if _, ok := os.LookupEnv(env); ok {
			return false
		}
	}
	return true
}

func roundElapsed(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(10 * time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}
