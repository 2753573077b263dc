package enginectl

import (
	"bufio"
	"fmt"
	"io"
)

// maxOutputLine caps a single captured engine output line.
const maxOutputLine = 1024 * 1024

// drainPipe copies child process output line by line into the rotating
// log writer, optionally mirroring into the in-memory tail ring. It runs
// until the pipe closes; the child must never block on a full pipe.
func drainPipe(r io.Reader, w io.Writer, ring *outputRing) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxOutputLine)
	for scanner.Scan() {
		line := scanner.Text()
		if w != nil {
			_, _ = fmt.Fprintln(w, line)
		}
		if ring != nil {
			ring.Add(line)
		}
	}
}
