package hwi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const defaultBinary = "hwi"

// Runner runs an hwi command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

type execRunner struct {
	bin string
}

// NewRunner returns a runner executing the given hwi binary, or "hwi" from
// PATH if empty.
func NewRunner(bin string) Runner {
	if bin == "" {
		bin = defaultBinary
	}
	return &execRunner{bin}
}

func (r *execRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}

	// hwi reports device errors as json on stdout with a non zero exit code.
	if len(bytes.TrimSpace(out)) > 0 {
		return out, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return nil, fmt.Errorf("hwi: %s", s)
		}
	}
	return nil, fmt.Errorf("hwi: %w", err)
}
