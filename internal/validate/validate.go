// Package validate runs shader source through an external GLSL
// validator binary (typically glslangValidator). The binary only reads
// files, so source text is staged through a temp file carrying the
// right suffix.
package validate

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// runTimeout bounds one validator invocation; a hung validator must not
// stall the build pipeline forever.
const runTimeout = 10 * time.Second

// CLI invokes a validator binary on disk.
type CLI struct {
	log *zap.Logger
}

func New(log *zap.Logger) *CLI {
	return &CLI{log: log.Named("validate")}
}

// Validate checks src against the shader stage implied by suffix.
// An empty validatorPath disables validation; live coding should not
// require the binary to be installed.
func (c *CLI) Validate(ctx context.Context, validatorPath, src, suffix string) error {
	if validatorPath == "" {
		c.log.Debug("no validator configured, skipping")
		return nil
	}
	tmp, err := os.CreateTemp("", "glslive-*"+suffix)
	if err != nil {
		return fmt.Errorf("staging shader for validation: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(src); err != nil {
		tmp.Close()
		return fmt.Errorf("staging shader for validation: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("staging shader for validation: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	cmd := exec.CommandContext(execCtx, validatorPath, tmp.Name())
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("shader validation failed: %s: %w", summarize(output), err)
	}
	return nil
}

// LoadFile reads a referenced shader file and validates it by its own
// suffix before returning the text.
func (c *CLI) LoadFile(ctx context.Context, validatorPath, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("loading referenced shader: %w", err)
	}
	src := string(raw)
	if err := c.Validate(ctx, validatorPath, src, filepath.Ext(path)); err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return src, nil
}

// summarize keeps validator output readable in a single log line.
func summarize(output []byte) string {
	s := strings.TrimSpace(string(output))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// glslangValidator prints the staged file name first; the error
		// lives on the following lines.
		if rest := strings.TrimSpace(s[i+1:]); rest != "" {
			s = rest
		}
	}
	s = strings.ReplaceAll(s, "\n", " | ")
	if len(s) > 400 {
		s = s[:400] + "..."
	}
	return s
}
