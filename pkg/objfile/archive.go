package objfile

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Archive lists and extracts the members of a static library.
type Archive interface {
	Members(ctx context.Context) ([]string, error)
	Member(ctx context.Context, name string) ([]byte, error)
}

// ArTool reads archives through the binutils ar program.
type ArTool struct {
	Path string
	// Bin is the ar executable, "ar" when empty.
	Bin string
}

func NewArTool(path string) *ArTool {
	return &ArTool{Path: path}
}

func (a *ArTool) Members(ctx context.Context) ([]string, error) {
	out, err := a.run(ctx, "t", a.Path)
	if err != nil {
		return nil, err
	}
	return strings.Fields(string(out)), nil
}

func (a *ArTool) Member(ctx context.Context, name string) ([]byte, error) {
	return a.run(ctx, "p", a.Path, name)
}

func (a *ArTool) run(ctx context.Context, args ...string) ([]byte, error) {
	bin := a.Bin
	if bin == "" {
		bin = "ar"
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "%s %s: %s", bin, strings.Join(args, " "), strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
