package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
)

// KnownTargets returns the database targets that ship a worker.
func KnownTargets() []string {
	return []string{"postgres", "mariadb"}
}

// CheckTarget rejects a target that is neither a known database nor a
// worker path.
func CheckTarget(target string) error {
	if isPathTarget(target) || slices.Contains(KnownTargets(), target) {
		return nil
	}

	return fmt.Errorf("unknown target %q (want one of %s, or a worker path)",
		target, strings.Join(KnownTargets(), ", "))
}

func isPathTarget(target string) bool {
	return strings.HasSuffix(target, ".js") || strings.ContainsRune(target, os.PathSeparator)
}

// ResolveBinary returns the expected worker path for a target given the
// harnesses root directory. A target may also name a script (ending in .js)
// or an executable path directly.
func ResolveBinary(harnessesDir, target string) string {
	if isPathTarget(target) {
		return target
	}

	return filepath.Join(harnessesDir, target, target+"-worker")
}

// Build compiles the worker binary for a target.
func Build(
	ctx context.Context,
	logger *slog.Logger,
	harnessesDir string,
	target string,
) (string, error) {
	srcDir := filepath.Join(harnessesDir, target)
	binPath := ResolveBinary(harnessesDir, target)

	if isPathTarget(target) {
		return binPath, nil
	}

	logger.InfoContext(ctx, "building worker",
		slog.String("target", target),
		slog.String("source_dir", srcDir),
	)

	cmd := exec.CommandContext(ctx, "go", "build", "-o", binPath, ".")
	cmd.Dir = srcDir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build %s: %w", target, err)
	}

	if _, err := os.Stat(binPath); err != nil {
		return "", fmt.Errorf(
			"build %s: binary not found at %s", target, binPath,
		)
	}

	logger.InfoContext(ctx, "worker built",
		slog.String("target", target),
		slog.String("binary", binPath),
	)

	return binPath, nil
}

// CommandConfig holds the resolved command and extra arguments needed to
// run a worker.
type CommandConfig struct {
	Binary    string
	ExtraArgs []string
}

// WrapCommand returns the exec configuration needed to run a worker. Go
// workers run directly; JavaScript workers run under node.
func WrapCommand(binPath string) CommandConfig {
	if strings.HasSuffix(binPath, ".js") {
		return CommandConfig{
			Binary:    "node",
			ExtraArgs: []string{binPath},
		}
	}

	return CommandConfig{Binary: binPath}
}
