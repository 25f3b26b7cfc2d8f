package deps

import (
	"context"
	"os/exec"
	"strings"
)

// Requirement names one external binary and how to ask it for a version.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// VersionFlag, when set, is passed to the resolved binary and the first
	// line of output is recorded on the status.
	VersionFlag string
	Optional    bool
}

// Status is the outcome of probing one Requirement. Path is the resolved
// executable and is empty when the binary was not found.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Version     string
	Detail      string
}

// Summary is a one-line description suitable for status output.
func (s Status) Summary() string {
	switch {
	case !s.Available:
		return s.Detail
	case s.Version != "":
		return s.Path + " (" + s.Version + ")"
	case s.Detail != "":
		return s.Detail
	default:
		return s.Path
	}
}

// CheckBinaries resolves each requirement on PATH, in order.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		status.Path, status.Detail = resolve(status.Command)
		status.Available = status.Path != ""
		if status.Available && req.VersionFlag != "" {
			status.Version = Version(ctx, status.Path, req.VersionFlag)
		}
		results = append(results, status)
	}
	return results
}

// resolve returns the executable path for command, or an operator-facing
// reason it cannot be used.
func resolve(command string) (string, string) {
	if command == "" {
		return "", "command not configured"
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return "", command + " not on PATH"
	}
	return path, ""
}
