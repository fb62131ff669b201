// Package deps reports which external programs thinkaloud shells out to
// are installed.
package deps

import (
	"os/exec"
	"strings"
)

// Status represents the installation status of a dependency
type Status struct {
	Installed bool
	Path      string
	Version   string
}

// Tool is an external program and what it is needed for.
type Tool struct {
	Name        string
	VersionArgs []string
	Purpose     string
	Required    bool
}

// Tools lists every program used at runtime.
var Tools = []Tool{
	{Name: "pw-record", VersionArgs: []string{"--version"}, Purpose: "microphone capture", Required: true},
	{Name: "pw-cli", VersionArgs: []string{"--version"}, Purpose: "PipeWire availability check"},
	{Name: "notify-send", VersionArgs: []string{"--version"}, Purpose: "desktop notifications"},
	{Name: "wl-copy", VersionArgs: []string{"--version"}, Purpose: "clipboard on Wayland"},
	{Name: "wtype", Purpose: "typing the final text"},
}

var lookPath = exec.LookPath

// Check looks the tool up on PATH and, when it has a version flag, records
// the first line it prints.
func Check(tool Tool) Status {
	path, err := lookPath(tool.Name)
	if err != nil {
		return Status{Installed: false}
	}

	status := Status{
		Installed: true,
		Path:      path,
	}
	if len(tool.VersionArgs) == 0 {
		return status
	}

	output, err := exec.Command(path, tool.VersionArgs...).CombinedOutput()
	if err == nil {
		first, _, _ := strings.Cut(string(output), "\n")
		status.Version = strings.TrimSpace(first)
	}
	return status
}

// CheckAll returns the status of every entry in Tools, keyed by name.
func CheckAll() map[string]Status {
	result := make(map[string]Status, len(Tools))
	for _, tool := range Tools {
		result[tool.Name] = Check(tool)
	}
	return result
}
