package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-rod/rod/lib/launcher"

	"github.com/alnah/go-html2pdf/internal/config"
	"github.com/alnah/go-html2pdf/internal/hints"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string     `json:"status"` // "ready", "warnings", "errors"
	Chrome   chromeInfo `json:"chrome"`
	Env      envInfo    `json:"environment"`
	System   systemInfo `json:"system"`
	Warnings []string   `json:"warnings,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// chromeInfo holds Chrome/Chromium detection results.
type chromeInfo struct {
	Found    bool   `json:"found"`
	Path     string `json:"path,omitempty"`
	Version  string `json:"version,omitempty"`
	Sandbox  bool   `json:"sandbox"`
	Download bool   `json:"download"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS          string `json:"os"`
	Arch        string `json:"arch"`
	Environment string `json:"environment"`
	Container   bool   `json:"container"`
	CI          bool   `json:"ci"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable  bool   `json:"temp_writable"`
	Addr          string `json:"addr"`
	PortAvailable bool   `json:"port_available"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found.
func runDoctorCmd(args []string, deps *Dependencies) int {
	jsonOutput := false
	for _, arg := range args {
		if arg == "--json" {
			jsonOutput = true
		}
	}

	cfg, _, err := config.Load(config.LoadOptions{
		EnvFile: config.DefaultEnvFile,
		Lookup:  deps.Lookup,
		Environ: deps.Environ,
	})
	if err != nil {
		fmt.Fprintln(deps.Stderr, err)
		return exitCodeFor(err)
	}

	result := runDoctor(cfg)

	if jsonOutput {
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(deps.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor(cfg *config.Config) *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:          runtime.GOOS,
			Arch:        runtime.GOARCH,
			Environment: cfg.Environment,
		},
	}

	checkChrome(result, cfg.Browser)
	checkEnvironment(result, cfg.Browser)
	checkSystem(result, cfg.Addr())

	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}
	return result
}

// checkChrome detects the browser the server would launch.
func checkChrome(result *doctorResult, b config.BrowserConfig) {
	result.Chrome.Sandbox = !b.NoSandbox
	result.Chrome.Download = b.Download

	chromePath := b.Bin
	if chromePath == "" {
		var found bool
		chromePath, found = launcher.LookPath()
		if !found {
			if b.Download {
				result.Warnings = append(result.Warnings,
					"Chrome/Chromium not found; a browser will be downloaded on the first request")
				return
			}
			result.Errors = append(result.Errors,
				"Chrome/Chromium not found. Install Chrome or set "+config.EnvVarBrowserBin)
			return
		}
	}

	if _, err := os.Stat(chromePath); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Chrome not found at %s", chromePath))
		return
	}

	result.Chrome.Found = true
	result.Chrome.Path = chromePath

	out, err := exec.Command(chromePath, "--version").Output() // #nosec G204 -- operator-provided browser path
	if err == nil {
		result.Chrome.Version = strings.TrimSpace(string(out))
	} else {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get Chrome version: %v", err))
	}
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult, b config.BrowserConfig) {
	result.Env.Container = hints.IsInContainer()
	result.Env.CI = os.Getenv(config.EnvVarCI) != "" || os.Getenv("GITHUB_ACTIONS") != ""

	if (result.Env.Container || result.Env.CI) && !b.NoSandbox {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but the Chrome sandbox is enabled. Set "+config.EnvVarNoSandbox+"=1")
	}
}

// checkSystem verifies the temp directory and the listen port.
func checkSystem(result *doctorResult, addr string) {
	// Chrome keeps its profile under the temp directory.
	tmpDir := os.TempDir()
	testFile := filepath.Join(tmpDir, "html2pdfd-doctor-test")
	if err := os.WriteFile(testFile, []byte("test"), 0600); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Temp directory not writable: %s", tmpDir))
	} else {
		_ = os.Remove(testFile)
		result.System.TempWritable = true
	}

	result.System.Addr = addr
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Listen address %s is not available: %v", addr, err))
		return
	}
	_ = ln.Close()
	result.System.PortAvailable = true
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "html2pdfd doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Chrome/Chromium")
	if r.Chrome.Found {
		fmt.Fprintf(w, "  [OK] Found at %s\n", r.Chrome.Path)
		if r.Chrome.Version != "" {
			fmt.Fprintf(w, "  [OK] Version: %s\n", r.Chrome.Version)
		}
	} else if r.Chrome.Download {
		fmt.Fprintln(w, "  [WARN] Not found (download enabled)")
	} else {
		fmt.Fprintln(w, "  [ERROR] Not found")
	}
	if r.Chrome.Sandbox {
		fmt.Fprintln(w, "  [OK] Sandbox: enabled")
	} else {
		fmt.Fprintln(w, "  [OK] Sandbox: disabled")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	fmt.Fprintf(w, "  [OK] Profile: %s\n", r.Env.Environment)
	if r.Env.Container {
		fmt.Fprintln(w, "  [OK] Container: detected")
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "System")
	if r.System.TempWritable {
		fmt.Fprintln(w, "  [OK] Temp directory: writable")
	} else {
		fmt.Fprintln(w, "  [ERROR] Temp directory: not writable")
	}
	if r.System.PortAvailable {
		fmt.Fprintf(w, "  [OK] Listen address %s: available\n", r.System.Addr)
	} else {
		fmt.Fprintf(w, "  [WARN] Listen address %s: in use\n", r.System.Addr)
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case "ready":
		fmt.Fprintln(w, "Status: Ready to serve")
	case "warnings":
		fmt.Fprintln(w, "Status: Ready with warnings")
	case "errors":
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
