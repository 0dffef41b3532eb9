// Package hints builds short operator hints attached to error details.
// Hints read "hint: <text>[; <text>]" and are empty when nothing applies.
package hints

import (
	"fmt"
	"os"
	"strings"
)

// IsInContainer detects Docker-like environments through /.dockerenv.
var IsInContainer = func() bool {
	info, err := os.Stat("/.dockerenv")
	return err == nil && !info.IsDir()
}

// inCI reports whether a common CI variable is set.
func inCI() bool {
	return os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != "" ||
		os.Getenv("JENKINS_URL") != ""
}

// ForBrowserLaunch returns hints for a browser that failed to start.
func ForBrowserLaunch() string {
	var hints []string

	if (inCI() || IsInContainer()) && os.Getenv("ROD_NO_SANDBOX") != "1" {
		hints = append(hints, "set ROD_NO_SANDBOX=1 for Docker/CI")
	}
	if os.Getenv("ROD_BROWSER_BIN") == "" {
		hints = append(hints, "set ROD_BROWSER_BIN to a Chrome/Chromium binary")
	}
	return format(hints...)
}

// ForRendererUnavailable returns hints when no browser binary exists.
func ForRendererUnavailable() string {
	return format(
		"install Chrome/Chromium or set ROD_BROWSER_BIN",
		"or set HTML2PDF_BROWSER_DOWNLOAD=true to let the server download one",
	)
}

// ForTimeout suggests raising the per-request timeout while it is below max.
func ForTimeout(timeoutMillis, maxMillis int) string {
	if timeoutMillis >= maxMillis {
		return format("reduce page size or external resources; the timeout is already at its maximum")
	}
	return format(fmt.Sprintf("raise options.timeout (up to %d ms) or use waitUntil=domcontentloaded", maxMillis))
}

// Append joins a hint to existing details.
func Append(details, hint string) string {
	switch {
	case hint == "":
		return details
	case details == "":
		return hint
	default:
		return details + " (" + hint + ")"
	}
}

func format(hints ...string) string {
	if len(hints) == 0 {
		return ""
	}
	return "hint: " + strings.Join(hints, "; ")
}
