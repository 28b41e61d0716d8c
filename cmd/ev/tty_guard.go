package main

import (
	"os"
	"strings"
)

// init runs before Bubble Tea acquires the terminal.
//
// Lipgloss/Termenv background detection can emit OSC/DSR control sequences
// to stdout. Those are harmless in a real terminal but break JSON parsers
// reading robot output, so robot and export invocations set CI=1, which
// turns TTY probing off.
func init() {
	if os.Getenv("CI") != "" {
		return
	}
	if !shouldSuppressTTYQueries(os.Args[1:], os.Getenv("EV_ROBOT") == "1", os.Getenv("EV_TEST_MODE") != "") {
		return
	}
	_ = os.Setenv("CI", "1")
}

func shouldSuppressTTYQueries(args []string, envRobot, envTest bool) bool {
	if envRobot || envTest {
		return true
	}
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		switch {
		case strings.HasPrefix(name, "robot-"), strings.HasPrefix(name, "export"):
			return true
		case name == "diff-source", name == "version", name == "help":
			return true
		}
	}
	return false
}
