package main

import "testing"

func TestShouldSuppressTTYQueries(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		envRobot bool
		envTest  bool
		want     bool
	}{
		{"interactive", []string{"--data", "triples.csv"}, false, false, false},
		{"robot flag", []string{"--robot-page"}, false, false, true},
		{"single dash", []string{"-robot-top=Country"}, false, false, true},
		{"export", []string{"--export-graph", "g.svg"}, false, false, true},
		{"diff", []string{"--diff-source", "other.csv"}, false, false, true},
		{"version", []string{"--version"}, false, false, true},
		{"value that looks like a flag name", []string{"--query", "robot-arm"}, false, false, false},
		{"env robot", nil, true, false, true},
		{"env test", nil, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldSuppressTTYQueries(tt.args, tt.envRobot, tt.envTest); got != tt.want {
				t.Errorf("shouldSuppressTTYQueries(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}
