package model

import (
	"errors"
	"fmt"
	"strings"
)

// Column names recognized in tabular sources.
const (
	ColumnID    = "ID"
	ColumnNode  = "node"
	ColumnValue = "value"
)

// Triple is one (ID, node, value) record.
type Triple struct {
	ID    string `json:"ID"`
	Node  string `json:"node"`
	Value Value  `json:"value"`
}

// ErrMissingID and ErrMissingNode are returned by Validate.
var (
	ErrMissingID   = errors.New("triple has no ID")
	ErrMissingNode = errors.New("triple has no node")
)

// Validate reports whether the triple has the keys needed for grouping.
func (t Triple) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(t.Node) == "" {
		return ErrMissingNode
	}
	return nil
}

func (t Triple) String() string {
	return fmt.Sprintf("%s/%s=%s", t.ID, t.Node, t.Value.String())
}

// MissingKeyPolicy decides what loaders do with rows that have an empty ID
// or node.
type MissingKeyPolicy string

const (
	// MissingKeysExclude drops the row and reports a warning.
	MissingKeysExclude MissingKeyPolicy = "exclude"
	// MissingKeysRetain keeps the row under empty-string keys.
	MissingKeysRetain MissingKeyPolicy = "retain"
)

// ParseMissingKeyPolicy parses a policy name. Empty means exclude.
func ParseMissingKeyPolicy(s string) (MissingKeyPolicy, error) {
	switch MissingKeyPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MissingKeysExclude:
		return MissingKeysExclude, nil
	case MissingKeysRetain:
		return MissingKeysRetain, nil
	default:
		return "", fmt.Errorf("invalid missing-key policy %q (expected exclude|retain)", s)
	}
}
