package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/eavview/pkg/debug"
	"github.com/vanderheijden86/eavview/pkg/metrics"
	"github.com/vanderheijden86/eavview/pkg/model"
)

type jsonlRow struct {
	ID    json.RawMessage `json:"ID"`
	Node  json.RawMessage `json:"node"`
	Value json.RawMessage `json:"value"`
}

// ParseJSONL reads one {"ID":..,"node":..,"value":..} object per line.
// Values keep their JSON type; IDs and nodes may be strings or numbers.
// Malformed lines are skipped with a warning.
func ParseJSONL(r io.Reader, opts ParseOptions) ([]model.Triple, error) {
	defer metrics.Timer(metrics.DatasetLoad)()
	defer debug.LogEnterExit("loader.ParseJSONL")()

	warn := opts.warnFunc()
	maxCapacity := opts.bufferSize()
	reader := bufio.NewReaderSize(r, maxCapacity)

	var triples []model.Triple
	lineNum := 0
	for {
		lineNum++
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, &model.LoadError{Phase: model.PhaseParse, Cause: fmt.Errorf("error reading stream at line %d: %w", lineNum, err)}
		}

		if isPrefix {
			warn(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity))
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err == io.EOF {
					break
				}
				if err != nil {
					return nil, &model.LoadError{Phase: model.PhaseParse, Cause: fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)}
				}
			}
			continue
		}

		if lineNum == 1 {
			line = stripBOM(line)
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var row jsonlRow
		if err := json.Unmarshal(line, &row); err != nil {
			warn(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err))
			continue
		}

		id, err := keyFromRaw(row.ID)
		if err != nil {
			warn(fmt.Sprintf("skipping line %d: ID: %v", lineNum, err))
			continue
		}
		node, err := keyFromRaw(row.Node)
		if err != nil {
			warn(fmt.Sprintf("skipping line %d: node: %v", lineNum, err))
			continue
		}
		value, err := valueFromRaw(row.Value)
		if err != nil {
			warn(fmt.Sprintf("skipping line %d: value: %v", lineNum, err))
			continue
		}

		t := model.Triple{ID: id, Node: node, Value: value}
		if !opts.accept(&t, lineNum, warn) {
			continue
		}
		triples = append(triples, t)
	}
	debug.Log("loader.ParseJSONL: %d triples", len(triples))
	return triples, nil
}

// keyFromRaw accepts a JSON string or number. Missing and null map to "".
func keyFromRaw(raw json.RawMessage) (string, error) {
	v, err := valueFromRaw(raw)
	if err != nil {
		return "", err
	}
	if _, ok := v.Bool(); ok {
		return "", fmt.Errorf("boolean keys are not supported")
	}
	return v.String(), nil
}

func valueFromRaw(raw json.RawMessage) (model.Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return model.Null(), nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return model.Value{}, err
		}
		return model.StringValue(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return model.Value{}, err
		}
		return model.BoolValue(b), nil
	case '{', '[':
		return model.Value{}, fmt.Errorf("expected scalar, got %s", kindOfRaw(raw))
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return model.Value{}, fmt.Errorf("invalid number %s", raw)
		}
		return model.NumberValue(f), nil
	}
}

func kindOfRaw(raw json.RawMessage) string {
	if raw[0] == '{' {
		return "object"
	}
	return "array"
}
