package loader

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vanderheijden86/eavview/pkg/debug"
	"github.com/vanderheijden86/eavview/pkg/metrics"
	"github.com/vanderheijden86/eavview/pkg/model"
)

type csvColumns struct {
	id, node, value int
}

// ParseCSV reads a header row followed by ID,node,value records. The header
// must name exactly the three recognized columns, in any order. Values go
// through model.InferValue.
func ParseCSV(r io.Reader, opts ParseOptions) ([]model.Triple, error) {
	defer metrics.Timer(metrics.DatasetLoad)()
	defer debug.LogEnterExit("loader.ParseCSV")()

	warn := opts.warnFunc()
	br := bufio.NewReaderSize(r, 64*1024)
	if head, err := br.Peek(3); err == nil && string(head) == string(utf8BOM) {
		_, _ = br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &model.LoadError{Phase: model.PhaseSchema, Cause: fmt.Errorf("%w: empty input, no header row", model.ErrSchemaMismatch)}
		}
		return nil, &model.LoadError{Phase: model.PhaseParse, Cause: err}
	}
	cols, err := resolveHeader(header)
	if err != nil {
		return nil, &model.LoadError{Phase: model.PhaseSchema, Cause: err}
	}

	maxLine := opts.bufferSize()
	var triples []model.Triple
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &model.LoadError{Phase: model.PhaseParse, Cause: err}
		}
		line, _ := cr.FieldPos(0)
		if isBlankRecord(record) {
			continue
		}
		if recordSize(record) > maxLine {
			warn(fmt.Sprintf("skipping row %d: row too long (exceeds %d bytes)", line, maxLine))
			continue
		}

		t := model.Triple{
			ID:    field(record, cols.id),
			Node:  field(record, cols.node),
			Value: model.InferValue(field(record, cols.value)),
		}
		if !opts.accept(&t, line, warn) {
			continue
		}
		triples = append(triples, t)
	}
	debug.Log("loader.ParseCSV: %d triples", len(triples))
	return triples, nil
}

func resolveHeader(header []string) (csvColumns, error) {
	cols := csvColumns{id: -1, node: -1, value: -1}
	for i, raw := range header {
		name := strings.TrimSpace(string(stripBOM([]byte(raw))))
		var slot *int
		switch name {
		case model.ColumnID:
			slot = &cols.id
		case model.ColumnNode:
			slot = &cols.node
		case model.ColumnValue:
			slot = &cols.value
		default:
			return cols, fmt.Errorf("%w: unexpected column %q (want %s, %s, %s)",
				model.ErrSchemaMismatch, name, model.ColumnID, model.ColumnNode, model.ColumnValue)
		}
		if *slot != -1 {
			return cols, fmt.Errorf("%w: duplicate column %q", model.ErrSchemaMismatch, name)
		}
		*slot = i
	}
	var missing []string
	if cols.id == -1 {
		missing = append(missing, model.ColumnID)
	}
	if cols.node == -1 {
		missing = append(missing, model.ColumnNode)
	}
	if cols.value == -1 {
		missing = append(missing, model.ColumnValue)
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: missing column(s) %s", model.ErrSchemaMismatch, strings.Join(missing, ", "))
	}
	return cols, nil
}

// field returns record[i], or "" when the row is short.
func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func recordSize(record []string) int {
	n := 0
	for _, f := range record {
		n += len(f) + 1
	}
	return n
}
