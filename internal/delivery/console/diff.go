package console

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffOp marks a line in a rewrite diff.
type DiffOp byte

const (
	DiffKeep   DiffOp = ' '
	DiffAdd    DiffOp = '+'
	DiffRemove DiffOp = '-'
)

// DiffLine is one line of a line-level diff.
type DiffLine struct {
	Op   DiffOp
	Text string
}

// DiffResult summarises how a suggested rewrite differs from the deliverable.
type DiffResult struct {
	Lines   []DiffLine
	Added   int
	Removed int
}

// Changed reports whether the two texts differ at all.
func (d DiffResult) Changed() bool {
	return d.Added > 0 || d.Removed > 0
}

// LineDiff compares oldText and newText line by line.
func LineDiff(oldText, newText string) DiffResult {
	if oldText == newText {
		var result DiffResult
		for _, line := range splitLines(oldText) {
			result.Lines = append(result.Lines, DiffLine{Op: DiffKeep, Text: line})
		}
		return result
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var result DiffResult
	for _, d := range diffs {
		op := DiffKeep
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = DiffAdd
		case diffmatchpatch.DiffDelete:
			op = DiffRemove
		}
		for _, line := range splitLines(d.Text) {
			result.Lines = append(result.Lines, DiffLine{Op: op, Text: line})
			switch op {
			case DiffAdd:
				result.Added++
			case DiffRemove:
				result.Removed++
			}
		}
	}
	return result
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
