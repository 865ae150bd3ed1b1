// Package diff computes line-level edit scripts between the before and after
// content of a recorded change, and renders them as unified diffs.
package diff

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/adalundhe/agentvc/core/model"
)

// LineKind classifies one line of an edit script.
type LineKind int

const (
	LineContext LineKind = iota
	LineAddition
	LineDeletion
)

var lineKindNames = map[LineKind]string{
	LineContext:  "context",
	LineAddition: "addition",
	LineDeletion: "deletion",
}

func (k LineKind) String() string {
	if name, ok := lineKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Line is one entry of an edit script. OldLine and NewLine are 1-based; zero
// means the line has no position on that side (additions have no old line,
// deletions no new line).
type Line struct {
	Kind    LineKind
	Content string
	OldLine int
	NewLine int
}

// FileDiff is the computed edit script for one change. An empty Lines slice
// with content present on fewer than two sides means the diff is unavailable
// (missing or binary content), not that the contents are equal.
type FileDiff struct {
	Path       string
	OldContent string
	NewContent string
	HasOld     bool
	HasNew     bool
	Lines      []Line
}

// Stats summarizes an edit script.
type Stats struct {
	Additions int
	Deletions int
}

// FromChange builds the diff for a change. Absent or non-UTF-8 content on
// either side degrades to an empty edit script rather than an error.
func FromChange(change *model.Change) *FileDiff {
	d := &FileDiff{Path: change.Path}

	if change.ContentBefore != nil && utf8.Valid(change.ContentBefore) {
		d.OldContent = string(change.ContentBefore)
		d.HasOld = true
	}
	if change.ContentAfter != nil && utf8.Valid(change.ContentAfter) {
		d.NewContent = string(change.ContentAfter)
		d.HasNew = true
	}

	if d.HasOld && d.HasNew {
		d.Lines = Compute(d.OldContent, d.NewContent)
	}

	return d
}

// Stats counts the additions and deletions in the edit script.
func (d *FileDiff) Stats() Stats {
	var stats Stats
	for _, line := range d.Lines {
		switch line.Kind {
		case LineAddition:
			stats.Additions++
		case LineDeletion:
			stats.Deletions++
		}
	}
	return stats
}

// Compute diffs two text blobs line by line using Myers' algorithm, producing
// a minimal edit script with 1-based line numbers on both sides.
func Compute(oldText, newText string) []Line {
	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	script := myers(oldLines, newLines)

	lines := make([]Line, 0, len(script))
	oldNum, newNum := 1, 1
	for _, op := range script {
		switch op.kind {
		case LineDeletion:
			lines = append(lines, Line{
				Kind:    LineDeletion,
				Content: oldLines[op.oldIndex],
				OldLine: oldNum,
			})
			oldNum++
		case LineAddition:
			lines = append(lines, Line{
				Kind:    LineAddition,
				Content: newLines[op.newIndex],
				NewLine: newNum,
			})
			newNum++
		default:
			lines = append(lines, Line{
				Kind:    LineContext,
				Content: oldLines[op.oldIndex],
				OldLine: oldNum,
				NewLine: newNum,
			})
			oldNum++
			newNum++
		}
	}

	return lines
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

type editOp struct {
	kind     LineKind
	oldIndex int
	newIndex int
}

// myers runs the forward Myers shortest-edit-script search, keeping a trace
// of the frontier per depth for backtracking.
func myers(oldLines, newLines []string) []editOp {
	n, m := len(oldLines), len(newLines)
	if n == 0 && m == 0 {
		return nil
	}
	if n == 0 {
		ops := make([]editOp, m)
		for i := range ops {
			ops[i] = editOp{kind: LineAddition, newIndex: i}
		}
		return ops
	}
	if m == 0 {
		ops := make([]editOp, n)
		for i := range ops {
			ops[i] = editOp{kind: LineDeletion, oldIndex: i}
		}
		return ops
	}

	max := n + m
	offset := max
	v := make([]int, 2*max+1)
	var trace [][]int

	for depth := 0; depth <= max; depth++ {
		snapshot := make([]int, len(v))
		copy(snapshot, v)
		trace = append(trace, snapshot)

		for k := -depth; k <= depth; k += 2 {
			var x int
			if k == -depth || (k != depth && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && oldLines[x] == newLines[y] {
				x++
				y++
			}
			v[offset+k] = x
			if x >= n && y >= m {
				return backtrack(trace, n, m, offset)
			}
		}
	}

	return nil
}

func backtrack(trace [][]int, n, m, offset int) []editOp {
	var ops []editOp
	x, y := n, m

	for depth := len(trace) - 1; depth > 0; depth-- {
		v := trace[depth]
		k := x - y

		var prevK int
		switch {
		case k == -depth:
			prevK = k + 1
		case k == depth:
			prevK = k - 1
		case v[offset+k-1] < v[offset+k+1]:
			prevK = k + 1
		default:
			prevK = k - 1
		}

		prevX := v[offset+prevK]
		prevY := prevX - prevK

		afterX, afterY := prevX, prevY+1
		if prevK < k {
			afterX, afterY = prevX+1, prevY
		}

		// Walk back through the snake of equal lines after the edit.
		for x > afterX && y > afterY {
			x--
			y--
			ops = append(ops, editOp{kind: LineContext, oldIndex: x, newIndex: y})
		}

		if prevK < k {
			ops = append(ops, editOp{kind: LineDeletion, oldIndex: prevX})
		} else {
			ops = append(ops, editOp{kind: LineAddition, newIndex: prevY})
		}
		x, y = prevX, prevY
	}

	for x > 0 && y > 0 {
		x--
		y--
		ops = append(ops, editOp{kind: LineContext, oldIndex: x, newIndex: y})
	}

	reverse(ops)
	return ops
}

func reverse(ops []editOp) {
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
}

// FormatUnified renders the edit script as a unified diff with up to
// contextLines of surrounding context per hunk. An empty edit script yields
// only the file headers.
func (d *FileDiff) FormatUnified(contextLines int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n", d.Path)
	fmt.Fprintf(&b, "+++ %s\n", d.Path)

	for _, hunk := range d.hunks(contextLines) {
		oldStart, oldCount, newStart, newCount := hunkRange(hunk)
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)
		for _, line := range hunk {
			switch line.Kind {
			case LineAddition:
				b.WriteByte('+')
			case LineDeletion:
				b.WriteByte('-')
			default:
				b.WriteByte(' ')
			}
			b.WriteString(line.Content)
			b.WriteByte('\n')
		}
	}

	return b.String()
}

// hunks groups the edit script into runs of non-context lines padded by up to
// contextLines of context. Runs whose padded ranges touch are merged.
func (d *FileDiff) hunks(contextLines int) [][]Line {
	var ranges [][2]int
	for i, line := range d.Lines {
		if line.Kind == LineContext {
			continue
		}
		start := i - contextLines
		if start < 0 {
			start = 0
		}
		end := i + contextLines + 1
		if end > len(d.Lines) {
			end = len(d.Lines)
		}
		if len(ranges) > 0 && start <= ranges[len(ranges)-1][1] {
			ranges[len(ranges)-1][1] = end
			continue
		}
		ranges = append(ranges, [2]int{start, end})
	}

	hunks := make([][]Line, 0, len(ranges))
	for _, r := range ranges {
		hunks = append(hunks, d.Lines[r[0]:r[1]])
	}
	return hunks
}

func hunkRange(hunk []Line) (oldStart, oldCount, newStart, newCount int) {
	for _, line := range hunk {
		if line.OldLine > 0 {
			if oldStart == 0 {
				oldStart = line.OldLine
			}
			oldCount++
		}
		if line.NewLine > 0 {
			if newStart == 0 {
				newStart = line.NewLine
			}
			newCount++
		}
	}
	return oldStart, oldCount, newStart, newCount
}
