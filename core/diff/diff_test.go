package diff

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/agentvc/core/model"
)

func TestComputeInsertion(t *testing.T) {
	lines := Compute("Hello\nWorld\n", "Hello\nRust\nWorld\n")

	require.Len(t, lines, 3)

	assert.Equal(t, LineContext, lines[0].Kind)
	assert.Equal(t, "Hello", lines[0].Content)
	assert.Equal(t, 1, lines[0].OldLine)
	assert.Equal(t, 1, lines[0].NewLine)

	assert.Equal(t, LineAddition, lines[1].Kind)
	assert.Equal(t, "Rust", lines[1].Content)
	assert.Equal(t, 0, lines[1].OldLine)
	assert.Equal(t, 2, lines[1].NewLine)

	assert.Equal(t, LineContext, lines[2].Kind)
	assert.Equal(t, "World", lines[2].Content)
	assert.Equal(t, 2, lines[2].OldLine)
	assert.Equal(t, 3, lines[2].NewLine)
}

func TestComputeDeletion(t *testing.T) {
	lines := Compute("a\nb\nc\n", "a\nc\n")

	require.Len(t, lines, 3)
	assert.Equal(t, LineContext, lines[0].Kind)
	assert.Equal(t, LineDeletion, lines[1].Kind)
	assert.Equal(t, "b", lines[1].Content)
	assert.Equal(t, 2, lines[1].OldLine)
	assert.Equal(t, 0, lines[1].NewLine)
	assert.Equal(t, LineContext, lines[2].Kind)
}

func TestComputeReplacement(t *testing.T) {
	lines := Compute("old line\n", "new line\n")

	require.Len(t, lines, 2)

	var additions, deletions int
	for _, line := range lines {
		switch line.Kind {
		case LineAddition:
			additions++
			assert.Equal(t, "new line", line.Content)
		case LineDeletion:
			deletions++
			assert.Equal(t, "old line", line.Content)
		}
	}
	assert.Equal(t, 1, additions)
	assert.Equal(t, 1, deletions)
}

func TestComputeIdenticalInputs(t *testing.T) {
	lines := Compute("a\nb\nc\n", "a\nb\nc\n")

	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.Equal(t, LineContext, line.Kind)
	}
}

func TestComputeEmptyInputs(t *testing.T) {
	assert.Empty(t, Compute("", ""))

	added := Compute("", "a\nb\n")
	require.Len(t, added, 2)
	for _, line := range added {
		assert.Equal(t, LineAddition, line.Kind)
	}

	removed := Compute("a\nb\n", "")
	require.Len(t, removed, 2)
	for _, line := range removed {
		assert.Equal(t, LineDeletion, line.Kind)
	}
}

func TestComputeNoTrailingNewline(t *testing.T) {
	lines := Compute("a\nb", "a\nc")

	require.Len(t, lines, 3)
	assert.Equal(t, LineContext, lines[0].Kind)
	assert.Equal(t, "a", lines[0].Content)
}

func TestLineNumbersAreConsistent(t *testing.T) {
	lines := Compute("one\ntwo\nthree\nfour\n", "one\n2\nthree\nfour\nfive\n")

	oldNum, newNum := 1, 1
	for _, line := range lines {
		switch line.Kind {
		case LineDeletion:
			assert.Equal(t, oldNum, line.OldLine)
			assert.Zero(t, line.NewLine)
			oldNum++
		case LineAddition:
			assert.Equal(t, newNum, line.NewLine)
			assert.Zero(t, line.OldLine)
			newNum++
		default:
			assert.Equal(t, oldNum, line.OldLine)
			assert.Equal(t, newNum, line.NewLine)
			oldNum++
			newNum++
		}
	}
	assert.Equal(t, 5, oldNum)
	assert.Equal(t, 6, newNum)
}

func TestFromChange(t *testing.T) {
	change := model.NewChange(model.ChangeModify, "src/main.rs", uuid.New()).
		WithContentBefore([]byte("Hello\nWorld\n")).
		WithContentAfter([]byte("Hello\nRust\nWorld\n"))

	d := FromChange(change)

	assert.Equal(t, "src/main.rs", d.Path)
	assert.True(t, d.HasOld)
	assert.True(t, d.HasNew)
	require.Len(t, d.Lines, 3)

	stats := d.Stats()
	assert.Equal(t, 1, stats.Additions)
	assert.Equal(t, 0, stats.Deletions)
}

func TestFromChangeBinaryContent(t *testing.T) {
	change := model.NewChange(model.ChangeModify, "logo.png", uuid.New()).
		WithContentBefore([]byte{0xff, 0xfe, 0x00, 0x01}).
		WithContentAfter([]byte{0xff, 0xfe, 0x00, 0x02})

	d := FromChange(change)

	assert.False(t, d.HasOld)
	assert.False(t, d.HasNew)
	assert.Empty(t, d.Lines)
}

func TestFromChangeMissingSide(t *testing.T) {
	change := model.NewChange(model.ChangeCreate, "new.txt", uuid.New()).
		WithContentAfter([]byte("fresh\n"))

	d := FromChange(change)

	assert.False(t, d.HasOld)
	assert.True(t, d.HasNew)
	assert.Empty(t, d.Lines)
}

func TestFormatUnified(t *testing.T) {
	d := &FileDiff{
		Path:  "src/main.go",
		Lines: Compute("Hello\nWorld\n", "Hello\nGo\nWorld\n"),
	}

	out := d.FormatUnified(3)

	assert.True(t, strings.HasPrefix(out, "--- src/main.go\n+++ src/main.go\n"))
	assert.Contains(t, out, "@@ -1,2 +1,3 @@")
	assert.Contains(t, out, " Hello\n")
	assert.Contains(t, out, "+Go\n")
	assert.Contains(t, out, " World\n")
}

func TestFormatUnifiedNoEdits(t *testing.T) {
	d := &FileDiff{
		Path:  "same.txt",
		Lines: Compute("a\nb\n", "a\nb\n"),
	}

	out := d.FormatUnified(3)

	// Identical inputs produce headers only, no hunks.
	assert.Equal(t, "--- same.txt\n+++ same.txt\n", out)
}

func TestFormatUnifiedSeparateHunks(t *testing.T) {
	oldText := "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n"
	newText := "one\n2\n3\n4\n5\n6\n7\n8\n9\nten\n"

	d := &FileDiff{Path: "nums.txt", Lines: Compute(oldText, newText)}
	out := d.FormatUnified(1)

	assert.Equal(t, 2, strings.Count(out, "@@ -"))
	assert.Contains(t, out, "-1\n")
	assert.Contains(t, out, "+one\n")
	assert.Contains(t, out, "-10\n")
	assert.Contains(t, out, "+ten\n")
}
