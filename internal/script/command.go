package script

import (
	"fmt"
	"strings"

	"geovoxel.dev/internal/geo"
)

// Kind discriminates the closed set of command variants.
type Kind int

const (
	KindFill Kind = iota + 1
	KindSetBlock
	KindRaw
)

// Command is one build instruction. Exactly the fields for its Kind are
// meaningful; Text renders the target environment's command grammar.
type Command struct {
	Kind Kind

	// Fill.
	Min     geo.VoxelPoint
	Max     geo.VoxelPoint
	Replace string

	// SetBlock.
	Pos geo.VoxelPoint

	// Fill and SetBlock.
	Block string

	// Raw.
	RawText string

	// Critical commands abort batch execution on failure.
	Critical bool
}

func NewFill(min, max geo.VoxelPoint, block string) Command {
	return Command{Kind: KindFill, Min: min, Max: max, Block: block}
}

func NewSetBlock(pos geo.VoxelPoint, block string) Command {
	return Command{Kind: KindSetBlock, Pos: pos, Block: block}
}

func NewRaw(text string) Command {
	return Command{Kind: KindRaw, RawText: text}
}

func (c Command) Text() string {
	switch c.Kind {
	case KindFill:
		s := fmt.Sprintf("fill %d %d %d %d %d %d %s",
			c.Min.X, c.Min.Y, c.Min.Z, c.Max.X, c.Max.Y, c.Max.Z, c.Block)
		if c.Replace != "" {
			s += " replace " + c.Replace
		}
		return s
	case KindSetBlock:
		return fmt.Sprintf("setblock %d %d %d %s", c.Pos.X, c.Pos.Y, c.Pos.Z, c.Block)
	default:
		return c.RawText
	}
}

// Script is an ordered command sequence. Order matters: later commands may
// legally overwrite cells written by earlier ones.
type Script []Command

// Render returns the newline-delimited human-inspectable form.
func (s Script) Render() string {
	var b strings.Builder
	for _, c := range s {
		b.WriteString(c.Text())
		b.WriteByte('\n')
	}
	return b.String()
}
