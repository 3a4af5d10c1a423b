// Package schemas holds the JSON Schemas for the boundary input shapes.
// They are compiled once at startup; a compile failure is a programming
// error, not a runtime condition.
package schemas

import (
	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed survey.schema.json
var surveySchema string

//go:embed horizon_corners.schema.json
var cornersSchema string

//go:embed horizon_lines.schema.json
var linesSchema string

var (
	Survey         = mustCompile("survey.schema.json", surveySchema)
	HorizonCorners = mustCompile("horizon_corners.schema.json", cornersSchema)
	HorizonLines   = mustCompile("horizon_lines.schema.json", linesSchema)
)

func mustCompile(name, src string) *jsonschema.Schema {
	s, err := jsonschema.CompileString(name, src)
	if err != nil {
		panic("schemas: " + name + ": " + err.Error())
	}
	return s
}
