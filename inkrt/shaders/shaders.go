package shaders

import (
	_ "embed"
)

//go:embed field.wgsl
var FieldWGSL string
