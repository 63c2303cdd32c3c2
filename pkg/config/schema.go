package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema reflects the Config struct into a JSON Schema document, so an
// operator (or an editor with YAML-schema support) can validate a
// configuration file before handing it to Load. Reflected purely from
// Go struct tags - it carries no state and is safe to call repeatedly.
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	return reflector.Reflect(&Config{})
}

// SchemaJSON renders Schema as indented JSON, for `plugind config schema`
// and for writing a sidecar .schema.json an editor can pick up.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}
