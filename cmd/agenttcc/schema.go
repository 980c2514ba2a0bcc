package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
)

// SchemaCmd generates the JSON Schema of the catalog seed file, for
// authoring and validating catalog.yaml files. Output goes to stdout so it
// can be redirected.
type SchemaCmd struct {
	Compact bool `help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		// Inline all definitions (no $ref) so editors without resolver
		// support can validate against it.
		DoNotReference: true,
	}

	schema := reflector.Reflect(&Catalog{})
	schema.ID = "https://github.com/taricklorran/AGENT-TCC/schemas/catalog.json"
	schema.Title = "AGENT-TCC Catalog Schema"
	schema.Description = "Seed file schema: users, managers, agents and tools."
	schema.Version = "http://json-schema.org/draft-07/schema#"

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
