package main

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/bazelment/convstate/model"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the conversation state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := stateSchema()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}
}

// stateSchema reflects model.State into an indented JSON Schema document.
func stateSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
	}
	return json.MarshalIndent(reflector.Reflect(&model.State{}), "", "  ")
}
