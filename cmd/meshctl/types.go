package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rflorenc/mesh-workbench/internal/models"
	"github.com/rflorenc/mesh-workbench/internal/view"
)

var typesCmd = &cobra.Command{
	Use:     "types",
	Aliases: []string{"api-resources"},
	Short:   "Prints the resource types the control plane serves",
	Example: `  # List the browsable types, policies included
  meshctl types
`,
	Args: cobra.NoArgs,
	RunE: runTypesCmd,
}

func init() {
	rootCmd.AddCommand(typesCmd)
}

func runTypesCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), rootArgs.timeout)
	defer cancel()

	cp, err := newControlPlane(ctx)
	if err != nil {
		return err
	}
	types, err := cp.GetResourceTypes(ctx)
	if err != nil {
		if len(types) == 0 {
			return err
		}
		log.Error(err, "policy types unavailable")
	}

	table := view.Table{Headers: []view.Column{
		{Key: "name", Label: "Name"},
		{Key: "label", Label: "Label"},
		{Key: "scope", Label: "Scope"},
		{Key: "aliases", Label: "Aliases"},
	}}
	for _, rt := range types {
		table.Rows = append(table.Rows, view.Row{
			ID:    rt.Name,
			Cells: []string{rt.Name, rt.Label, typeScope(rt), strings.Join(rt.Aliases, ",")},
		})
	}
	table.Render(cmd.OutOrStdout())
	return nil
}

func typeScope(rt models.ResourceType) string {
	switch {
	case rt.Policy:
		return "policy"
	case rt.MeshScoped:
		return "mesh"
	case rt.GlobalOnly:
		return "global"
	}
	return "control plane"
}
