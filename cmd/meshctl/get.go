package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rflorenc/mesh-workbench/internal/view"
)

var getCmd = &cobra.Command{
	Use:   "get [TYPE] [NAME]",
	Short: "Prints a single resource",
	Example: `  # Print a data plane proxy with its insight as YAML
  meshctl get dataplane web-01 --mesh demo

  # Print a zone with its summary and related lookups as JSON
  meshctl get zone east -o json
`,
	Args: cobra.ExactArgs(2),
	RunE: runGetCmd,
}

type getFlags struct {
	mesh   string
	output string
}

var getArgs getFlags

func init() {
	getCmd.Flags().StringVar(&getArgs.mesh, "mesh", "",
		"The mesh of mesh scoped types, defaults to 'default'.")
	getCmd.Flags().StringVarP(&getArgs.output, "output", "o", "yaml",
		"The format in which the resource should be printed, can be 'yaml' or 'json'.")
	rootCmd.AddCommand(getCmd)
}

func runGetCmd(cmd *cobra.Command, args []string) error {
	if getArgs.output != "yaml" && getArgs.output != "json" {
		return fmt.Errorf("unsupported output format %q", getArgs.output)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), rootArgs.timeout)
	defer cancel()

	cp, err := newControlPlane(ctx)
	if err != nil {
		return err
	}
	rt, err := cp.ResolveType(ctx, args[0])
	if err != nil {
		return err
	}

	mesh := ""
	if rt.MeshScoped {
		mesh = getArgs.mesh
		if mesh == "" {
			mesh = view.DefaultMesh
		}
	}
	detail, err := view.Detail(ctx, cp, rt, view.DetailParams{Mesh: mesh, Name: args[1]})
	if err != nil {
		return err
	}

	if getArgs.output == "json" {
		return printJSON(cmd, detail)
	}
	out, err := yaml.Marshal(detail.Resource)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
