package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rflorenc/mesh-workbench/internal/controlplane"
	"github.com/rflorenc/mesh-workbench/internal/models"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print the client and control plane version information.",
	Example: "meshctl version -o yaml",
	RunE:    runVersionCmd,
}

type versionFlags struct {
	output string
	client bool
}

var versionArgs versionFlags

func init() {
	versionCmd.Flags().StringVarP(&versionArgs.output, "output", "o", "yaml",
		"The format in which the version information should be printed, can be 'yaml' or 'json'")
	versionCmd.Flags().BoolVar(&versionArgs.client, "client", false,
		"If true, only the client version is printed and the control plane is not contacted.")
	rootCmd.AddCommand(versionCmd)
}

func runVersionCmd(cmd *cobra.Command, args []string) error {
	info := map[string]string{}
	info["client"] = VERSION

	if !versionArgs.client {
		ctx, cancel := context.WithTimeout(cmd.Context(), rootArgs.timeout)
		defer cancel()

		conn := &models.Connection{Token: rootArgs.token, Insecure: rootArgs.insecure}
		if err := conn.SetURL(rootArgs.url); err != nil {
			return err
		}
		index, err := controlplane.NewClient(conn, controlplane.WithTimeout(rootArgs.timeout)).Index(ctx)
		if err != nil {
			log.Error(err, "control plane version unavailable")
		} else {
			info["controlPlane"] = index.Version
			if index.Product != "" {
				info["product"] = index.Product
			}
		}
	}

	var marshalled []byte
	var err error

	if versionArgs.output == "json" {
		marshalled, err = json.MarshalIndent(&info, "", "  ")
		marshalled = append(marshalled, "\n"...)
	} else {
		marshalled, err = yaml.Marshal(&info)
	}

	if err != nil {
		return err
	}

	cmd.OutOrStdout().Write(marshalled)

	return nil
}
