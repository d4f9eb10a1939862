package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rflorenc/mesh-workbench/internal/controlplane"
	"github.com/rflorenc/mesh-workbench/internal/logger"
	"github.com/rflorenc/mesh-workbench/internal/models"
	"github.com/rflorenc/mesh-workbench/internal/route"
	"github.com/rflorenc/mesh-workbench/internal/view"
)

var listCmd = &cobra.Command{
	Use:     "list [TYPE]",
	Aliases: []string{"ls"},
	Short:   "Prints one page of a resource collection",
	Example: `  # List the first page of data plane proxies in the default mesh
  meshctl list dataplanes

  # List the third page of 20 gateways in the demo mesh
  meshctl list gateways --mesh demo --page 3 --size 20

  # Filter by name and tag, using the filter bar syntax
  meshctl list dpp --search 'web service:backend'

  # Filter by tag and print the raw view as JSON
  meshctl list dpp --filter kuma.io/zone:east -o json
`,
	Args: cobra.ExactArgs(1),
	RunE: runListCmd,
}

type listFlags struct {
	mesh     string
	page     int
	size     int
	search   string
	filters  []string
	selected string
	all      bool
	output   string
}

var listArgs listFlags

func init() {
	listCmd.Flags().StringVar(&listArgs.mesh, "mesh", "",
		"The mesh of mesh scoped types, defaults to 'default'.")
	listCmd.Flags().IntVar(&listArgs.page, "page", 1,
		"The page to print, starting at 1.")
	listCmd.Flags().IntVar(&listArgs.size, "size", route.DefaultSize,
		"The number of items per page.")
	listCmd.Flags().StringVarP(&listArgs.search, "search", "s", "",
		"Filter bar query, e.g. 'web tag:kuma.io/zone:east protocol:http'.")
	listCmd.Flags().StringArrayVar(&listArgs.filters, "filter", nil,
		"Tag filter in the format key:value, this flag can be repeated.")
	listCmd.Flags().StringVar(&listArgs.selected, "selected", "",
		"Also load the detail of this item and mark its row.")
	listCmd.Flags().BoolVar(&listArgs.all, "all", false,
		"Follow the next links and print every page.")
	listCmd.Flags().StringVarP(&listArgs.output, "output", "o", "table",
		"The output format, can be 'table' or 'json'.")
	rootCmd.AddCommand(listCmd)
}

func runListCmd(cmd *cobra.Command, args []string) error {
	tags, err := parseTagFilters(listArgs.filters)
	if err != nil {
		return err
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

	state := route.State{
		Mesh:     listArgs.mesh,
		Page:     max(listArgs.page, 1),
		Size:     listArgs.size,
		Search:   listArgs.search,
		Tags:     tags,
		Selected: listArgs.selected,
	}
	if rt.MeshScoped && state.Mesh == "" {
		state.Mesh = view.DefaultMesh
	}
	if listArgs.all {
		return listAll(ctx, cmd, cp, rt, state)
	}

	coll := view.NewCollection(cp, rt, state,
		view.WithLogger(log),
		view.WithDefaultSize(listArgs.size),
	)
	snap := coll.Load(ctx)

	if listArgs.output == "json" {
		return printJSON(cmd, snap)
	}
	if snap.List.Error != "" {
		return fmt.Errorf("listing %s: %s", rt.Name, snap.List.Error)
	}
	if snap.List.Empty {
		if snap.List.Filter != "" {
			log.Info(fmt.Sprintf("%s Filter: %s", snap.List.EmptyState, logger.ColorizeWarning(snap.List.Filter)))
			return nil
		}
		log.Info(snap.List.EmptyState)
		return nil
	}

	snap.List.Table.Render(cmd.OutOrStdout())
	log.Info(pageFooter(snap))
	if snap.Detail != nil && snap.Detail.Error != "" {
		log.Error(nil, fmt.Sprintf("%s %s", logger.ColorizeSubject(snap.Detail.Name), snap.Detail.Error))
	}
	return nil
}

// listAll follows the next links of the collection starting at the first page.
func listAll(ctx context.Context, cmd *cobra.Command, cp *controlplane.Kuma, rt models.ResourceType, state route.State) error {
	state.Page = 1
	req, err := view.ListRequest(state)
	if err != nil {
		return err
	}
	if req.Gateway == "" {
		req.Gateway = rt.Gateway
	}
	items, err := cp.Client().GetAll(ctx, controlplane.ExpandPath(rt.Path, state.Mesh, ""), req)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		log.Info(rt.EmptyState)
		return nil
	}
	view.BuildTable(rt, items, state.Selected).Render(cmd.OutOrStdout())
	log.Info(fmt.Sprintf("%d %s", len(items), rt.Label))
	return nil
}

func pageFooter(snap view.Snapshot) string {
	lv := snap.List
	footer := fmt.Sprintf("page %d, %d of %d", lv.Page, len(lv.Table.Rows), lv.Total)
	if lv.HasNext {
		footer += fmt.Sprintf(", next with --page %d", lv.Page+1)
	}
	return footer
}

// parseTagFilters reads repeated key:value flags.
func parseTagFilters(filters []string) (map[string]string, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	tags := make(map[string]string, len(filters))
	for _, f := range filters {
		k, v, ok := strings.Cut(f, ":")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key:value", f)
		}
		tags[k] = v
	}
	return tags, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, "\n"...)
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
