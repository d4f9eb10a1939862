package view

import (
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/rflorenc/mesh-workbench/internal/insight"
	"github.com/rflorenc/mesh-workbench/internal/logger"
	"github.com/rflorenc/mesh-workbench/internal/models"
)

// Column is one header of a table.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Row is one item of a table. Cells follow the column order.
type Row struct {
	ID       string                 `json:"id"`
	Cells    []string               `json:"cells"`
	Selected bool                   `json:"selected,omitempty"`
	Summary  models.ResourceSummary `json:"summary"`
}

// Table is the tabular form of one page.
type Table struct {
	Headers []Column `json:"headers"`
	Rows    []Row    `json:"rows"`
}

var columnLabels = map[string]string{
	"name":             "Name",
	"mtls":             "mTLS",
	"metrics":          "Metrics",
	"created":          "Created",
	"modified":         "Modified",
	"service":          "Service",
	"protocol":         "Protocol",
	"zone":             "Zone",
	"status":           "Status",
	"last_updated":     "Last Updated",
	"last_connected":   "Last Connected",
	"envoy_version":    "Envoy Version",
	"dp_version":       "Kuma DP Version",
	"zone_version":     "Zone CP Version",
	"type":             "Type",
	"service_type":     "Service Type",
	"address":          "Address",
	"dataplanes":       "Data Plane Proxies",
	"state":            "State",
	"environment":      "Environment",
	"target_ref":       "Target Ref",
	"namespace":        "Namespace",
	"total_updates":    "Total Updates",
	"rejected_updates": "Rejected Updates",
}

// Columns returns the headers for column keys.
func Columns(keys []string) []Column {
	cols := make([]Column, len(keys))
	for i, k := range keys {
		label, ok := columnLabels[k]
		if !ok {
			label = strings.ReplaceAll(k, "_", " ")
		}
		cols[i] = Column{Key: k, Label: label}
	}
	return cols
}

// BuildTable lays out the items of a page for rt. Rows keep server order.
func BuildTable(rt models.ResourceType, items []models.Resource, selected string) Table {
	t := Table{Headers: Columns(rt.Columns), Rows: make([]Row, 0, len(items))}
	for _, item := range items {
		sum := Summarize(rt, item)
		cells := make([]string, len(rt.Columns))
		for i, k := range rt.Columns {
			cells[i] = sum.Fields[k]
		}
		t.Rows = append(t.Rows, Row{
			ID:       sum.Name,
			Cells:    cells,
			Selected: selected != "" && sum.Name == selected,
			Summary:  sum,
		})
	}
	return t
}

// Render writes t as an aligned text table. Status cells are coloured when
// colour output is enabled.
func (t Table) Render(w io.Writer) {
	header := make([]string, len(t.Headers))
	statusCol := -1
	for i, c := range t.Headers {
		header[i] = c.Label
		if c.Key == "status" {
			statusCol = i
		}
	}
	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		cells := append([]string(nil), r.Cells...)
		if statusCol >= 0 && r.Summary.Status != "" {
			cells[statusCol] = logger.ColorizeStatus(insight.Status(r.Summary.Status))
		}
		rows = append(rows, cells)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}
