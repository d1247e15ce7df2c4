package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// documentRoutes maps the CLI document kinds to their API route segments.
var documentRoutes = map[string]string{
	"ats":          "ats",
	"petar":        "petar",
	"pets":         "pets",
	"iperc":        "iperc",
	"evaluaciones": "evaluaciones",
	"entregas":     "entregas",
}

var documentsCmd = &cobra.Command{
	Use:   "documentos",
	Short: "Browse registry documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list <tipo>",
	Short: "List documents of one type (ats, petar, pets, iperc, evaluaciones, entregas)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsList,
}

var documentsGetCmd = &cobra.Command{
	Use:   "get <tipo> <id>",
	Short: "Show one document with its lines and history",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentsGet,
}

var listState string

func init() {
	documentsListCmd.Flags().StringVar(&listState, "estado", "", "Filter by state")
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsGetCmd)
}

func routeFor(kind string) (string, error) {
	route, ok := documentRoutes[kind]
	if !ok {
		return "", fmt.Errorf("unknown document type %q (expected ats, petar, pets, iperc, evaluaciones or entregas)", kind)
	}
	return route, nil
}

func runDocumentsList(cmd *cobra.Command, args []string) error {
	route, err := routeFor(args[0])
	if err != nil {
		return err
	}

	path := "/api/v1/" + route
	if listState != "" {
		path += "?estado=" + listState
	}

	var resp struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
	}
	if err := newClient().getJSON(path, &resp); err != nil {
		return err
	}

	if outputFmt() != "table" {
		return printOutput(resp)
	}

	rows := make([][]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		code, _ := item["codigo"].(string)
		state, _ := item["estado"].(string)
		id, _ := item["id"].(string)
		rows = append(rows, []string{code, state, truncate(id, 36)})
	}
	printTable([]string{"Codigo", "Estado", "ID"}, rows)
	return nil
}

func runDocumentsGet(cmd *cobra.Command, args []string) error {
	route, err := routeFor(args[0])
	if err != nil {
		return err
	}

	var doc map[string]any
	if err := newClient().getJSON("/api/v1/"+route+"/"+args[1], &doc); err != nil {
		return err
	}

	if outputFmt() == "table" {
		// Single documents are structured; fall back to JSON.
		return printJSON(doc)
	}
	return printOutput(doc)
}
