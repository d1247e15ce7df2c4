package main

import (
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "auditoria",
	Short: "Browse the audit trail",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events, newest first",
	RunE:  runAuditList,
}

var auditDocumentCmd = &cobra.Command{
	Use:   "documento <tipo> <id>",
	Short: "List audit events for one document (tipo is ATS, PETAR, PETS, IPERC, EVAL or CERT)",
	Args:  cobra.ExactArgs(2),
	RunE:  runAuditDocument,
}

var auditEventType string

func init() {
	auditListCmd.Flags().StringVar(&auditEventType, "tipo", "", "Filter by event type")
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditDocumentCmd)
}

func printAuditEvents(items []map[string]any) {
	rows := make([][]string, 0, len(items))
	for _, ev := range items {
		fecha, _ := ev["fecha"].(string)
		actor, _ := ev["actor"].(string)
		accion, _ := ev["accion"].(string)
		docType, _ := ev["tipo_documento"].(string)
		outcome, _ := ev["resultado"].(string)
		rows = append(rows, []string{fecha, actor, accion, docType, outcome})
	}
	printTable([]string{"Fecha", "Actor", "Accion", "Documento", "Resultado"}, rows)
}

func runAuditList(cmd *cobra.Command, args []string) error {
	path := "/api/v1/auditoria/eventos"
	if auditEventType != "" {
		path += "?tipo=" + auditEventType
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
	printAuditEvents(resp.Items)
	return nil
}

func runAuditDocument(cmd *cobra.Command, args []string) error {
	var resp struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
	}
	err := newClient().getJSON("/api/v1/auditoria/documentos/"+args[0]+"/"+args[1], &resp)
	if err != nil {
		return err
	}

	if outputFmt() != "table" {
		return printOutput(resp)
	}
	printAuditEvents(resp.Items)
	return nil
}
