package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var repairCmd = &cobra.Command{
	Use:   "reparaciones",
	Short: "Manage snapshot-repair jobs",
}

var repairRunCmd = &cobra.Command{
	Use:   "run <alcance>",
	Short: "Enqueue a snapshot-repair job for a document scope (e.g. entregas)",
	Args:  cobra.ExactArgs(1),
	RunE:  runRepairRun,
}

var repairListCmd = &cobra.Command{
	Use:   "list",
	Short: "List repair jobs",
	RunE:  runRepairList,
}

var repairCancelCmd = &cobra.Command{
	Use:   "cancel <jobId>",
	Short: "Cancel a queued repair job",
	Args:  cobra.ExactArgs(1),
	RunE:  runRepairCancel,
}

func init() {
	repairCmd.AddCommand(repairRunCmd)
	repairCmd.AddCommand(repairListCmd)
	repairCmd.AddCommand(repairCancelCmd)
}

func runRepairRun(cmd *cobra.Command, args []string) error {
	var job map[string]any
	err := newClient().postJSON("/api/v1/reparaciones",
		map[string]string{"alcance": args[0]}, &job)
	if err != nil {
		return err
	}

	if outputFmt() != "table" {
		return printOutput(job)
	}
	id, _ := job["id"].(string)
	state, _ := job["estado"].(string)
	fmt.Printf("job %s %s\n", id, state)
	return nil
}

func runRepairList(cmd *cobra.Command, args []string) error {
	var resp struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
	}
	if err := newClient().getJSON("/api/v1/reparaciones", &resp); err != nil {
		return err
	}

	if outputFmt() != "table" {
		return printOutput(resp)
	}

	rows := make([][]string, 0, len(resp.Items))
	for _, job := range resp.Items {
		id, _ := job["id"].(string)
		scope, _ := job["alcance"].(string)
		state, _ := job["estado"].(string)
		msg, _ := job["mensaje"].(string)
		rows = append(rows, []string{truncate(id, 36), scope, state, truncate(msg, 40)})
	}
	printTable([]string{"ID", "Alcance", "Estado", "Mensaje"}, rows)
	return nil
}

func runRepairCancel(cmd *cobra.Command, args []string) error {
	var resp map[string]string
	if err := newClient().postJSON("/api/v1/reparaciones/"+args[0]+":cancel", nil, &resp); err != nil {
		return err
	}
	fmt.Printf("job %s canceled\n", args[0])
	return nil
}
