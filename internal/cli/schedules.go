package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thornlabs/pulse/internal/scheduler"
)

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "Inspect workflow schedules",
	Long: `Inspect stored workflow schedules without running the scheduler.

Examples:
  pulse schedules list     Show enabled scheduled workflows and their next fire
  pulse schedules check 3  Validate a workflow's trigger configuration`,
}

var schedulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled workflows and their next fire time",
	RunE:  runSchedulesList,
}

var schedulesCheckCmd = &cobra.Command{
	Use:   "check <id>",
	Short: "Validate a workflow's trigger configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedulesCheck,
}

func init() {
	schedulesCmd.AddCommand(schedulesListCmd)
	schedulesCmd.AddCommand(schedulesCheckCmd)

	rootCmd.AddCommand(schedulesCmd)
}

func runSchedulesList(cmd *cobra.Command, args []string) error {
	db, store, err := openWorkflowStore()
	if err != nil {
		return err
	}
	defer db.Close()

	defs, err := store.ListScheduled(context.Background())
	if err != nil {
		return err
	}

	if len(defs) == 0 {
		fmt.Println("No scheduled workflows")
		return nil
	}

	now := time.Now().UTC()
	for _, def := range defs {
		desc, err := scheduler.ParseDescriptor(def.TriggerConfig)
		if err != nil {
			fmt.Printf("%-5d %-30s INVALID: %v\n", def.ID, def.Name, err)
			continue
		}

		next := desc.Next(now)
		nextStr := "never"
		if !next.IsZero() {
			nextStr = next.Format("2006-01-02 15:04:05 MST")
		}
		fmt.Printf("%-5d %-30s %-25s next %s\n", def.ID, def.Name, desc.Summary(), nextStr)
	}
	return nil
}

func runSchedulesCheck(cmd *cobra.Command, args []string) error {
	id, err := parseWorkflowID(args[0])
	if err != nil {
		return err
	}

	db, store, err := openWorkflowStore()
	if err != nil {
		return err
	}
	defer db.Close()

	def, err := store.Get(context.Background(), id)
	if err != nil {
		return err
	}

	desc, err := scheduler.ParseDescriptor(def.TriggerConfig)
	if err != nil {
		return fmt.Errorf("workflow %d has an unusable trigger: %w", id, err)
	}

	next := desc.Next(time.Now().UTC())
	if next.IsZero() {
		fmt.Printf("Workflow %d (%s): %s, never fires\n", id, def.Name, desc.Summary())
		return nil
	}

	fmt.Printf("Workflow %d (%s): %s, next fire %s\n",
		id, def.Name, desc.Summary(), next.Format("2006-01-02 15:04:05 MST"))
	return nil
}
