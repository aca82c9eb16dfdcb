package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/thornlabs/pulse/internal/database"
	"github.com/thornlabs/pulse/internal/executions"
	"github.com/thornlabs/pulse/internal/workflows"
)

var (
	wfTriggerType   string
	wfTriggerConfig string
	wfUserID        int64
	wfDisabled      bool
	runsLimit       int
)

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "Manage workflow definitions",
	Long: `Manage stored workflow definitions.

Examples:
  pulse workflows list
  pulse workflows create "nightly report" --trigger schedule --trigger-config '{"type":"cron","expression":"0 2 * * *"}'
  pulse workflows disable 3
  pulse workflows runs 3`,
}

var workflowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflow definitions",
	RunE:  runWorkflowsList,
}

var workflowsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a workflow definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowsCreate,
}

var workflowsEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  setEnabledCmd(true),
}

var workflowsDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  setEnabledCmd(false),
}

var workflowsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a workflow definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowsDelete,
}

var workflowsRunsCmd = &cobra.Command{
	Use:   "runs <id>",
	Short: "Show recent runs for a workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowsRuns,
}

func init() {
	workflowsCreateCmd.Flags().StringVar(&wfTriggerType, "trigger", "manual", "Trigger type (schedule, webhook, manual)")
	workflowsCreateCmd.Flags().StringVar(&wfTriggerConfig, "trigger-config", "{}", "Trigger configuration JSON")
	workflowsCreateCmd.Flags().Int64Var(&wfUserID, "user", 0, "Owning user ID")
	workflowsCreateCmd.Flags().BoolVar(&wfDisabled, "disabled", false, "Create the workflow disabled")

	workflowsRunsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to show")

	workflowsCmd.AddCommand(workflowsListCmd)
	workflowsCmd.AddCommand(workflowsCreateCmd)
	workflowsCmd.AddCommand(workflowsEnableCmd)
	workflowsCmd.AddCommand(workflowsDisableCmd)
	workflowsCmd.AddCommand(workflowsDeleteCmd)
	workflowsCmd.AddCommand(workflowsRunsCmd)

	rootCmd.AddCommand(workflowsCmd)
}

func openWorkflowStore() (*database.DB, *workflows.Store, error) {
	cfg := loadConfig()

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	return db, workflows.NewStore(db), nil
}

func parseWorkflowID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid workflow id %q", arg)
	}
	return id, nil
}

func runWorkflowsList(cmd *cobra.Command, args []string) error {
	db, store, err := openWorkflowStore()
	if err != nil {
		return err
	}
	defer db.Close()

	defs, err := store.List(context.Background())
	if err != nil {
		return err
	}

	if len(defs) == 0 {
		fmt.Println("No workflows defined")
		return nil
	}

	for _, def := range defs {
		state := "enabled"
		if !def.Enabled {
			state = "disabled"
		}
		fmt.Printf("%-5d %-30s %-10s %-9s %s\n",
			def.ID, def.Name, def.TriggerType, state, string(def.TriggerConfig))
	}
	return nil
}

func runWorkflowsCreate(cmd *cobra.Command, args []string) error {
	if !json.Valid([]byte(wfTriggerConfig)) {
		return fmt.Errorf("trigger config is not valid JSON")
	}

	db, store, err := openWorkflowStore()
	if err != nil {
		return err
	}
	defer db.Close()

	def := &workflows.Definition{
		UserID:        wfUserID,
		Name:          args[0],
		TriggerType:   workflows.TriggerType(wfTriggerType),
		TriggerConfig: []byte(wfTriggerConfig),
		Enabled:       !wfDisabled,
	}

	if err := store.Create(context.Background(), def); err != nil {
		return err
	}

	fmt.Printf("Created workflow %d (%s)\n", def.ID, def.Name)
	return nil
}

func setEnabledCmd(enabled bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseWorkflowID(args[0])
		if err != nil {
			return err
		}

		db, store, err := openWorkflowStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := store.SetEnabled(context.Background(), id, enabled); err != nil {
			return err
		}

		state := "enabled"
		if !enabled {
			state = "disabled"
		}
		fmt.Printf("Workflow %d %s\n", id, state)
		return nil
	}
}

func runWorkflowsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseWorkflowID(args[0])
	if err != nil {
		return err
	}

	db, store, err := openWorkflowStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Delete(context.Background(), id); err != nil {
		return err
	}

	fmt.Printf("Workflow %d deleted\n", id)
	return nil
}

func runWorkflowsRuns(cmd *cobra.Command, args []string) error {
	id, err := parseWorkflowID(args[0])
	if err != nil {
		return err
	}

	cfg := loadConfig()
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	runs, err := executions.NewStore(db).ListByWorkflow(context.Background(), id, runsLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Printf("No runs recorded for workflow %d\n", id)
		return nil
	}

	for _, run := range runs {
		line := fmt.Sprintf("%s  %-8s  started %s  %dms",
			run.ID, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"), run.DurationMs)
		if run.Error != "" {
			line += "  " + run.Error
		}
		fmt.Println(line)
	}
	return nil
}
