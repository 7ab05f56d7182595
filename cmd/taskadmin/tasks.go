package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/charlesng35/taskhub/internal/services"
)

type taskReportRow struct {
	ID        string                `json:"id"`
	Title     string                `json:"title"`
	Deadline  *time.Time            `json:"deadline,omitempty"`
	Assignees []string              `json:"assignees"`
	Progress  services.TaskProgress `json:"progress"`
}

func tasksCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{Use: "tasks", Short: "Inspect tasks"}
	cmd.AddCommand(tasksReportCmd(env))
	return cmd
}

func tasksReportCmd(env *cliEnv) *cobra.Command {
	var overdueOnly bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show every task with its completion progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := services.NewTaskLedger(env.db)
			if err != nil {
				return err
			}
			tasks, err := ledger.ListAll(cmd.Context())
			if err != nil {
				return err
			}

			now := time.Now()
			rows := make([]taskReportRow, 0, len(tasks))
			for _, task := range tasks {
				progress := services.ComputeProgress(task, now)
				if overdueOnly && !progress.Overdue {
					continue
				}
				rows = append(rows, taskReportRow{
					ID:        task.ID,
					Title:     task.Title,
					Deadline:  task.Deadline,
					Assignees: task.AssigneeIDs(),
					Progress:  progress,
				})
			}

			if env.jsonMode {
				return printJSON(cmd.OutOrStdout(), rows)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"ID", "Title", "Assignees", "Done", "Progress", "Status", "Deadline"})
			for _, row := range rows {
				deadline := "-"
				if row.Deadline != nil {
					deadline = row.Deadline.UTC().Format(time.RFC3339)
					if row.Progress.Overdue {
						deadline += " (overdue)"
					}
				}
				tw.AppendRow(table.Row{
					row.ID,
					row.Title,
					strings.Join(row.Assignees, ", "),
					fmt.Sprintf("%d/%d", row.Progress.Completed, row.Progress.Total),
					fmt.Sprintf("%d%%", row.Progress.Percent),
					row.Progress.Status,
					deadline,
				})
			}
			tw.AppendFooter(table.Row{"", "", "", "", "", "Total", len(rows)})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&overdueOnly, "overdue", false, "only list overdue tasks")
	return cmd
}
