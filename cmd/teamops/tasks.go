package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"teamops/internal/app"
	"teamops/internal/domain"
	"teamops/internal/engine"
	"teamops/internal/repo"
	"teamops/internal/views"
)

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks move active -> submitted -> completed -> archived. Team members submit finished work with notes; founders approve it (crediting XP) or return it with feedback.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskPinCmd())
	task.AddCommand(taskSubmitCmd())
	task.AddCommand(taskCompleteCmd())
	task.AddCommand(taskFinishCmd())
	task.AddCommand(taskApproveCmd())
	task.AddCommand(taskReturnCmd())
	task.AddCommand(taskArchiveCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskPhotoCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDashboard(cmd.Context(), func(ctx context.Context, d *app.Dashboard) error {
				t, err := d.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (generated if omitted)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority: low, medium, high (default medium)")
	cmd.Flags().StringVar(&opts.Impact, "impact", "", "impact: small, medium, large (default medium)")
	cmd.Flags().StringVar(&opts.Company, "company", "", "company id or name")
	cmd.Flags().StringVar(&opts.AssigneeID, "assign", "", "assignee profile id")
	cmd.Flags().StringVar(&opts.Link, "link", "", "reference link")
	cmd.Flags().BoolVar(&opts.Pinned, "pin", false, "pin to focus")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var q repo.TaskQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.ListTasks(ctx, q)
				if err != nil {
					return err
				}
				return printTasks(tasks)
			})
		},
	}
	cmd.Flags().StringVar(&q.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&q.AssigneeID, "assignee-id", "", "assignee filter")
	cmd.Flags().StringVar(&q.CompanyID, "company-id", "", "company filter")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "max tasks")
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, description, due, priority, impact, company, link, assign string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields",
		Long:  "Edits fields only; status changes go through submit, complete, approve, return and archive. Pass an empty value to clear due, company, link or assignee.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{
				ID:          args[0],
				Title:       changedString(cmd, "title", title),
				Description: changedString(cmd, "description", description),
				DueDate:     changedString(cmd, "due", due),
				Priority:    changedString(cmd, "priority", priority),
				Impact:      changedString(cmd, "impact", impact),
				Company:     changedString(cmd, "company", company),
				Link:        changedString(cmd, "link", link),
				AssigneeID:  changedString(cmd, "assign", assign),
			}
			return withDashboard(cmd.Context(), func(ctx context.Context, d *app.Dashboard) error {
				t, err := d.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&priority, "priority", "", "priority")
	cmd.Flags().StringVar(&impact, "impact", "", "impact (re-derives the estimate)")
	cmd.Flags().StringVar(&company, "company", "", "company id or name")
	cmd.Flags().StringVar(&link, "link", "", "reference link")
	cmd.Flags().StringVar(&assign, "assign", "", "assignee profile id")
	return cmd
}

// taskActionCmd builds the single-argument task transitions that run through
// the dashboard.
func taskActionCmd(use, short string, fn func(ctx context.Context, d *app.Dashboard, id string) (domain.Task, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDashboard(cmd.Context(), func(ctx context.Context, d *app.Dashboard) error {
				t, err := fn(ctx, d, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskPinCmd() *cobra.Command {
	return taskActionCmd("pin", "Toggle the focus pin", func(ctx context.Context, d *app.Dashboard, id string) (domain.Task, error) {
		return d.TogglePin(ctx, id)
	})
}

func taskArchiveCmd() *cobra.Command {
	return taskActionCmd("archive", "Archive a completed task", func(ctx context.Context, d *app.Dashboard, id string) (domain.Task, error) {
		return d.Archive(ctx, id)
	})
}

func taskSubmitCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "submit <id>",
		Short: "Submit task for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDashboard(cmd.Context(), func(ctx context.Context, d *app.Dashboard) error {
				t, err := d.Submit(ctx, args[0], notes)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "completion notes")
	return cmd
}

func taskCompleteCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete an active task directly (founders)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Profile) error {
				res, err := e.CompleteTask(ctx, args[0], notes, actor.ID)
				if err != nil {
					return err
				}
				return printCompletion(res)
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "completion notes")
	return cmd
}

func taskFinishCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "finish <id>",
		Short: "Finish a task: completes for founders, submits for review otherwise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDashboard(cmd.Context(), func(ctx context.Context, d *app.Dashboard) error {
				res, err := d.Finish(ctx, args[0], notes)
				if err != nil {
					return err
				}
				return printCompletion(res)
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "completion notes")
	return cmd
}

func taskApproveCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a submitted task and credit XP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDashboard(cmd.Context(), func(ctx context.Context, d *app.Dashboard) error {
				res, err := d.Approve(ctx, args[0], message)
				if err != nil {
					return err
				}
				return printCompletion(res)
			})
		},
	}
	cmd.Flags().StringVar(&message, "message", "", "kudos message to the assignee")
	return cmd
}

func taskReturnCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "return <id>",
		Short: "Return a submitted task with feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDashboard(cmd.Context(), func(ctx context.Context, d *app.Dashboard) error {
				t, err := d.Return(ctx, args[0], message)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&message, "message", "", "feedback for the assignee")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDashboard(cmd.Context(), func(ctx context.Context, d *app.Dashboard) error {
				if err := d.Delete(ctx, args[0]); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"deleted": args[0]})
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
	return cmd
}

func taskPhotoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photo <id> <file>",
		Short: "Attach a photo to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			name := filepath.Base(args[1])
			contentType := mime.TypeByExtension(filepath.Ext(name))
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Profile) error {
				t, err := e.AttachPhoto(ctx, args[0], actor.ID, name, contentType, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func boardCmd() *cobra.Command {
	f := views.AllFilter()
	var search string
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the task board",
		Long:  "Buckets the visible tasks into focus, active, submitted, completed and archived. Founders see every task, team members their own. Use --company none or --assignee unassigned for empty values.",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := f
			if filter.Company == "none" {
				filter.Company = ""
			}
			if filter.Assignee == "unassigned" {
				filter.Assignee = ""
			}
			return withDashboard(cmd.Context(), func(ctx context.Context, d *app.Dashboard) error {
				board := d.Board(filter, search)
				if viper.GetBool("json") {
					return printJSON(board)
				}
				fmt.Printf("%d tasks, %d completed this week, %d this month\n", board.Total, board.Completion.ThisWeek, board.Completion.ThisMonth)
				for _, bucket := range []struct {
					name  string
					tasks []domain.Task
				}{
					{"Focus", board.Focus},
					{"Active", board.Active},
					{"Submitted", board.Submitted},
					{"Completed", board.Completed},
					{"Archived", board.Archived},
				} {
					if len(bucket.tasks) == 0 {
						continue
					}
					fmt.Printf("\n%s\n", bucket.name)
					if err := printTasks(bucket.tasks); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Company, "company", views.All, "company id, all or none")
	cmd.Flags().StringVar(&f.Impact, "impact", views.All, "impact filter")
	cmd.Flags().StringVar(&f.Priority, "priority", views.All, "priority filter")
	cmd.Flags().StringVar(&f.Status, "status", views.All, "status filter")
	cmd.Flags().StringVar(&f.Assignee, "assignee", views.All, "assignee id, all or unassigned")
	cmd.Flags().StringVarP(&search, "search", "q", "", "search titles and descriptions")
	return cmd
}

func printTasks(tasks []domain.Task) error {
	if viper.GetBool("json") {
		return printJSON(tasks)
	}
	tw := newTable("ID", "Title", "Status", "Priority", "Impact", "Assignee", "Company", "Due")
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, t.Impact, t.AssigneeName, t.CompanyName, stringValue(t.DueDate)})
	}
	tw.Render()
	return nil
}

func printCompletion(res engine.CompletionResult) error {
	if viper.GetBool("json") {
		return printJSON(res)
	}
	if res.Submitted {
		fmt.Printf("submitted %s for review\n", res.Task.ID)
		return nil
	}
	fmt.Printf("completed %s: +%d XP\n", res.Task.ID, res.XPAwarded)
	s := res.Standing
	fmt.Printf("level %d %s, %d XP (%d%% to next)\n", s.Level, s.Title, s.XP, s.Percent)
	if res.LeveledUp {
		fmt.Println("level up!")
	}
	return nil
}
