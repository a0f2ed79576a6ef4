package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"teamops/internal/domain"
	"teamops/internal/engine"
)

// deleteCmd builds "<noun> delete <id>" for founder-managed content.
func deleteCmd(noun string, del func(ctx context.Context, e engine.Engine, actorID, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete " + noun,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Profile) error {
				if err := del(ctx, e, actor.ID, args[0]); err != nil {
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
}

func companyCmd() *cobra.Command {
	c := &cobra.Command{Use: "company", Short: "Companies the team works for"}
	c.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListCompanies(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Name")
				for _, co := range items {
					tw.AppendRow(table.Row{co.ID, co.Name})
				}
				tw.Render()
				return nil
			})
		},
	})
	c.AddCommand(companyCreateCmd())
	c.AddCommand(deleteCmd("company", func(ctx context.Context, e engine.Engine, actorID, id string) error {
		return e.DeleteCompany(ctx, actorID, id)
	}))
	return c
}

func companyCreateCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Profile) error {
				co, err := e.CreateCompany(ctx, actor.ID, id, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(co)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "company id (derived from the name if omitted)")
	return cmd
}

func clientCmd() *cobra.Command {
	c := &cobra.Command{Use: "client", Short: "Client contacts"}
	var companyID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListClients(ctx, companyID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Name", "Company", "Contact")
				for _, cl := range items {
					tw.AppendRow(table.Row{cl.ID, cl.Name, stringValue(cl.CompanyID), cl.ContactEmail})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&companyID, "company-id", "", "company filter")
	c.AddCommand(list)

	var opts engine.ClientOptions
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Name = args[0]
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Profile) error {
				opts.ActorID = actor.ID
				cl, err := e.CreateClient(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(cl)
			})
		},
	}
	create.Flags().StringVar(&opts.Company, "company", "", "company id or name")
	create.Flags().StringVar(&opts.ContactEmail, "contact-email", "", "contact email")
	create.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	c.AddCommand(create)
	c.AddCommand(deleteCmd("client", func(ctx context.Context, e engine.Engine, actorID, id string) error {
		return e.DeleteClient(ctx, actorID, id)
	}))
	return c
}

func productCmd() *cobra.Command {
	c := &cobra.Command{Use: "product", Short: "Products per company"}
	var companyID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List products",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListProducts(ctx, companyID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Name", "Company", "Description")
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, stringValue(p.CompanyID), p.Description})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&companyID, "company-id", "", "company filter")
	c.AddCommand(list)

	var opts engine.ProductOptions
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Name = args[0]
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Profile) error {
				opts.ActorID = actor.ID
				p, err := e.CreateProduct(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	create.Flags().StringVar(&opts.Company, "company", "", "company id or name")
	create.Flags().StringVar(&opts.Description, "description", "", "description")
	c.AddCommand(create)
	c.AddCommand(deleteCmd("product", func(ctx context.Context, e engine.Engine, actorID, id string) error {
		return e.DeleteProduct(ctx, actorID, id)
	}))
	return c
}

func meetingCmd() *cobra.Command {
	m := &cobra.Command{Use: "meeting", Short: "Scheduled meetings"}
	var upcoming bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListMeetings(ctx, upcoming)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "When", "Title", "Minutes", "Location")
				for _, mt := range items {
					tw.AppendRow(table.Row{mt.ID, mt.ScheduledAt, mt.Title, mt.DurationMinutes, mt.Location})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().BoolVar(&upcoming, "upcoming", false, "only meetings from now on")
	m.AddCommand(list)
	m.AddCommand(meetingScheduleCmd(false))
	m.AddCommand(meetingScheduleCmd(true))
	m.AddCommand(deleteCmd("meeting", func(ctx context.Context, e engine.Engine, actorID, id string) error {
		return e.DeleteMeeting(ctx, actorID, id)
	}))
	return m
}

// meetingScheduleCmd builds "create" or, with update set, "update <id>".
// Empty fields are left unchanged on update.
func meetingScheduleCmd(update bool) *cobra.Command {
	var opts engine.MeetingOptions
	use, short, argCheck := "create", "Schedule meeting", cobra.NoArgs
	if update {
		use, short, argCheck = "update <id>", "Edit meeting", cobra.ExactArgs(1)
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  argCheck,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Profile) error {
				opts.ActorID = actor.ID
				var (
					mt  domain.Meeting
					err error
				)
				if update {
					opts.ID = args[0]
					mt, err = e.UpdateMeeting(ctx, opts)
				} else {
					mt, err = e.CreateMeeting(ctx, opts)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(mt)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.ScheduledAt, "at", "", "start time (RFC3339)")
	cmd.Flags().IntVar(&opts.DurationMinutes, "minutes", 0, "duration in minutes")
	cmd.Flags().StringVar(&opts.Company, "company", "", "company id or name")
	cmd.Flags().StringVar(&opts.Location, "location", "", "location or call link")
	cmd.Flags().StringVar(&opts.Agenda, "agenda", "", "agenda")
	if !update {
		_ = cmd.MarkFlagRequired("title")
		_ = cmd.MarkFlagRequired("at")
	}
	return cmd
}

func sopCmd() *cobra.Command {
	s := &cobra.Command{Use: "sop", Short: "Playbook entries"}
	var category string
	list := &cobra.Command{
		Use:   "list",
		Short: "List playbook entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListSOPs(ctx, category)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Category", "Title", "Updated")
				for _, sop := range items {
					tw.AppendRow(table.Row{sop.ID, sop.Category, sop.Title, sop.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&category, "category", "", "category filter")
	s.AddCommand(list)
	s.AddCommand(sopWriteCmd(false))
	s.AddCommand(sopWriteCmd(true))
	s.AddCommand(deleteCmd("playbook entry", func(ctx context.Context, e engine.Engine, actorID, id string) error {
		return e.DeleteSOP(ctx, actorID, id)
	}))
	return s
}

func sopWriteCmd(update bool) *cobra.Command {
	var title, category, body, company string
	use, short, argCheck := "create", "Create playbook entry", cobra.NoArgs
	if update {
		use, short, argCheck = "update <id>", "Edit playbook entry", cobra.ExactArgs(1)
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  argCheck,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.SOPOptions{
				Title:    changedString(cmd, "title", title),
				Category: changedString(cmd, "category", category),
				Body:     changedString(cmd, "body", body),
				Company:  changedString(cmd, "company", company),
			}
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Profile) error {
				opts.ActorID = actor.ID
				var (
					sop domain.SOP
					err error
				)
				if update {
					opts.ID = args[0]
					sop, err = e.UpdateSOP(ctx, opts)
				} else {
					sop, err = e.CreateSOP(ctx, opts)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(sop)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&body, "body", "", "markdown body")
	cmd.Flags().StringVar(&company, "company", "", "company id or name (empty for team-wide)")
	return cmd
}
