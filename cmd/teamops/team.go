package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"teamops/internal/credential"
	"teamops/internal/domain"
	"teamops/internal/engine"
	"teamops/internal/leveling"
	"teamops/internal/repo"
)

func profileCmd() *cobra.Command {
	p := &cobra.Command{
		Use:   "profile",
		Short: "Team member profiles",
		Long:  "A profile is created the first time an email acts. 'teamops profile login' remembers the profile in the workspace .env so later commands act as it.",
	}
	p.AddCommand(profileLoginCmd())
	p.AddCommand(profileShowCmd())
	p.AddCommand(profileListCmd())
	p.AddCommand(profileUpdateCmd())
	return p
}

func profileLoginCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Act as the profile for email (created on first login)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := strings.TrimSpace(args[0])
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProfileByEmail(ctx, email)
				if errors.Is(err, repo.ErrNotFound) {
					p, _, err = e.EnsureProfile(ctx, engine.NewIdentity(), email, name)
				}
				if err != nil {
					return err
				}
				if err := setEnvValue(viper.GetString("workspace"), "TEAMOPS_ACTOR_ID", p.ID); err != nil {
					return fmt.Errorf("write .env: %w", err)
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name for a new profile")
	return cmd
}

func profileShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the acting profile with its level standing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Profile) error {
				caps, err := e.Capabilities(ctx, actor.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"profile":      actor,
					"standing":     leveling.StandingFor(actor.XP),
					"capabilities": caps,
				})
			})
		},
	}
	return cmd
}

func profileListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List profiles by XP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				profiles, err := e.ListProfiles(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(profiles)
				}
				tw := newTable("ID", "Name", "Email", "Role", "Level", "XP")
				for _, p := range profiles {
					tw.AppendRow(table.Row{p.ID, p.DisplayName, p.Email, p.Role, p.Level, p.XP})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func profileUpdateCmd() *cobra.Command {
	var name, docID, avatar string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the acting profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Profile) error {
				p, err := e.UpdateProfile(ctx, engine.ProfileUpdateOptions{
					DisplayName: changedString(cmd, "name", name),
					GoogleDocID: changedString(cmd, "doc-id", docID),
					AvatarRef:   changedString(cmd, "avatar", avatar),
					ActorID:     actor.ID,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&docID, "doc-id", "", "linked accomplishment document id (empty unlinks)")
	cmd.Flags().StringVar(&avatar, "avatar", "", "avatar reference")
	return cmd
}

func messageCmd() *cobra.Command {
	msg := &cobra.Command{
		Use:   "message",
		Short: "Team messages",
		Long:  "Messages are team broadcasts, direct messages or kudos. Unread state is tracked per kind.",
	}
	msg.AddCommand(messageSendCmd())
	msg.AddCommand(messageInboxCmd())
	msg.AddCommand(messageReadCmd())
	return msg
}

func messageSendCmd() *cobra.Command {
	var opts engine.SendMessageOptions
	cmd := &cobra.Command{
		Use:   "send <content>",
		Short: "Send a broadcast, or a direct message with --to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Content = args[0]
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Profile) error {
				opts.ActorID = actor.ID
				m, err := e.SendMessage(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&opts.RecipientID, "to", "", "recipient profile id")
	cmd.Flags().StringVar(&opts.RelatedTaskID, "task", "", "related task id")
	return cmd
}

func messageInboxCmd() *cobra.Command {
	var kind string
	var limit int
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List messages visible to the acting profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Profile) error {
				msgs, err := e.Inbox(ctx, actor.ID, kind, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(msgs)
				}
				tw := newTable("ID", "Kind", "From", "Content", "Read", "At")
				for _, m := range msgs {
					tw.AppendRow(table.Row{m.ID, m.Kind, m.SenderName, m.Content, m.IsRead, m.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "team, direct or kudos (default all)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max messages")
	return cmd
}

func messageReadCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Mark messages read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Profile) error {
				n, err := e.MarkRead(ctx, actor.ID, kind)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"updated": n})
				}
				fmt.Printf("marked %d message(s) read\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "team, direct or kudos (default all)")
	return cmd
}

func kudosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kudos <recipient-id> <message>",
		Short: "Send kudos to a teammate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Profile) error {
				m, err := e.SendKudos(ctx, args[0], args[1], actor.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	return cmd
}

func accomplishCmd() *cobra.Command {
	acc := &cobra.Command{
		Use:   "accomplish",
		Short: "Accomplishments",
		Long:  "Record what you got done. Sharing posts it to the team; a linked document also gets a dated entry.",
	}
	acc.AddCommand(accomplishPostCmd())
	acc.AddCommand(accomplishListCmd())
	return acc
}

func accomplishPostCmd() *cobra.Command {
	var share bool
	cmd := &cobra.Command{
		Use:   "post <text>",
		Short: "Record an accomplishment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Profile) error {
				res, err := e.PostAccomplishment(ctx, actor.ID, args[0], share)
				if err != nil {
					return err
				}
				if res.Warning != "" && !viper.GetBool("json") {
					fmt.Println("warning:", res.Warning)
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().BoolVar(&share, "share", false, "post to the team feed")
	return cmd
}

func accomplishListCmd() *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accomplishments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListAccomplishments(ctx, author)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("At", "Author", "Text", "Shared")
				for _, a := range items {
					tw.AppendRow(table.Row{a.CreatedAt, a.AuthorID, a.Text, a.PostedToTeam})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&author, "author-id", "", "author filter")
	return cmd
}

func apiKeyCmd() *cobra.Command {
	k := &cobra.Command{
		Use:   "apikey",
		Short: "API keys for the HTTP API",
	}
	k.AddCommand(apiKeyCreateCmd())
	return k
}

func apiKeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key for the acting profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Profile) error {
				plain, key, err := e.CreateAPIKey(ctx, actor.ID, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "profile_id": key.ProfileID, "name": key.Name, "key": plain})
				}
				fmt.Println("key (shown once):", plain)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func tokenCmd() *cobra.Command {
	t := &cobra.Command{
		Use:   "token",
		Short: "Document sync token in the system keyring",
	}
	t.AddCommand(tokenSetCmd())
	t.AddCommand(tokenDeleteCmd())
	return t
}

// withCredentials opens the keyring named by the workspace docsync config.
func withCredentials(ctx context.Context, fn func(context.Context, credential.Store, domain.Profile) error) error {
	ws, closeFn, err := openWorkspace(ctx, nil)
	if err != nil {
		return err
	}
	defer closeFn()
	actor, err := resolveActor(ctx, ws.Engine)
	if err != nil {
		return err
	}
	store := ws.Credentials
	if store == nil {
		opened, err := credential.Open(ws.Config.DocSync.KeyringService, ws.Config.DocSync.KeyringFileDir)
		if err != nil {
			return err
		}
		store = &opened
	}
	return fn(ctx, *store, actor)
}

func tokenSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <token>",
		Short: "Store the acting profile's document token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCredentials(cmd.Context(), func(ctx context.Context, s credential.Store, actor domain.Profile) error {
				if err := s.SetToken(actor.ID, args[0]); err != nil {
					return err
				}
				fmt.Println("token stored for", actor.ID)
				return nil
			})
		},
	}
	return cmd
}

func tokenDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the acting profile's document token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCredentials(cmd.Context(), func(ctx context.Context, s credential.Store, actor domain.Profile) error {
				if err := s.DeleteToken(actor.ID); err != nil {
					return err
				}
				fmt.Println("token removed for", actor.ID)
				return nil
			})
		},
	}
	return cmd
}
