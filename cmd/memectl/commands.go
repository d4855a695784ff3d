package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/timmy/memebot/internal/app"
	"github.com/timmy/memebot/internal/domain"
	"github.com/timmy/memebot/internal/repository"
)

// target holds the --user/--chat pair shared by most commands.
type target struct {
	user int64
	chat int64
}

func (t *target) bind(cmd *cobra.Command) {
	cmd.Flags().Int64VarP(&t.user, "user", "u", 0, "user id")
	cmd.Flags().Int64Var(&t.chat, "chat", 0, "group chat id")
}

// identity resolves exactly one of --user or --chat.
func (t target) identity() (domain.Identity, error) {
	switch {
	case t.user != 0 && t.chat != 0:
		return domain.Identity{}, errors.New("pass either --user or --chat, not both")
	case t.chat != 0:
		return domain.ChatIdentity(t.chat), nil
	case t.user != 0:
		return domain.UserIdentity(t.user), nil
	default:
		return domain.Identity{}, errors.New("one of --user or --chat is required")
	}
}

// parseFetchArgs reads the optional positional keywords and language.
func parseFetchArgs(args []string) (string, domain.Language, error) {
	var keywords string
	lang := domain.LanguagePrimary
	if len(args) > 0 {
		keywords = args[0]
	}
	if len(args) > 1 {
		parsed, err := domain.ParseLanguage(args[1])
		if err != nil {
			return "", "", err
		}
		lang = parsed
	}
	return keywords, lang, nil
}

func fetchCmd() *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "fetch [keywords] [eng|rus]",
		Short: "Fetch one meme the target has not seen and print its local path",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := t.identity()
			if err != nil {
				return err
			}
			keywords, lang, err := parseFetchArgs(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return withApp(ctx, func(a *app.App) error {
				d, err := a.Delivery.FetchFor(ctx, identity, keywords, lang)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), d.Path)
				return nil
			})
		},
	}
	t.bind(cmd)
	return cmd
}

func pruneCmd() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest downloaded files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("keep") {
				keep = cfg.Delivery.KeepFiles
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				removed, err := a.Store.Prune(keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d files from %s\n", removed, a.Store.Dir())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 500, "number of newest files to keep")
	return cmd
}

func lockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Inspect or clear action locks",
	}

	var showTarget target
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the lock state for a user in a chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				code, err := a.Locks.State(cmd.Context(), showTarget.user, showTarget.chat)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user=%d chat=%d state=%s (%d)\n", showTarget.user, showTarget.chat, code, int(code))
				return nil
			})
		},
	}
	showTarget.bind(showCmd)
	_ = showCmd.MarkFlagRequired("user")

	var clearTarget target
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop the lock for a user in a chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return a.Locks.Cancel(cmd.Context(), clearTarget.user, clearTarget.chat)
			})
		},
	}
	clearTarget.bind(clearCmd)
	_ = clearCmd.MarkFlagRequired("user")

	cmd.AddCommand(showCmd, clearCmd)
	return cmd
}

func registerCmd() *cobra.Command {
	var t target
	var language string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user or group chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := t.identity()
			if err != nil {
				return err
			}
			lang, err := domain.ParseLanguage(language)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Memes.Register(cmd.Context(), identity, lang); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s)\n", identity, lang)
				return nil
			})
		},
	}
	t.bind(cmd)
	cmd.Flags().StringVarP(&language, "lang", "l", "eng", "interface language: eng or rus")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbCfg := cfg.Database
			dbCfg.AutoMigrate = false
			db, err := repository.InitDB(&dbCfg)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := repository.Migrate(db); err != nil {
				return err
			}
			log.Info("Schema is up to date")
			return nil
		},
	}
}
