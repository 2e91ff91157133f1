package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"chirp/internal/adapters/httpapi/middleware"
	"chirp/internal/client/api"
	"chirp/internal/client/cache"
	"chirp/internal/client/view"
	"chirp/internal/core/profile"
	"chirp/internal/query"

	"github.com/spf13/cobra"
)

type app struct {
	server  string
	token   string
	timeout time.Duration
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "chirpctl",
		Short:         "Read and post chirps",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.server, "server", envOr("CHIRP_SERVER", "http://localhost:8080"), "server base URL")
	root.PersistentFlags().StringVar(&a.token, "token", os.Getenv("CHIRP_TOKEN"), "session token")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		a.queryCmd("feed", "Show the global feed", cobra.NoArgs, func([]string) query.Key { return query.FeedAll() }),
		a.queryCmd("user <userId>", "Show a user's posts", cobra.ExactArgs(1), func(args []string) query.Key { return query.FeedByAuthor(args[0]) }),
		a.queryCmd("post <id>", "Show one post", cobra.ExactArgs(1), func(args []string) query.Key { return query.PostByID(args[0]) }),
		a.queryCmd("profile <username>", "Show a profile", cobra.ExactArgs(1), func(args []string) query.Key {
			return query.ProfileByUsername(strings.TrimPrefix(args[0], "@"))
		}),
		a.pageCmd(),
		a.submitCmd(),
		tokenCmd(),
	)
	return root
}

func (a *app) client() (*api.Client, *cache.Cache) {
	c := api.New(a.server, a.token)
	c.HTTP.Timeout = a.timeout
	return c, cache.New(c, nil)
}

func (a *app) queryCmd(use, short string, args cobra.PositionalArgs, key func([]string) query.Key) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			_, qc := a.client()
			defer qc.Close()
			k := key(argv)
			s, err := qc.Load(cmd.Context(), k)
			if err != nil {
				return err
			}
			return view.New(cmd.OutOrStdout()).Render(k, s)
		},
	}
}

// pageCmd renders a page from the state embedded in it, without querying
// the RPC surface.
func (a *app) pageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "page <path>",
		Short: "Render a pre-rendered page from its embedded state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, qc := a.client()
			defer qc.Close()
			state, err := c.PageState(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := qc.Hydrate(state); err != nil {
				return err
			}
			r := view.New(cmd.OutOrStdout())
			for raw := range state {
				k, err := query.ParseKey(raw)
				if err != nil {
					return err
				}
				if err := r.Render(k, qc.Peek(k)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) submitCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "submit <content>",
		Short: "Post a chirp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.token == "" {
				return errors.New("a session token is required (--token or CHIRP_TOKEN)")
			}
			c, qc := a.client()
			defer qc.Close()
			ctx := cmd.Context()

			var author profile.AuthorProfile
			if username != "" {
				if p, err := c.GetUserByUsername(ctx, strings.TrimPrefix(username, "@")); err == nil {
					author = p
				}
			}
			// the feed is loaded first so the new post lands in a live entry
			if _, err := qc.Load(ctx, query.FeedAll()); err != nil {
				return err
			}
			p, err := qc.SubmitPost(ctx, c, author, args[0])
			if err != nil {
				return errors.New(view.SubmitError(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "posted %s\n", p.ID)

			s, err := qc.Load(ctx, query.FeedAll())
			if err != nil {
				return err
			}
			return view.New(cmd.OutOrStdout()).Render(query.FeedAll(), s)
		},
	}
	cmd.Flags().StringVar(&username, "as", "", "your username, for showing the post before the feed reloads")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <userId>",
		Short: "Mint a development session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			if !profile.ValidID(args[0]) {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			tok, err := middleware.IssueToken([]byte(secret), args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "session signing secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
