package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/dataimport-backend/internal/platform/apierr"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
)

type tokenOutput struct {
	ContributorID uuid.UUID  `json:"contributor_id"`
	Token         string     `json:"token"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// Contributor commands act with direct database access and take no token.
func newContributorCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{Use: "contributor", Short: "Manage contributors and their tokens"}
	cmd.AddCommand(newContributorAddCmd(c), newTokenCmd(c))
	return cmd
}

func newContributorAddCmd(c *cli) *cobra.Command {
	var (
		name  string
		admin bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a contributor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			who, err := a.Services.Auth.RegisterContributor(dbctx.Context{Ctx: cmd.Context()}, name, admin)
			if err != nil {
				return err
			}
			return writeJSON(c.out, who)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	cmd.Flags().BoolVar(&admin, "admin", false, "Allow acting on every contributor's CSVs")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newTokenCmd(c *cli) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <contributor-id>",
		Short: "Issue a token for a contributor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return apierr.New(http.StatusBadRequest, "invalid_command", fmt.Errorf("invalid contributor id %q: %w", args[0], err))
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			who, err := a.Repos.Contributors.GetByID(dbctx.Context{Ctx: cmd.Context()}, id)
			if err != nil {
				return err
			}
			if who == nil {
				return apierr.New(http.StatusNotFound, "contributor_not_found", fmt.Errorf("contributor %s not found", id))
			}
			token, err := a.Services.Auth.IssueToken(who, ttl)
			if err != nil {
				return err
			}
			out := tokenOutput{ContributorID: who.ID, Token: token}
			if ttl > 0 {
				exp := time.Now().Add(ttl).UTC()
				out.ExpiresAt = &exp
			}
			return writeJSON(c.out, out)
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "Token lifetime, 0 for no expiry")
	return cmd
}
