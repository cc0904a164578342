package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/dataimport-backend/internal/app"
	"github.com/yungbote/dataimport-backend/internal/data/repos"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/platform/apierr"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
)

type cli struct {
	token string
	page  int
	size  int
	out   io.Writer

	app *app.App
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "csvimport",
		Short:         "Upload, validate and import paper CSVs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&c.token, "token", os.Getenv("CSVIMPORT_TOKEN"), "Contributor token (env CSVIMPORT_TOKEN)")
	cmd.PersistentFlags().IntVar(&c.page, "page", 0, "Result page, zero based")
	cmd.PersistentFlags().IntVar(&c.size, "size", 20, "Result page size")

	cmd.AddCommand(
		newUploadCmd(c),
		newUpdateCmd(c),
		newDeleteCmd(c),
		newGetCmd(c),
		newListCmd(c),
		newDataCmd(c),
		newJobCmd(c, validationJob),
		newJobCmd(c, importJob),
		newContributorCmd(c),
		newJanitorCmd(c),
	)
	return cmd
}

func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{out: os.Stdout}
	defer c.close()

	err := newRootCmd(c).ExecuteContext(ctx)
	if err != nil {
		_ = writeJSON(os.Stderr, problemOf(err))
	}
	return exitCode(err)
}

// open wires the application once per invocation.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := app.New(ctx)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close(context.Background())
	}
}

// contributor resolves the acting contributor from --token.
func (c *cli) contributor(ctx context.Context) (*app.App, *csvimport.Contributor, error) {
	if c.token == "" {
		return nil, nil, c.missingToken()
	}
	a, err := c.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	who, err := a.Services.Auth.ContributorFromToken(dbctx.Context{Ctx: ctx}, c.token)
	if err != nil {
		return nil, nil, err
	}
	return a, who, nil
}

func (c *cli) missingToken() error {
	return apierr.New(http.StatusUnauthorized, "invalid_token", fmt.Errorf("--token or CSVIMPORT_TOKEN required"))
}

func (c *cli) pageFlags() repos.Page {
	return repos.Page{Number: c.page, Size: c.size}
}
