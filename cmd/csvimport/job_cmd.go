package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/dataimport-backend/internal/data/repos"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/services"
)

// jobKind binds one CSV job family to its CSVService operations.
type jobKind struct {
	use     string
	short   string
	start   func(s services.CSVService, dbc dbctx.Context, id, user uuid.UUID) (uuid.UUID, error)
	status  func(s services.CSVService, dbc dbctx.Context, id, user uuid.UUID) (*services.JobStatus, error)
	results func(s services.CSVService, dbc dbctx.Context, id, user uuid.UUID, page repos.Page) (*services.JobResult, error)
	stop    func(s services.CSVService, dbc dbctx.Context, id, user uuid.UUID) error
}

var validationJob = jobKind{
	use:     "validate",
	short:   "Run and inspect the validation job of a CSV",
	start:   services.CSVService.Validate,
	status:  services.CSVService.FindValidationStatus,
	results: services.CSVService.FindValidationResults,
	stop:    services.CSVService.StopValidation,
}

var importJob = jobKind{
	use:     "import",
	short:   "Run and inspect the import job of a CSV",
	start:   services.CSVService.Import,
	status:  services.CSVService.FindImportStatus,
	results: services.CSVService.FindImportResults,
	stop:    services.CSVService.StopImport,
}

type jobOutput struct {
	CSVID uuid.UUID `json:"csv_id"`
	JobID uuid.UUID `json:"job_id"`
}

type stoppedOutput struct {
	CSVID   uuid.UUID `json:"csv_id"`
	Stopped bool      `json:"stopped"`
}

func newJobCmd(c *cli, k jobKind) *cobra.Command {
	cmd := &cobra.Command{Use: k.use, Short: k.short}

	// run resolves the csv id and the acting contributor before calling fn.
	run := func(fn func(cmd *cobra.Command, s services.CSVService, dbc dbctx.Context, id, user uuid.UUID) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, who, err := c.contributor(cmd.Context())
			if err != nil {
				return err
			}
			return fn(cmd, a.Services.CSVs, dbctx.Context{Ctx: cmd.Context()}, id, who.ID)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "start <csv-id>",
			Short: "Start or restart the job",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(cmd *cobra.Command, s services.CSVService, dbc dbctx.Context, id, user uuid.UUID) error {
				jobID, err := k.start(s, dbc, id, user)
				if err != nil {
					return err
				}
				return writeJSON(c.out, jobOutput{CSVID: id, JobID: jobID})
			}),
		},
		&cobra.Command{
			Use:   "status <csv-id>",
			Short: "Show the job status",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(cmd *cobra.Command, s services.CSVService, dbc dbctx.Context, id, user uuid.UUID) error {
				st, err := k.status(s, dbc, id, user)
				if err != nil {
					return err
				}
				return writeJSON(c.out, st)
			}),
		},
		&cobra.Command{
			Use:   "results <csv-id>",
			Short: "Show the job report with a page of row errors",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(cmd *cobra.Command, s services.CSVService, dbc dbctx.Context, id, user uuid.UUID) error {
				res, err := k.results(s, dbc, id, user, c.pageFlags())
				if err != nil {
					return err
				}
				return writeJSON(c.out, res)
			}),
		},
		&cobra.Command{
			Use:   "stop <csv-id>",
			Short: "Request the running job to stop",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(cmd *cobra.Command, s services.CSVService, dbc dbctx.Context, id, user uuid.UUID) error {
				if err := k.stop(s, dbc, id, user); err != nil {
					return err
				}
				return writeJSON(c.out, stoppedOutput{CSVID: id, Stopped: true})
			}),
		},
	)
	return cmd
}
