package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/platform/apierr"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/services"
)

type idOutput struct {
	ID uuid.UUID `json:"id"`
}

type listOutput struct {
	Items []*csvimport.CSV `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Size  int              `json:"size"`
}

// readData reads path, or stdin for "-".
func readData(cmd *cobra.Command, path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

func parseID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, apierr.New(http.StatusBadRequest, "invalid_command", fmt.Errorf("invalid csv id %q: %w", arg, err))
	}
	return id, nil
}

func newUploadCmd(c *cli) *cobra.Command {
	var name, file, format, typ string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, who, err := c.contributor(cmd.Context())
			if err != nil {
				return err
			}
			data, err := readData(cmd, file)
			if err != nil {
				return err
			}
			id, err := a.Services.CSVs.Create(dbctx.Context{Ctx: cmd.Context()}, services.CreateCSVCommand{
				Name:      name,
				Type:      csvimport.Type(typ),
				Format:    csvimport.Format(format),
				Data:      data,
				CreatedBy: who.ID,
			})
			if err != nil {
				return err
			}
			return writeJSON(c.out, idOutput{ID: id})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "CSV name (required)")
	cmd.Flags().StringVar(&file, "file", "", "CSV file, - for stdin (required)")
	cmd.Flags().StringVar(&format, "format", string(csvimport.FormatDefault), "DEFAULT or EXCEL_COMMA_DELIMITED")
	cmd.Flags().StringVar(&typ, "type", string(csvimport.TypePaper), "CSV type")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newUpdateCmd(c *cli) *cobra.Command {
	var name, file, format, typ string
	cmd := &cobra.Command{
		Use:   "update <csv-id>",
		Short: "Change name, data, type or format of a CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, who, err := c.contributor(cmd.Context())
			if err != nil {
				return err
			}
			upd := services.UpdateCSVCommand{CSVID: id, ContributorID: who.ID}
			flags := cmd.Flags()
			if flags.Changed("name") {
				upd.Name = &name
			}
			if flags.Changed("file") {
				data, err := readData(cmd, file)
				if err != nil {
					return err
				}
				upd.Data = &data
			}
			if flags.Changed("format") {
				f := csvimport.Format(format)
				upd.Format = &f
			}
			if flags.Changed("type") {
				t := csvimport.Type(typ)
				upd.Type = &t
			}
			if err := a.Services.CSVs.Update(dbctx.Context{Ctx: cmd.Context()}, upd); err != nil {
				return err
			}
			return writeJSON(c.out, idOutput{ID: id})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&file, "file", "", "New CSV file, - for stdin")
	cmd.Flags().StringVar(&format, "format", "", "New format")
	cmd.Flags().StringVar(&typ, "type", "", "New type")
	return cmd
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <csv-id>",
		Short: "Delete a CSV with its staging, results and jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, who, err := c.contributor(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Services.CSVs.DeleteByID(dbctx.Context{Ctx: cmd.Context()}, id, who.ID); err != nil {
				return err
			}
			return writeJSON(c.out, idOutput{ID: id})
		},
	}
}

func newGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get <csv-id>",
		Short: "Show a CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, who, err := c.contributor(cmd.Context())
			if err != nil {
				return err
			}
			csv, err := a.Services.CSVs.FindByIDAndCreatedBy(dbctx.Context{Ctx: cmd.Context()}, id, who.ID)
			if err != nil {
				return err
			}
			return writeJSON(c.out, csv)
		},
	}
}

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the CSVs of the acting contributor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, who, err := c.contributor(cmd.Context())
			if err != nil {
				return err
			}
			page := c.pageFlags()
			items, total, err := a.Services.CSVs.FindAllByCreatedBy(dbctx.Context{Ctx: cmd.Context()}, who.ID, page)
			if err != nil {
				return err
			}
			return writeJSON(c.out, listOutput{Items: items, Total: total, Page: page.Number, Size: page.Size})
		},
	}
}

func newDataCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "data <csv-id>",
		Short: "Print the raw CSV data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, who, err := c.contributor(cmd.Context())
			if err != nil {
				return err
			}
			csv, err := a.Services.CSVs.FindByIDAndCreatedBy(dbctx.Context{Ctx: cmd.Context()}, id, who.ID)
			if err != nil {
				return err
			}
			_, err = io.WriteString(c.out, csv.Data)
			return err
		},
	}
}
