package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/platform/apierr"
)

var validate = validator.New()

type CreateCSVCommand struct {
	Name      string           `json:"name" validate:"required,max=255"`
	Type      csvimport.Type   `json:"type" validate:"required,oneof=PAPER"`
	Format    csvimport.Format `json:"format" validate:"omitempty,oneof=DEFAULT EXCEL_COMMA_DELIMITED"`
	Data      string           `json:"data"`
	CreatedBy uuid.UUID        `json:"created_by" validate:"required"`
}

// UpdateCSVCommand changes the non-nil fields only.
type UpdateCSVCommand struct {
	CSVID         uuid.UUID         `json:"csv_id" validate:"required"`
	ContributorID uuid.UUID         `json:"contributor_id" validate:"required"`
	Name          *string           `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Data          *string           `json:"data,omitempty"`
	Type          *csvimport.Type   `json:"type,omitempty" validate:"omitempty,oneof=PAPER"`
	Format        *csvimport.Format `json:"format,omitempty" validate:"omitempty,oneof=DEFAULT EXCEL_COMMA_DELIMITED"`
}

func (c UpdateCSVCommand) empty() bool {
	return c.Name == nil && c.Data == nil && c.Type == nil && c.Format == nil
}

func validateCommand(cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return apierr.New(http.StatusBadRequest, "invalid_command",
		fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))).
		WithProps(map[string]any{"fields": fields})
}
