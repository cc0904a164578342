package csv_validate

import (
	"context"

	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
)

func dbc() dbctx.Context { return dbctx.Context{Ctx: context.Background()} }
