package dbctx

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"
)

func TestInTxReusesOpenTransaction(t *testing.T) {
	tx := &gorm.DB{}
	outer := Context{Ctx: context.Background(), Tx: tx}
	boom := errors.New("boom")
	var seen *gorm.DB
	err := outer.InTx(nil, func(inner Context) error {
		seen = inner.Tx
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error: want=%v got=%v", boom, err)
	}
	if seen != tx {
		t.Fatalf("tx: want=%p got=%p", tx, seen)
	}
}
