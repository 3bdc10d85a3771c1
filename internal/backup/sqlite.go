package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/tipbook/backoffice/internal/platform/db"
)

// stepPages is how many pages are copied between cancellation checks.
const stepPages = 256

// onlineCopy copies source into the database file at dst with the SQLite
// online backup API. The source stays readable and writable throughout, and
// ctx is checked between steps.
func onlineCopy(ctx context.Context, source *sql.DB, dst string) error {
	if source == nil {
		return errors.New("source database not configured")
	}
	target, err := sql.Open(db.DriverName, "file:"+dst)
	if err != nil {
		return err
	}
	defer target.Close()

	srcConn, err := source.Conn(ctx)
	if err != nil {
		return fmt.Errorf("source connection: %w", err)
	}
	defer srcConn.Close()

	dstConn, err := target.Conn(ctx)
	if err != nil {
		return fmt.Errorf("target connection: %w", err)
	}
	defer dstConn.Close()

	return dstConn.Raw(func(dstRaw interface{}) error {
		return srcConn.Raw(func(srcRaw interface{}) error {
			to, ok := dstRaw.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected target driver %T", dstRaw)
			}
			from, ok := srcRaw.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected source driver %T", srcRaw)
			}
			b, err := to.Backup("main", from, "main")
			if err != nil {
				return err
			}
			for {
				if err := ctx.Err(); err != nil {
					_ = b.Finish()
					return err
				}
				done, err := b.Step(stepPages)
				if err != nil {
					_ = b.Finish()
					return err
				}
				if done {
					return b.Finish()
				}
			}
		})
	})
}
