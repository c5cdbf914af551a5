package machine

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dukerupert/roomies/internal/apperr"
	"github.com/dukerupert/roomies/internal/household"
	"github.com/dukerupert/roomies/internal/model"
	"github.com/dukerupert/roomies/internal/store"
)

func machineRow(status model.MachineStatus, occupiedBy any) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "household_id", "name", "image_url", "status", "occupied_by", "created_at", "updated_at"}).
		AddRow(int64(4), int64(1), "Washer", nil, string(status), occupiedBy, now, now)
}

func TestOccupyRetriesOnlyTheReadBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	policy := store.CallPolicy{Timeout: time.Second, Backoff: time.Millisecond}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(db, household.NewDirectory(db, policy, nil, logger), policy, nil, logger)

	selectMachine := regexp.QuoteMeta(`FROM machines WHERE id = ?`)
	now := time.Now()
	mock.ExpectQuery(selectMachine).WithArgs(int64(4)).WillReturnRows(machineRow(model.MachineAvailable, nil))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM people WHERE id = ?`)).WithArgs(int64(2)).WillReturnRows(
		sqlmock.NewRows([]string{"id", "display_name", "household_id", "created_at", "updated_at"}).
			AddRow(int64(2), "Bob", int64(1), now, now))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE machines SET status = ?, occupied_by = ?`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(selectMachine).WithArgs(int64(4)).WillReturnError(apperr.ErrTransient)
	mock.ExpectQuery(selectMachine).WithArgs(int64(4)).WillReturnRows(machineRow(model.MachineBusy, int64(2)))

	m, err := svc.Occupy(context.Background(), 2, 4)
	if err != nil {
		t.Fatalf("occupy: %v", err)
	}
	if m.Status != model.MachineBusy || m.OccupiedBy == nil || *m.OccupiedBy != 2 {
		t.Errorf("machine = %+v, want busy by 2", m)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
