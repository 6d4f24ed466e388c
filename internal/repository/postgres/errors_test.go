package postgres

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/booking-api/pkg/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want errors.Kind
	}{
		{
			name: "nil passes through",
			in:   nil,
			want: errors.KindUnknown,
		},
		{
			name: "no rows becomes not found",
			in:   sql.ErrNoRows,
			want: errors.KindNotFound,
		},
		{
			name: "insufficient privilege",
			in:   &pq.Error{Code: "42501"},
			want: errors.KindPermission,
		},
		{
			name: "slot unique violation",
			in:   &pq.Error{Code: "23505", Constraint: "appointments_slot_live_idx"},
			want: errors.KindSlotOccupied,
		},
		{
			name: "code unique violation",
			in:   &pq.Error{Code: "23505", Constraint: "appointments_date_code_key"},
			want: errors.KindDuplicate,
		},
		{
			name: "foreign key violation",
			in:   &pq.Error{Code: "23503"},
			want: errors.KindForeignKey,
		},
		{
			name: "undefined table",
			in:   &pq.Error{Code: "42P01"},
			want: errors.KindSchemaMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.in)
			if tt.in == nil {
				assert.NoError(t, got)
				return
			}
			assert.Equal(t, tt.want, errors.KindOf(got))
		})
	}
}

func TestClassifyWrappedDriverError(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "slot_live"})
	assert.Equal(t, errors.KindSlotOccupied, errors.KindOf(classify(wrapped)))
}

func TestClassifyUnknownErrorUntouched(t *testing.T) {
	in := stderrors.New("connection reset")
	assert.Equal(t, in, classify(in))
}
