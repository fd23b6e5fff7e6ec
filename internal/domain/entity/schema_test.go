package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tbl, err := Lookup("researches")
	require.NoError(t, err)
	assert.Equal(t, TableResearches, tbl)

	_, err = Lookup("records")
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestTables_OrderIsStable(t *testing.T) {
	tables := Tables()
	require.Len(t, tables, 14)
	assert.Equal(t, TableUsers, tables[0])
	assert.Equal(t, TableSurveyAnswers, tables[len(tables)-1])

	// копия не должна влиять на реестр
	tables[0] = "broken"
	assert.Equal(t, TableUsers, Tables()[0])

	for _, tbl := range Tables() {
		_, err := SchemaFor(tbl)
		assert.NoError(t, err, tbl)
	}
}

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name    string
		table   Table
		rec     Record
		wantErr error
	}{
		{
			name:  "valid research",
			table: TableResearches,
			rec:   Record{"id": "r1", "title": "X"},
		},
		{
			name:    "missing id",
			table:   TableResearches,
			rec:     Record{"title": "X"},
			wantErr: ErrMissingID,
		},
		{
			name:    "missing required field",
			table:   TableResearches,
			rec:     Record{"id": "r1"},
			wantErr: ErrInvalidRecord,
		},
		{
			name:    "wrong kind",
			table:   TableSurveyRegions,
			rec:     Record{"id": "g1", "survey_id": "s1", "lat": "north"},
			wantErr: ErrInvalidRecord,
		},
		{
			name:  "number kinds accepted",
			table: TableSurveyRegions,
			rec:   Record{"id": "g1", "survey_id": "s1", "lat": 55.75, "lon": 37, "radius_km": int64(2)},
		},
		{
			name:  "unknown fields allowed",
			table: TableUsers,
			rec:   Record{"id": "u1", "nickname": "old"},
		},
		{
			name:    "bad sync status",
			table:   TableUsers,
			rec:     Record{"id": "u1", SyncStatusField: "lost"},
			wantErr: ErrInvalidRecord,
		},
		{
			name:    "unknown table",
			table:   Table("records"),
			rec:     Record{"id": "x"},
			wantErr: ErrUnknownTable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.table, tt.rec)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSyncStatus(t *testing.T) {
	assert.True(t, StatusPending.NeedsPush())
	assert.True(t, StatusError.NeedsPush())
	assert.False(t, StatusSynced.NeedsPush())
	assert.Error(t, SyncStatus("").Validate())
}
