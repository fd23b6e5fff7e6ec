package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldsync/internal/domain/entity"
)

func TestParseData(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    entity.Record
		wantErr bool
	}{
		{name: "empty", in: "", want: entity.Record{}},
		{name: "object", in: `{"title":"Soil","position":2}`, want: entity.Record{"title": "Soil", "position": float64(2)}},
		{name: "array", in: `[1,2]`, wantErr: true},
		{name: "broken", in: `{"title"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data = tt.in
			got, err := parseData()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTable(t *testing.T) {
	tableName = "survey_answers"
	tbl, err := table()
	require.NoError(t, err)
	assert.Equal(t, entity.TableSurveyAnswers, tbl)

	tableName = "planets"
	_, err = table()
	assert.ErrorIs(t, err, entity.ErrUnknownTable)
}
