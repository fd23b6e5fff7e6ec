package entity

import (
	"encoding/json"
	"fmt"
)

// FieldKind - ожидаемый JSON-тип поля
type FieldKind string

const (
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "bool"
	KindObject FieldKind = "object"
	KindArray  FieldKind = "array"
	KindAny    FieldKind = "any"
)

// Schema описывает поля записи одной таблицы
type Schema struct {
	Table    Table
	Required []string
	Fields   map[string]FieldKind
}

var registry = map[Table]Schema{
	TableUsers: {
		Table:  TableUsers,
		Fields: map[string]FieldKind{"name": KindString, "email": KindString, "role": KindString},
	},
	TableResearches: {
		Table:    TableResearches,
		Required: []string{"title"},
		Fields:   map[string]FieldKind{"title": KindString, "description": KindString, "owner_id": KindString},
	},
	TableResearchContributors: {
		Table:    TableResearchContributors,
		Required: []string{"research_id", "user_id"},
		Fields:   map[string]FieldKind{"research_id": KindString, "user_id": KindString, "role": KindString},
	},
	TableInputTypes: {
		Table:    TableInputTypes,
		Required: []string{"name"},
		Fields:   map[string]FieldKind{"name": KindString},
	},
	TableFields: {
		Table:    TableFields,
		Required: []string{"label"},
		Fields: map[string]FieldKind{
			"label": KindString, "research_id": KindString, "input_type_id": KindString,
			"required": KindBool, "position": KindNumber,
		},
	},
	TableFieldOptions: {
		Table:    TableFieldOptions,
		Required: []string{"field_id", "value"},
		Fields:   map[string]FieldKind{"field_id": KindString, "value": KindAny, "label": KindString},
	},
	TableStaticSurveys: {
		Table:    TableStaticSurveys,
		Required: []string{"title"},
		Fields:   map[string]FieldKind{"title": KindString, "research_id": KindString, "content": KindAny},
	},
	TableFormSurveys: {
		Table:    TableFormSurveys,
		Required: []string{"title"},
		Fields:   map[string]FieldKind{"title": KindString, "research_id": KindString, "fields": KindArray},
	},
	TableDynamicSurveys: {
		Table:    TableDynamicSurveys,
		Required: []string{"title"},
		Fields:   map[string]FieldKind{"title": KindString, "research_id": KindString, "rules": KindAny},
	},
	TableSurveyGroups: {
		Table:    TableSurveyGroups,
		Required: []string{"name"},
		Fields:   map[string]FieldKind{"name": KindString, "survey_id": KindString},
	},
	TableSurveyRegions: {
		Table:    TableSurveyRegions,
		Required: []string{"survey_id"},
		Fields: map[string]FieldKind{
			"survey_id": KindString, "lat": KindNumber, "lon": KindNumber, "radius_km": KindNumber,
		},
	},
	TableSurveyTimeRanges: {
		Table:    TableSurveyTimeRanges,
		Required: []string{"survey_id"},
		Fields:   map[string]FieldKind{"survey_id": KindString, "starts_at": KindString, "ends_at": KindString},
	},
	TableSurveyContributors: {
		Table:    TableSurveyContributors,
		Required: []string{"survey_id", "user_id"},
		Fields:   map[string]FieldKind{"survey_id": KindString, "user_id": KindString},
	},
	TableSurveyAnswers: {
		Table:    TableSurveyAnswers,
		Required: []string{"survey_id"},
		Fields: map[string]FieldKind{
			"survey_id": KindString, "field_id": KindString, "value": KindAny, "answered_at": KindString,
		},
	},
}

// SchemaFor возвращает схему таблицы.
func SchemaFor(t Table) (Schema, error) {
	s, ok := registry[t]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", ErrUnknownTable, string(t))
	}
	return s, nil
}

// Validate проверяет запись по схеме таблицы. Неизвестные поля допускаются.
func (s Schema) Validate(rec Record) error {
	if err := rec.RequireID(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	for _, name := range s.Required {
		if v, ok := rec[name]; !ok || v == nil {
			return fmt.Errorf("%w: %s: поле %q обязательно", ErrInvalidRecord, s.Table, name)
		}
	}

	for name, kind := range s.Fields {
		v, ok := rec[name]
		if !ok || v == nil {
			continue
		}
		if !kind.matches(v) {
			return fmt.Errorf("%w: %s: поле %q должно иметь тип %s", ErrInvalidRecord, s.Table, name, kind)
		}
	}

	if st, ok := rec[SyncStatusField]; ok {
		str, isStr := st.(string)
		if !isStr {
			return fmt.Errorf("%w: поле %s должно быть строкой", ErrInvalidRecord, SyncStatusField)
		}
		if err := SyncStatus(str).Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
	}

	return nil
}

// ValidateRecord проверяет запись по схеме указанной таблицы.
func ValidateRecord(t Table, rec Record) error {
	s, err := SchemaFor(t)
	if err != nil {
		return err
	}
	return s.Validate(rec)
}

func (k FieldKind) matches(v any) bool {
	switch k {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64, json.Number:
			return true
		}
		return false
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindObject:
		switch v.(type) {
		case map[string]any, Record:
			return true
		}
		return false
	case KindArray:
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}
