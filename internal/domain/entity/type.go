package entity

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"
)

// Table - имя локальной таблицы сущностей
type Table string

const (
	TableUsers                Table = "users"
	TableResearches           Table = "researches"
	TableResearchContributors Table = "research_contributors"
	TableInputTypes           Table = "input_types"
	TableFields               Table = "fields"
	TableFieldOptions         Table = "field_options"
	TableStaticSurveys        Table = "static_surveys"
	TableFormSurveys          Table = "form_surveys"
	TableDynamicSurveys       Table = "dynamic_surveys"
	TableSurveyGroups         Table = "survey_groups"
	TableSurveyRegions        Table = "survey_regions"
	TableSurveyTimeRanges     Table = "survey_time_ranges"
	TableSurveyContributors   Table = "survey_contributors"
	TableSurveyAnswers        Table = "survey_answers"
)

// tableOrder - фиксированный порядок обхода таблиц при push и pull
var tableOrder = []Table{
	TableUsers,
	TableResearches,
	TableResearchContributors,
	TableInputTypes,
	TableFields,
	TableFieldOptions,
	TableStaticSurveys,
	TableFormSurveys,
	TableDynamicSurveys,
	TableSurveyGroups,
	TableSurveyRegions,
	TableSurveyTimeRanges,
	TableSurveyContributors,
	TableSurveyAnswers,
}

// Tables возвращает все зарегистрированные таблицы в порядке синхронизации.
func Tables() []Table {
	out := make([]Table, len(tableOrder))
	copy(out, tableOrder)
	return out
}

// Lookup находит зарегистрированную таблицу по имени.
func Lookup(name string) (Table, error) {
	t := Table(name)
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

func (Table) Schema(_ huma.Registry) *huma.Schema {
	enum := make([]any, 0, len(tableOrder))
	for _, t := range tableOrder {
		enum = append(enum, string(t))
	}
	return &huma.Schema{
		Type:        "string",
		Enum:        enum,
		Description: "Имя таблицы сущностей",
		Examples:    []any{TableResearches},
	}
}

// Validate проверяет, что таблица зарегистрирована.
func (t Table) Validate() error {
	if _, ok := registry[t]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownTable, string(t))
}

// String возвращает строковое представление таблицы.
func (t Table) String() string {
	return string(t)
}

// DisplayName возвращает человекочитаемое название таблицы.
func (t Table) DisplayName() string {
	switch t {
	case TableUsers:
		return "Пользователи"
	case TableResearches:
		return "Исследования"
	case TableResearchContributors:
		return "Участники исследований"
	case TableInputTypes:
		return "Типы полей ввода"
	case TableFields:
		return "Поля"
	case TableFieldOptions:
		return "Варианты полей"
	case TableStaticSurveys:
		return "Статические опросы"
	case TableFormSurveys:
		return "Опросы-формы"
	case TableDynamicSurveys:
		return "Динамические опросы"
	case TableSurveyGroups:
		return "Группы опросов"
	case TableSurveyRegions:
		return "Регионы опросов"
	case TableSurveyTimeRanges:
		return "Периоды опросов"
	case TableSurveyContributors:
		return "Участники опросов"
	case TableSurveyAnswers:
		return "Ответы на опросы"
	default:
		return "Неизвестная таблица"
	}
}
