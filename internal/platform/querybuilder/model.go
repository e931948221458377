package querybuilder

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/jmoiron/sqlx/reflectx"
)

var dbMapper = reflectx.NewMapper("db")

// InsertModels builds one multi-row insert from structs tagged with `db`.
// Fields of embedded structs are flattened in declaration order; untagged
// fields are skipped.
func InsertModels[T any](table string, models []T, suffix string) (string, []any, error) {
	if len(models) == 0 {
		return "", nil, errors.New("querybuilder: no models to insert")
	}
	typ := reflectx.Deref(reflect.TypeFor[T]())
	if typ.Kind() != reflect.Struct {
		return "", nil, fmt.Errorf("querybuilder: %s is not a struct", typ)
	}
	fields := taggedFields(dbMapper.TypeMap(typ).Tree, nil)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("querybuilder: %s has no db columns", typ)
	}

	cols := make([]string, len(fields))
	for i, field := range fields {
		cols[i] = field.Name
	}
	builder := InsertInto(table).Columns(cols...).Suffix(suffix)
	for i, model := range models {
		value := reflect.Indirect(reflect.ValueOf(model))
		if !value.IsValid() {
			return "", nil, fmt.Errorf("querybuilder: model %d is nil", i)
		}
		row := make([]any, len(fields))
		for j, field := range fields {
			row[j] = reflectx.FieldByIndexesReadOnly(value, field.Index).Interface()
		}
		builder.Values(row...)
	}
	return builder.ToSQL()
}

func taggedFields(node *reflectx.FieldInfo, out []*reflectx.FieldInfo) []*reflectx.FieldInfo {
	for _, child := range node.Children {
		switch {
		case child == nil:
		case child.Embedded:
			out = taggedFields(child, out)
		default:
			if tag := child.Field.Tag.Get("db"); tag != "" && tag != "-" {
				out = append(out, child)
			}
		}
	}
	return out
}
