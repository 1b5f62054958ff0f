// Package dbhelper maps between Go structs and SQL rows using `db:"column"` struct tags, so that a
// row type can be declared once and used for CREATE TABLE, INSERT and SELECT statements.
//
// Only exported fields with a non-empty db tag take part; a tag of "-" excludes a field. Column
// order is field declaration order.
package dbhelper

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// TypeMap gives the SQL column type for each Go field type.
type TypeMap map[reflect.Type]string

// ClickHouseTypes is the TypeMap used by the ClickHouse transaction store.
var ClickHouseTypes = TypeMap{
	reflect.TypeOf(""):          "String",
	reflect.TypeOf(int32(0)):    "Int32",
	reflect.TypeOf(int64(0)):    "Int64",
	reflect.TypeOf(uint16(0)):   "UInt16",
	reflect.TypeOf(float64(0)):  "Float64",
	reflect.TypeOf(false):       "Bool",
	reflect.TypeOf(time.Time{}): "DateTime64(3)",
}

type field struct {
	column string
	index  int
	typ    reflect.Type
}

func structType(v interface{}) (reflect.Type, error) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("dbhelper: %T is not a struct", v)
	}
	return t, nil
}

func fields(t reflect.Type) []field {
	var ret []field
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		ret = append(ret, field{column: tag, index: i, typ: f.Type})
	}
	return ret
}

// Columns returns the column names of a row type.
func Columns(v interface{}) ([]string, error) {
	t, err := structType(v)
	if err != nil {
		return nil, err
	}
	var ret []string
	for _, f := range fields(t) {
		ret = append(ret, f.column)
	}
	return ret, nil
}

// Values returns the field values of a row, in column order.
func Values(v interface{}) ([]interface{}, error) {
	t, err := structType(v)
	if err != nil {
		return nil, err
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	var ret []interface{}
	for _, f := range fields(t) {
		ret = append(ret, rv.Field(f.index).Interface())
	}
	return ret, nil
}

// ScanTargets returns pointers to the fields of the struct that ptr points to, in column order,
// for passing to a Scan method.
func ScanTargets(ptr interface{}) ([]interface{}, error) {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("dbhelper: ScanTargets needs a non-nil struct pointer, got %T", ptr)
	}
	elem := rv.Elem()
	var ret []interface{}
	for _, f := range fields(elem.Type()) {
		ret = append(ret, elem.Field(f.index).Addr().Interface())
	}
	return ret, nil
}

// InsertStatement returns a parameterized INSERT for one row and its arguments.
func InsertStatement(table string, row interface{}) (string, []interface{}, error) {
	cols, err := Columns(row)
	if err != nil {
		return "", nil, err
	}
	args, err := Values(row)
	if err != nil {
		return "", nil, err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)
	return stmt, args, nil
}

// SelectStatement returns "SELECT <columns> FROM <table>" followed by the given clause.
func SelectStatement(table string, row interface{}, clause string) (string, error) {
	cols, err := Columns(row)
	if err != nil {
		return "", err
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table)
	if clause != "" {
		stmt += " " + clause
	}
	return stmt, nil
}

// CreateTableStatement returns a CREATE TABLE IF NOT EXISTS statement for the row type, using
// types to map field types to column types. The suffix (an ENGINE clause, for instance) is
// appended verbatim.
func CreateTableStatement(table string, row interface{}, types TypeMap, suffix string) (string, error) {
	t, err := structType(row)
	if err != nil {
		return "", err
	}
	var defs []string
	for _, f := range fields(t) {
		sqlType, ok := types[f.typ]
		if !ok {
			return "", fmt.Errorf("dbhelper: no column type for %s (field %s)", f.typ, f.column)
		}
		defs = append(defs, fmt.Sprintf("    %s %s", f.column, sqlType))
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", table, strings.Join(defs, ",\n"))
	if suffix != "" {
		stmt += " " + suffix
	}
	return stmt, nil
}
