// Package resources describes the admin-editable tables and validates
// submitted rows against their field schema.
package resources

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/islandvows/islandvows/internal/apperror"
)

//go:embed resources.yaml
var defaultSchema []byte

// Field types
const (
	TypeString   = "string"
	TypeInt      = "int"
	TypeNumber   = "number"
	TypeBool     = "bool"
	TypeDate     = "date"
	TypeDateTime = "datetime"
	TypeJSON     = "json"
)

const dateLayout = "2006-01-02"

// Columns maintained by the database; accepted in input and dropped.
var managedColumns = []string{"id", "created_at", "updated_at"}

// Mode selects how Prepare treats missing fields
type Mode int

const (
	// Create requires every required field
	Create Mode = iota
	// Update validates only the fields present
	Update
)

// OrderTerm is one default sort column
type OrderTerm struct {
	Column    string `yaml:"column"`
	Ascending bool   `yaml:"ascending"`
}

// Field is one editable column
type Field struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Required bool     `yaml:"required"`
	Validate string   `yaml:"validate"`
	Enum     []string `yaml:"enum"`
}

// Resource is one admin-editable table
type Resource struct {
	Name      string      `yaml:"name"`
	Table     string      `yaml:"table"`
	Key       string      `yaml:"key"`
	Order     []OrderTerm `yaml:"order"`
	Parent    string      `yaml:"parent"`
	ParentKey string      `yaml:"parent_key"`
	Singleton bool        `yaml:"singleton"`
	Fields    []Field     `yaml:"fields"`

	validate *validator.Validate
	byName   map[string]*Field
}

// Registry indexes resources by URL name
type Registry struct {
	resources []*Resource
	byName    map[string]*Resource
}

type document struct {
	Resources []*Resource `yaml:"resources"`
}

// Default loads the embedded resource schema
func Default() (*Registry, error) {
	return Load(defaultSchema)
}

// Load parses and checks a YAML resource schema
func Load(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse resource schema: %w", err)
	}
	if len(doc.Resources) == 0 {
		return nil, errors.New("resource schema defines no resources")
	}

	validate := newValidator()
	reg := &Registry{
		resources: doc.Resources,
		byName:    make(map[string]*Resource, len(doc.Resources)),
	}

	for _, res := range doc.Resources {
		if res.Name == "" || res.Table == "" {
			return nil, fmt.Errorf("resource %q: name and table are required", res.Name)
		}
		if _, dup := reg.byName[res.Name]; dup {
			return nil, fmt.Errorf("resource %q defined twice", res.Name)
		}
		if res.Key == "" {
			res.Key = "id"
		}
		res.validate = validate
		res.byName = make(map[string]*Field, len(res.Fields))
		for i := range res.Fields {
			f := &res.Fields[i]
			if err := checkField(f); err != nil {
				return nil, fmt.Errorf("resource %q field %q: %w", res.Name, f.Name, err)
			}
			res.byName[f.Name] = f
		}
		reg.byName[res.Name] = res
	}

	for _, res := range doc.Resources {
		if res.Parent == "" {
			continue
		}
		if _, ok := reg.byName[res.Parent]; !ok {
			return nil, fmt.Errorf("resource %q: unknown parent %q", res.Name, res.Parent)
		}
		if _, ok := res.byName[res.ParentKey]; !ok {
			return nil, fmt.Errorf("resource %q: parent_key %q is not a field", res.Name, res.ParentKey)
		}
	}

	return reg, nil
}

func checkField(f *Field) error {
	if f.Name == "" {
		return errors.New("name is required")
	}
	switch f.Type {
	case TypeString, TypeInt, TypeNumber, TypeBool, TypeDate, TypeDateTime, TypeJSON:
	case "":
		f.Type = TypeString
	default:
		return fmt.Errorf("unknown type %q", f.Type)
	}
	if len(f.Enum) > 0 && f.Type != TypeString {
		return errors.New("enum requires a string field")
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	// lowercase letters, digits and single hyphens
	v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" || strings.HasPrefix(value, "-") || strings.HasSuffix(value, "-") || strings.Contains(value, "--") {
			return false
		}
		for _, char := range value {
			if !((char >= 'a' && char <= 'z') || (char >= '0' && char <= '9') || char == '-') {
				return false
			}
		}
		return true
	})
	return v
}

// Lookup finds a resource by URL name
func (r *Registry) Lookup(name string) (*Resource, bool) {
	res, ok := r.byName[name]
	return res, ok
}

// All returns resources in schema order
func (r *Registry) All() []*Resource {
	return slices.Clone(r.resources)
}

// Children returns the resources nested under parent
func (r *Registry) Children(parent string) []*Resource {
	var out []*Resource
	for _, res := range r.resources {
		if res.Parent == parent {
			out = append(out, res)
		}
	}
	return out
}

// Field looks up a column by name
func (res *Resource) Field(name string) (*Field, bool) {
	f, ok := res.byName[name]
	return f, ok
}

// Prepare coerces and validates a submitted row. Unknown fields are rejected,
// empty strings on optional fields become null.
func (res *Resource) Prepare(input map[string]any, mode Mode) (map[string]any, error) {
	out := make(map[string]any, len(input))
	problems := make(map[string]string)

	for name, raw := range input {
		if slices.Contains(managedColumns, name) {
			continue
		}
		f, ok := res.byName[name]
		if !ok {
			problems[name] = "unknown field"
			continue
		}
		value, err := f.coerce(raw)
		if err != nil {
			problems[name] = err.Error()
			continue
		}
		if value == nil {
			if f.Required {
				problems[name] = "is required"
				continue
			}
			out[name] = nil
			continue
		}
		if msg := res.check(f, value); msg != "" {
			problems[name] = msg
			continue
		}
		out[name] = value
	}

	if mode == Create {
		for _, f := range res.Fields {
			if _, seen := input[f.Name]; f.Required && !seen {
				problems[f.Name] = "is required"
			}
		}
	}
	if mode == Update && len(out) == 0 && len(problems) == 0 {
		problems["body"] = "no fields to update"
	}

	if len(problems) > 0 {
		return nil, &apperror.ValidationError{Fields: problems}
	}
	return out, nil
}

func (res *Resource) check(f *Field, value any) string {
	if len(f.Enum) > 0 {
		if s, _ := value.(string); !slices.Contains(f.Enum, s) {
			return "must be one of: " + strings.Join(f.Enum, ", ")
		}
	}
	if f.Validate == "" {
		return ""
	}
	err := res.validate.Var(value, f.Validate)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return describe(verrs[0])
	}
	return err.Error()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a UUID"
	case "slug":
		return "must contain only lowercase letters, digits and hyphens"
	case "max":
		if fe.Kind().String() == "string" {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "gte":
		return "must be " + fe.Param() + " or more"
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be " + fe.Param() + " or less"
	}
	return "failed " + fe.Tag() + " check"
}

// coerce converts form or JSON input to the column's type; nil means null.
func (f *Field) coerce(raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok && f.Type != TypeJSON {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		raw = s
	}

	switch f.Type {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, errors.New("must be text")
		}
		return s, nil

	case TypeInt:
		n, err := toFloat(raw)
		if err != nil || n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
			return nil, errors.New("must be a whole number")
		}
		return int64(n), nil

	case TypeNumber:
		n, err := toFloat(raw)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, errors.New("must be a number")
		}
		return n, nil

	case TypeBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(v) {
			case "true", "on", "1", "yes":
				return true, nil
			case "false", "off", "0", "no":
				return false, nil
			}
		}
		return nil, errors.New("must be true or false")

	case TypeDate:
		s, ok := raw.(string)
		if !ok {
			return nil, errors.New("must be a date (YYYY-MM-DD)")
		}
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, errors.New("must be a date (YYYY-MM-DD)")
		}
		return t.Format(dateLayout), nil

	case TypeDateTime:
		s, ok := raw.(string)
		if !ok {
			return nil, errors.New("must be a date and time")
		}
		t, err := parseDateTime(s)
		if err != nil {
			return nil, errors.New("must be a date and time")
		}
		return t.UTC().Format(time.RFC3339), nil

	case TypeJSON:
		if s, ok := raw.(string); ok {
			var v any
			if err := json.Unmarshal([]byte(s), &v); err != nil {
				return nil, errors.New("must be valid JSON")
			}
			return v, nil
		}
		return raw, nil
	}
	return nil, fmt.Errorf("unsupported type %q", f.Type)
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("not a number: %T", raw)
}

// parseDateTime accepts RFC 3339 and the browser datetime-local format (UTC).
func parseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04", s)
}
