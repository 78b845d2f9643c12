package universal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hera/backend/internal/domain/shared"
)

// FieldType names the populated value slot of a dynamic field
type FieldType string

const (
	FieldTypeText    FieldType = "text"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeDate    FieldType = "date"
	FieldTypeJSON    FieldType = "json"
)

// IsValid checks if the field type is one of the known slots
func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypeBoolean, FieldTypeDate, FieldTypeJSON:
		return true
	}
	return false
}

// FieldValue is exactly one populated value slot. The field type is derived
// from the concrete variant and never stored separately.
type FieldValue interface {
	Type() FieldType
	fieldValue()
}

type (
	TextValue    string
	NumberValue  float64
	BooleanValue bool
	DateValue    time.Time
	JSONValue    json.RawMessage
)

func (TextValue) Type() FieldType    { return FieldTypeText }
func (NumberValue) Type() FieldType  { return FieldTypeNumber }
func (BooleanValue) Type() FieldType { return FieldTypeBoolean }
func (DateValue) Type() FieldType    { return FieldTypeDate }
func (JSONValue) Type() FieldType    { return FieldTypeJSON }

func (TextValue) fieldValue()    {}
func (NumberValue) fieldValue()  {}
func (BooleanValue) fieldValue() {}
func (DateValue) fieldValue()    {}
func (JSONValue) fieldValue()    {}

// DynamicField is a typed attribute stored out-of-line from its entity
type DynamicField struct {
	shared.BaseEntity
	EntityID       uuid.UUID
	OrganizationID uuid.UUID
	FieldName      string
	Value          FieldValue
	SmartCode      string
}

// FieldType returns the type of the populated slot
func (f *DynamicField) FieldType() FieldType {
	if f.Value == nil {
		return ""
	}
	return f.Value.Type()
}

// ErrFieldTypeMismatch is returned when a field value does not fit its declared type
var ErrFieldTypeMismatch = shared.NewDomainError(shared.CategoryInput, "FIELD_TYPE_MISMATCH",
	"Dynamic field value does not match its field type")

const dateOnlyLayout = "2006-01-02"

// ParseFieldValue converts a JSON value into a FieldValue. When declared is
// empty the type is inferred from the JSON kind; strings are only treated as
// dates when the date type is declared explicitly.
func ParseFieldValue(fieldName string, declared FieldType, raw json.RawMessage) (FieldValue, error) {
	raw = bytes.TrimSpace(raw)
	mismatch := func(reason string) error {
		return ErrFieldTypeMismatch.
			WithDetail("field_name", fieldName).
			WithDetail("field_type", string(declared)).
			WithHint(reason)
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, mismatch("field_value is required")
	}

	if declared == "" {
		declared = inferFieldType(raw)
	}
	if !declared.IsValid() {
		return nil, mismatch(fmt.Sprintf("unknown field_type %q", declared))
	}

	switch declared {
	case FieldTypeText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, mismatch("text fields take a JSON string")
		}
		return TextValue(s), nil
	case FieldTypeNumber:
		if raw[0] == '"' {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, mismatch("number fields take a JSON number")
			}
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, mismatch("number fields take a JSON number")
			}
			if math.IsNaN(n) || math.IsInf(n, 0) {
				return nil, mismatch("number fields take a finite number")
			}
			return NumberValue(n), nil
		}
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, mismatch("number fields take a JSON number")
		}
		return NumberValue(n), nil
	case FieldTypeBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, mismatch("boolean fields take true or false")
		}
		return BooleanValue(b), nil
	case FieldTypeDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, mismatch("date fields take an RFC3339 or YYYY-MM-DD string")
		}
		d, err := ParseDate(s)
		if err != nil {
			return nil, mismatch("date fields take an RFC3339 or YYYY-MM-DD string")
		}
		return DateValue(d), nil
	default:
		if !json.Valid(raw) {
			return nil, mismatch("json fields take a valid JSON document")
		}
		return JSONValue(append(json.RawMessage(nil), raw...)), nil
	}
}

// MarshalFieldValue renders the populated slot back to JSON
func MarshalFieldValue(v FieldValue) (json.RawMessage, error) {
	switch val := v.(type) {
	case TextValue:
		return json.Marshal(string(val))
	case NumberValue:
		return json.Marshal(float64(val))
	case BooleanValue:
		return json.Marshal(bool(val))
	case DateValue:
		return json.Marshal(time.Time(val).UTC().Format(time.RFC3339))
	case JSONValue:
		return json.RawMessage(val), nil
	case nil:
		return json.RawMessage("null"), nil
	}
	return nil, fmt.Errorf("unsupported field value %T", v)
}

func inferFieldType(raw json.RawMessage) FieldType {
	switch raw[0] {
	case '"':
		return FieldTypeText
	case 't', 'f':
		return FieldTypeBoolean
	case '{', '[':
		return FieldTypeJSON
	default:
		return FieldTypeNumber
	}
}

// ParseDate accepts RFC3339 timestamps and YYYY-MM-DD dates
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(dateOnlyLayout, s)
}
