package unitypack

import (
	"fmt"
	"iter"
	"strconv"
)

// Kind identifies the shape of a Value.
type Kind uint8

const (
	// KindInvalid is the zero Value. It stands for absence, such as a null
	// pointer or a reference whose target cannot be found.
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindBytes
	KindString
	KindList
	KindPair
	KindRecord
	KindPointer
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindInt:     "int",
	KindUint:    "uint",
	KindFloat:   "float",
	KindBytes:   "bytes",
	KindString:  "string",
	KindList:    "list",
	KindPair:    "pair",
	KindRecord:  "record",
	KindPointer: "pointer",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a dynamically typed result of deserializing an object.
//
// Its shape is decided at read time by the type tree. Accessors for the
// wrong kind return the zero value of their result.
type Value struct {
	kind Kind
	bits uint8 // width of integer and float kinds
	num  uint64
	f    float64
	str  string
	raw  []byte
	list []Value
	pair *[2]Value
	rec  *Record
	ptr  *ObjectPointer
}

func BoolValue(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// IntValue returns a signed integer read from a field of the given bit width.
func IntValue(i int64, bits uint8) Value {
	return Value{kind: KindInt, bits: bits, num: uint64(i)}
}

// UintValue returns an unsigned integer read from a field of the given bit width.
func UintValue(u uint64, bits uint8) Value {
	return Value{kind: KindUint, bits: bits, num: u}
}

func FloatValue(f float64, bits uint8) Value {
	return Value{kind: KindFloat, bits: bits, f: f}
}

func BytesValue(b []byte) Value     { return Value{kind: KindBytes, raw: b} }
func StringValue(s string) Value    { return Value{kind: KindString, str: s} }
func ListValue(items []Value) Value { return Value{kind: KindList, list: items} }
func RecordValue(r *Record) Value   { return Value{kind: KindRecord, rec: r} }

func PointerValue(p *ObjectPointer) Value {
	return Value{kind: KindPointer, ptr: p}
}

func PairValue(first, second Value) Value {
	return Value{kind: KindPair, pair: &[2]Value{first, second}}
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Bits returns the on-disk width of numeric kinds, 0 otherwise.
func (v Value) Bits() uint8 { return v.bits }

func (v Value) Bool() bool { return v.kind == KindBool && v.num != 0 }

// Int returns integer kinds as int64. Unsigned values wrap.
func (v Value) Int() int64 {
	switch v.kind {
	case KindInt, KindUint:
		return int64(v.num)
	case KindBool:
		return int64(v.num)
	default:
		return 0
	}
}

// Uint returns integer kinds as uint64. Signed values wrap.
func (v Value) Uint() uint64 {
	switch v.kind {
	case KindInt, KindUint, KindBool:
		return v.num
	default:
		return 0
	}
}

// Float returns float kinds, and converts integer kinds.
func (v Value) Float() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(int64(v.num))
	case KindUint:
		return float64(v.num)
	default:
		return 0
	}
}

// Bytes returns byte strings, and the bytes of strings.
func (v Value) Bytes() []byte {
	switch v.kind {
	case KindBytes:
		return v.raw
	case KindString:
		return []byte(v.str)
	default:
		return nil
	}
}

// Str returns the contents of string and byte-string kinds.
func (v Value) Str() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindBytes:
		return string(v.raw)
	default:
		return ""
	}
}

func (v Value) List() []Value { return v.list }

func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindBytes:
		return len(v.raw)
	case KindString:
		return len(v.str)
	case KindRecord:
		return v.rec.Len()
	default:
		return 0
	}
}

// Index returns element i of a list, or the zero Value.
func (v Value) Index(i int) Value {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Value{}
	}
	return v.list[i]
}

// Pair returns both halves of a pair.
func (v Value) Pair() (Value, Value) {
	if v.pair == nil {
		return Value{}, Value{}
	}
	return v.pair[0], v.pair[1]
}

func (v Value) Record() *Record         { return v.rec }
func (v Value) Pointer() *ObjectPointer { return v.ptr }

// Field looks up name on a record value. Other kinds yield the zero Value.
func (v Value) Field(name string) Value {
	if v.rec == nil {
		return Value{}
	}
	return v.rec.Field(name)
}

// Native returns the materialized form of a record, or nil.
func (v Value) Native() any {
	if v.rec == nil {
		return nil
	}
	return v.rec.Native
}

// Interface converts v into plain Go values: bool, int64, uint64, float64,
// []byte, string, []any, [2]any, *Record, *ObjectPointer or nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.Bool()
	case KindInt:
		return int64(v.num)
	case KindUint:
		return v.num
	case KindFloat:
		return v.f
	case KindBytes:
		return v.raw
	case KindString:
		return v.str
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindPair:
		return [2]any{v.pair[0].Interface(), v.pair[1].Interface()}
	case KindRecord:
		return v.rec
	case KindPointer:
		return v.ptr
	default:
		return nil
	}
}

// String returns the contents of a string value, or a short description of
// any other kind.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInvalid:
		return "<invalid>"
	case KindBool:
		return strconv.FormatBool(v.Bool())
	case KindInt:
		return strconv.FormatInt(int64(v.num), 10)
	case KindUint:
		return strconv.FormatUint(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, int(max(v.bits, 32)))
	case KindBytes:
		return fmt.Sprintf("<%d bytes>", len(v.raw))
	case KindList:
		return fmt.Sprintf("<list of %d>", len(v.list))
	case KindPair:
		return fmt.Sprintf("(%s, %s)", v.pair[0], v.pair[1])
	case KindRecord:
		return v.rec.String()
	case KindPointer:
		return v.ptr.String()
	default:
		return "<" + v.kind.String() + ">"
	}
}

// Record is an ordered mapping of field names to values.
type Record struct {
	// TypeName is the type tree name the record was read from.
	TypeName string
	// Native holds the materialized form registered for TypeName, if any.
	Native any

	names  []string
	fields map[string]Value
}

// NewRecord returns an empty record for typeName.
func NewRecord(typeName string) *Record {
	return &Record{TypeName: typeName, fields: make(map[string]Value)}
}

// Set stores a field. Setting an existing name replaces its value in place.
func (r *Record) Set(name string, v Value) {
	if r.fields == nil {
		r.fields = make(map[string]Value)
	}
	if _, ok := r.fields[name]; !ok {
		r.names = append(r.names, name)
	}
	r.fields[name] = v
}

// Get returns the named field.
func (r *Record) Get(name string) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	v, ok := r.fields[name]
	return v, ok
}

// Field returns the named field, or the zero Value.
func (r *Record) Field(name string) Value {
	v, _ := r.Get(name)
	return v
}

// Has reports whether the record has a field called name.
func (r *Record) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// Names returns field names in declaration order.
func (r *Record) Names() []string {
	if r == nil {
		return nil
	}
	return r.names
}

// All iterates fields in declaration order.
func (r *Record) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if r == nil {
			return
		}
		for _, name := range r.names {
			if !yield(name, r.fields[name]) {
				return
			}
		}
	}
}

func (r *Record) String() string {
	if r == nil {
		return "<nil record>"
	}
	return fmt.Sprintf("<%s with %d fields>", r.TypeName, len(r.names))
}

// clone returns a shallow copy sharing no field storage with r.
func (r *Record) clone() *Record {
	out := &Record{
		TypeName: r.TypeName,
		Native:   r.Native,
		names:    append([]string(nil), r.names...),
		fields:   make(map[string]Value, len(r.fields)),
	}
	for k, v := range r.fields {
		out.fields[k] = v
	}
	return out
}
