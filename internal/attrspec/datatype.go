// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package attrspec

import (
	"net"
	"regexp"
	"strings"

	"github.com/dp3/historymgr/internal/durationfmt"
)

// Primitive is one of the non-parameterized data-type names an attribute
// value can take.
type Primitive string

const (
	Tag    Primitive = "tag"
	Binary Primitive = "binary"
	String Primitive = "string"
	Int    Primitive = "int"
	Int64  Primitive = "int64"
	Float  Primitive = "float"
	IPv4   Primitive = "ipv4"
	IPv6   Primitive = "ipv6"
	MAC    Primitive = "mac"
	Time   Primitive = "time"
	JSON   Primitive = "json"
)

var primitives = map[Primitive]bool{
	Tag: true, Binary: true, String: true, Int: true, Int64: true,
	Float: true, IPv4: true, IPv6: true, MAC: true, Time: true, JSON: true,
}

// Validate checks a single value against this primitive's rules.
func (p Primitive) Validate(v any) bool {
	switch p {
	case Tag, Binary:
		_, ok := v.(bool)
		return ok
	case String:
		_, ok := v.(string)
		return ok
	case Int:
		_, ok := v.(int)
		return ok
	case Int64:
		_, ok := v.(int64)
		return ok
	case Float:
		_, ok := v.(float64)
		return ok
	case IPv4:
		s, ok := v.(string)
		if !ok {
			return false
		}
		ip := net.ParseIP(s)
		return ip != nil && ip.To4() != nil
	case IPv6:
		s, ok := v.(string)
		if !ok {
			return false
		}
		ip := net.ParseIP(s)
		return ip != nil && ip.To4() == nil
	case MAC:
		s, ok := v.(string)
		if !ok {
			return false
		}
		_, err := net.ParseMAC(s)
		return err == nil
	case Time:
		s, ok := v.(string)
		if !ok {
			return false
		}
		_, err := durationfmt.ParseTimestamp(s)
		return err == nil
	case JSON:
		return v != nil
	default:
		return false
	}
}

// Kind discriminates the parameterized shapes a data_type string can take.
type Kind int

const (
	KindPrimitive Kind = iota
	KindCategory
	KindArray
	KindSet
	KindLink
	KindDict
)

// DictField is one key of a dict<k1:T1,k2?:T2,...> data type.
type DictField struct {
	Key      string
	Type     Primitive
	Optional bool
}

// DataType is the tagged-union representation of an AttrSpec's data_type
// string: a single Validate dispatch replaces the per-attribute validator
// closure the original builds.
type DataType struct {
	Kind       Kind
	Elem       Primitive // element type for KindArray/KindSet
	Categories []string  // nil means "any string" for KindCategory
	Link       string    // entity type for KindLink
	DictFields []DictField
	raw        string
}

func (d DataType) String() string {
	return d.raw
}

// Validate dispatches on Kind to check a single attribute value.
func (d DataType) Validate(v any) bool {
	switch d.Kind {
	case KindPrimitive:
		return d.Elem.Validate(v)
	case KindCategory:
		if d.Categories == nil {
			return String.Validate(v)
		}
		s, ok := v.(string)
		if !ok {
			return false
		}
		for _, c := range d.Categories {
			if c == s {
				return true
			}
		}
		return false
	case KindArray:
		items, ok := v.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if !d.Elem.Validate(item) {
				return false
			}
		}
		return true
	case KindSet:
		items, ok := v.([]any)
		if !ok {
			return false
		}
		seen := make(map[any]bool, len(items))
		for _, item := range items {
			if !d.Elem.Validate(item) {
				return false
			}
			if seen[item] {
				return false
			}
			seen[item] = true
		}
		return true
	case KindLink:
		return v != nil
	case KindDict:
		m, ok := v.(map[string]any)
		if !ok {
			return false
		}
		for _, f := range d.DictFields {
			val, present := m[f.Key]
			if !present {
				if f.Optional {
					continue
				}
				return false
			}
			if !f.Type.Validate(val) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

var (
	arrayPattern = regexp.MustCompile(`^array<(\w+)>$`)
	setPattern   = regexp.MustCompile(`^set<(\w+)>$`)
	linkPattern  = regexp.MustCompile(`^link<(\w+)>$`)
	dictPattern  = regexp.MustCompile(`^dict<((?:\w+\??:\w+,)*(?:\w+\??:\w+))>$`)
)

// ParseDataType parses the data_type string of §3/§4.2 into its tagged-union
// form, or returns an *InvalidFieldError.
func ParseDataType(s string, categories []string) (DataType, error) {
	switch {
	case primitives[Primitive(s)]:
		return DataType{Kind: KindPrimitive, Elem: Primitive(s), raw: s}, nil

	case s == "category":
		return DataType{Kind: KindCategory, Categories: categories, raw: s}, nil

	case arrayPattern.MatchString(s):
		elem := Primitive(arrayPattern.FindStringSubmatch(s)[1])
		if !primitives[elem] {
			return DataType{}, invalidField("data_type", "array element type is not a supported primitive")
		}
		return DataType{Kind: KindArray, Elem: elem, raw: s}, nil

	case setPattern.MatchString(s):
		elem := Primitive(setPattern.FindStringSubmatch(s)[1])
		if !primitives[elem] {
			return DataType{}, invalidField("data_type", "set element type is not a supported primitive")
		}
		return DataType{Kind: KindSet, Elem: elem, raw: s}, nil

	case linkPattern.MatchString(s):
		return DataType{Kind: KindLink, Link: linkPattern.FindStringSubmatch(s)[1], raw: s}, nil

	case dictPattern.MatchString(s):
		body := dictPattern.FindStringSubmatch(s)[1]
		var fields []DictField
		for _, item := range strings.Split(body, ",") {
			kv := strings.SplitN(item, ":", 2)
			key := kv[0]
			optional := strings.HasSuffix(key, "?")
			if optional {
				key = strings.TrimSuffix(key, "?")
			}
			t := Primitive(kv[1])
			if !primitives[t] {
				return DataType{}, invalidField("data_type", "dict field type is not a supported primitive")
			}
			fields = append(fields, DictField{Key: key, Type: t, Optional: optional})
		}
		return DataType{Kind: KindDict, DictFields: fields, raw: s}, nil

	default:
		return DataType{}, invalidField("data_type", "unsupported data type "+s)
	}
}
