// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package attrspec

// Small helpers for reading a loosely-typed YAML-decoded map[string]any,
// mirroring the original's spec.get(field, default) access pattern.

func getString(m map[string]any, field, def string) (string, error) {
	v, ok := m[field]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", wrongType(field, "string")
	}
	return s, nil
}

func requireString(m map[string]any, field string) (string, error) {
	v, ok := m[field]
	if !ok {
		return "", missingField(field)
	}
	s, ok := v.(string)
	if !ok {
		return "", wrongType(field, "string")
	}
	return s, nil
}

func getBool(m map[string]any, field string, def bool) (bool, error) {
	v, ok := m[field]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, wrongType(field, "bool")
	}
	return b, nil
}

func getStringSlice(m map[string]any, field string) ([]string, error) {
	v, ok := m[field]
	if !ok {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, wrongType(field, "list")
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, wrongType(field, "list of string")
		}
		out[i] = s
	}
	return out, nil
}

func getMap(m map[string]any, field string) (map[string]any, error) {
	v, ok := m[field]
	if !ok {
		return nil, nil
	}
	sub, ok := v.(map[string]any)
	if !ok {
		return nil, wrongType(field, "mapping")
	}
	return sub, nil
}

func getInt(m map[string]any, field string) (int, bool, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	default:
		return 0, false, wrongType(field, "int")
	}
}
