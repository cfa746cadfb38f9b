// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package attrspec

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// EntitySpec groups the AttrSpecs belonging to one entity type, keyed by
// attribute id (§3).
type EntitySpec struct {
	Attribs map[string]*AttrSpec
}

// ParseDocument parses a YAML document shaped as
// {etype: {attribs: {attr_id: {...spec...}}}}, constructing one AttrSpec
// per attribute. Every construction failure is collected rather than
// aborting at the first, so a caller can report every InvalidSpec at
// once — matching the "fatal at startup" contract of §7, which wants the
// operator to see the whole list of problems.
func ParseDocument(raw []byte) (map[string]*EntitySpec, error) {
	var doc map[string]struct {
		Attribs map[string]map[string]any `yaml:"attribs"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}

	result := make(map[string]*EntitySpec, len(doc))
	var errs []string

	for etype, ent := range doc {
		es := &EntitySpec{Attribs: make(map[string]*AttrSpec, len(ent.Attribs))}
		for attrID, raw := range ent.Attribs {
			spec, err := New(attrID, raw)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s.%s: %v", etype, attrID, err))
				continue
			}
			es.Attribs[attrID] = spec
		}
		result[etype] = es
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSpec, strings.Join(errs, "; "))
	}
	return result, nil
}
