// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads the process configuration: an optional .env file,
// a JSON config file validated against an embedded JSON Schema, and the
// AttrSpec universe, per §6 of the configuration loading design.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dp3/historymgr/internal/attrspec"
	"github.com/dp3/historymgr/internal/runtimeEnv"
	"github.com/dp3/historymgr/pkg/log"
)

// Keys is the parsed configuration, populated by Init.
var Keys ProgramConfig

// ProgramConfig is the top-level shape of the JSON config file.
type ProgramConfig struct {
	AppName      string `json:"app_name"`
	DBPath       string `json:"db_path"`
	AttrSpecPath string `json:"attr_spec_path"`
	WorkerIndex  int    `json:"worker_index"`

	ProcessingCore struct {
		MsgBroker string `json:"msg_broker"`
	} `json:"processing_core"`

	EntityManagement struct {
		TickRate      string  `json:"tick_rate"`
		TaskRateLimit float64 `json:"task_rate_limit"`
	} `json:"entity_management"`

	DatapointCleaning struct {
		TickRate string `json:"tick_rate"`
	} `json:"datapoint_cleaning"`

	Nats json.RawMessage `json:"nats"`
}

// EntityManagementTickRate parses the entity_management.tick_rate string,
// defaulting to 5 minutes if unset (teacher's footprint-worker default of
// "10m" scaled down to the tighter confidence-refresh cadence of §4.6).
func (c ProgramConfig) EntityManagementTickRate() (time.Duration, error) {
	if c.EntityManagement.TickRate == "" {
		return 5 * time.Minute, nil
	}
	return time.ParseDuration(c.EntityManagement.TickRate)
}

// DatapointCleaningTickRate parses datapoint_cleaning.tick_rate, defaulting
// to 1 hour if unset.
func (c ProgramConfig) DatapointCleaningTickRate() (time.Duration, error) {
	if c.DatapointCleaning.TickRate == "" {
		return time.Hour, nil
	}
	return time.ParseDuration(c.DatapointCleaning.TickRate)
}

// Init runs the three-step configuration load of §6:
//  1. load ./.env if present,
//  2. read and validate the JSON config file at flagConfigFile,
//  3. parse the AttrSpec YAML document at Keys.AttrSpecPath.
//
// It returns the parsed AttrSpec universe, shaped the way
// historymanager.New expects it (etype -> attrID -> *AttrSpec).
func Init(flagConfigFile string) (map[string]map[string]*attrspec.AttrSpec, error) {
	if err := runtimeEnv.LoadEnv(".env"); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	raw, err := os.ReadFile(flagConfigFile)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := Validate(configSchema, raw); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	specRaw, err := os.ReadFile(Keys.AttrSpecPath)
	if err != nil {
		return nil, fmt.Errorf("read attr spec file: %w", err)
	}
	entities, err := attrspec.ParseDocument(specRaw)
	if err != nil {
		return nil, fmt.Errorf("parse attr spec: %w", err)
	}

	specs := make(map[string]map[string]*attrspec.AttrSpec, len(entities))
	for etype, es := range entities {
		specs[etype] = es.Attribs
	}

	log.Infof("config: loaded %d entity type(s) from %s", len(specs), Keys.AttrSpecPath)
	return specs, nil
}

// Validate checks instance (raw JSON bytes) against schema (a JSON Schema
// document), mirroring the teacher's pkg/schema.Validate helper.
func Validate(schema string, instance []byte) error {
	sch, err := jsonschema.CompileString("config.schema.json", schema)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(instance, &v); err != nil {
		return fmt.Errorf("decode instance: %w", err)
	}

	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("%#v", err)
	}
	return nil
}
