// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitLoadsConfigAndAttrSpec(t *testing.T) {
	dir := t.TempDir()

	var cfg map[string]any
	raw, err := os.ReadFile("testdata/config.json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &cfg))

	attrSpecPath := filepath.Join(dir, "attrspec.yaml")
	attrs, err := os.ReadFile("testdata/attrspec.yaml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(attrSpecPath, attrs, 0o644))
	cfg["attr_spec_path"] = attrSpecPath

	patched, err := json.Marshal(cfg)
	require.NoError(t, err)
	configPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(configPath, patched, 0o644))

	specs, err := Init(configPath)
	require.NoError(t, err)
	require.Equal(t, "dp3-history-manager-test", Keys.AppName)
	require.Equal(t, 0, Keys.WorkerIndex)
	require.Contains(t, specs, "host")
	require.Contains(t, specs["host"], "temp")

	tick, err := Keys.EntityManagementTickRate()
	require.NoError(t, err)
	require.NotZero(t, tick)
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	err := Validate(configSchema, []byte(`{"app_name": "x"}`))
	require.Error(t, err)
}

func TestValidateAcceptsMinimalDocument(t *testing.T) {
	err := Validate(configSchema, []byte(`{"app_name":"x","db_path":"./d.db","attr_spec_path":"a.yaml"}`))
	require.NoError(t, err)
}
