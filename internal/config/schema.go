// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

// configSchema validates the top-level configuration document (§6
// config loading step 2), covering the keys spec.md §6 names plus the
// nats.* transport keys carried over from the teacher's pkg/nats.
var configSchema = `
{
  "type": "object",
  "properties": {
    "app_name": {
      "description": "Human-readable name of this History Manager deployment.",
      "type": "string"
    },
    "db_path": {
      "description": "Path to the sqlite3 entity/datapoint database file.",
      "type": "string"
    },
    "attr_spec_path": {
      "description": "Path to the YAML file of AttrSpec documents.",
      "type": "string"
    },
    "worker_index": {
      "description": "Index of this worker among its peers; only index 0 runs housekeeping (§5, §9).",
      "type": "integer",
      "minimum": 0
    },
    "processing_core": {
      "type": "object",
      "properties": {
        "msg_broker": {
          "description": "Address of the message broker datapoints are received from.",
          "type": "string"
        }
      }
    },
    "entity_management": {
      "type": "object",
      "properties": {
        "tick_rate": {
          "description": "How often manage_current_entity_values runs, as a Go duration string.",
          "type": "string"
        },
        "task_rate_limit": {
          "description": "Maximum put_task calls per second; 0 or omitted means unlimited.",
          "type": "number",
          "minimum": 0
        }
      }
    },
    "datapoint_cleaning": {
      "type": "object",
      "properties": {
        "tick_rate": {
          "description": "How often delete_old_datapoints runs, as a Go duration string.",
          "type": "string"
        }
      }
    },
    "nats": {
      "type": "object",
      "properties": {
        "address": {
          "type": "string"
        },
        "username": {
          "type": "string"
        },
        "password": {
          "type": "string"
        },
        "creds-file-path": {
          "type": "string"
        }
      }
    }
  },
  "required": ["app_name", "db_path", "attr_spec_path"]
}`
