// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command historymgr boots one DP3 History Manager worker: it connects to
// the entity/datapoint database and the NATS message broker, subscribes to
// incoming datapoints and !NEW events, and — on worker index 0 — runs the
// periodic housekeeping jobs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dp3/historymgr/internal/config"
	"github.com/dp3/historymgr/internal/datapoint"
	"github.com/dp3/historymgr/internal/historymanager"
	"github.com/dp3/historymgr/internal/repository"
	"github.com/dp3/historymgr/internal/runtimeEnv"
	"github.com/dp3/historymgr/internal/scheduler"
	"github.com/dp3/historymgr/internal/taskqueue"
	"github.com/dp3/historymgr/internal/updateplanner"
	"github.com/dp3/historymgr/pkg/log"
	ccnats "github.com/dp3/historymgr/pkg/nats"
)

// datapointEnvelope is this reference bootstrap's own wire format for
// incoming datapoints on subject dp3.datapoints.<etype>.<attr> — spec.md
// explicitly leaves wire formats to a collaborator (§1 Non-goals); this one
// exists only so the reference binary is runnable end-to-end.
type datapointEnvelope struct {
	EID string    `json:"eid"`
	V   any       `json:"v"`
	C   float64   `json:"c"`
	Src string    `json:"src"`
	T1  time.Time `json:"t1"`
	T2  time.Time `json:"t2"`
}

// taskEnvelope mirrors internal/taskqueue's publish shape, consumed here so
// a !NEW event can be handed to the Update Planner (§4.7.a).
type taskEnvelope struct {
	EID    string   `json:"eid"`
	Events []string `json:"events"`
}

func main() {
	var flagConfigFile string
	var flagGops bool
	var flagMetricsAddr string
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Path to the JSON configuration file")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.StringVar(&flagMetricsAddr, "metrics-addr", ":2112", "Address the Prometheus /metrics endpoint listens on")
	flag.Parse()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	specs, err := config.Init(flagConfigFile)
	if err != nil {
		log.Fatalf("config.Init failed: %s", err.Error())
	}

	conn, err := repository.Connect(config.Keys.DBPath)
	if err != nil {
		log.Fatalf("repository.Connect failed: %s", err.Error())
	}
	db := repository.NewSQLiteDatabase(conn)

	var writer historymanager.TaskQueueWriter
	var natsClient *ccnats.Client
	if config.Keys.Nats != nil {
		if err := ccnats.Init(config.Keys.Nats); err != nil {
			log.Fatalf("nats.Init failed: %s", err.Error())
		}
		ccnats.Connect()
		natsClient = ccnats.GetClient()
		writer = taskqueue.New(natsClient, config.Keys.EntityManagement.TaskRateLimit)
	}

	hm := historymanager.New(specs, db, writer, config.Keys.WorkerIndex)
	planner := updateplanner.New()

	if natsClient != nil {
		if err := subscribeDatapoints(natsClient, hm); err != nil {
			log.Fatalf("subscribe to datapoints failed: %s", err.Error())
		}
		if err := subscribeTasks(natsClient, db, planner); err != nil {
			log.Fatalf("subscribe to tasks failed: %s", err.Error())
		}
	} else {
		log.Warn("no nats configuration: running with housekeeping only, no ingest subscriber")
	}

	pruneInterval, err := config.Keys.DatapointCleaningTickRate()
	if err != nil {
		log.Fatalf("parse datapoint_cleaning.tick_rate: %s", err.Error())
	}
	refreshInterval, err := config.Keys.EntityManagementTickRate()
	if err != nil {
		log.Fatalf("parse entity_management.tick_rate: %s", err.Error())
	}
	sched, err := scheduler.New(hm, pruneInterval, refreshInterval)
	if err != nil {
		log.Fatalf("scheduler.New failed: %s", err.Error())
	}
	sched.Start()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: flagMetricsAddr, Handler: mux}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server: %s", err.Error())
		}
	}()

	wg.Add(1)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer wg.Done()
		<-sigs
		runtimeEnv.SystemdNotifiy(false, "shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		metricsServer.Shutdown(ctx)

		if err := sched.Shutdown(); err != nil {
			log.Warnf("scheduler shutdown: %s", err.Error())
		}
		if natsClient != nil {
			natsClient.Close()
		}
		conn.DB.Close()
	}()

	runtimeEnv.SystemdNotifiy(true, "running")
	wg.Wait()
	log.Print("Graceful shutdown completed!")
}

// subscribeDatapoints wires the datapoint ingest path to NATS: every
// message on dp3.datapoints.<etype>.<attr> is decoded and handed to
// ProcessDatapoint.
func subscribeDatapoints(client *ccnats.Client, hm *historymanager.HistoryManager) error {
	return client.Subscribe("dp3.datapoints.>", func(subject string, data []byte) {
		etype, attr, ok := splitDatapointSubject(subject)
		if !ok {
			log.Warnf("ingest: unrecognized subject %s", subject)
			return
		}
		var env datapointEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Errorf("ingest: decode %s: %s", subject, err.Error())
			return
		}
		dp := datapoint.Datapoint{
			EID: env.EID, V: env.V, C: env.C, Src: env.Src,
			T1: env.T1, T2: env.T2, Tag: datapoint.Plain,
		}
		if err := hm.ProcessDatapoint(context.Background(), etype, attr, dp); err != nil {
			log.Errorf("ingest: process_datapoint %s/%s eid=%s: %s", etype, attr, env.EID, err.Error())
		}
	})
}

// subscribeTasks wires the Update Planner to the task queue (§4.7.a): a
// !NEW event plants the next-regular-update fields on the entity record.
func subscribeTasks(client *ccnats.Client, db *repository.SQLiteDatabase, planner *updateplanner.Planner) error {
	return client.SubscribeQueue("dp3.tasks.>", "historymgr-tasks", func(subject string, data []byte) {
		etype, ok := splitTaskSubject(subject)
		if !ok {
			return
		}
		var env taskEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Errorf("tasks: decode %s: %s", subject, err.Error())
			return
		}
		hasNew := false
		for _, e := range env.Events {
			if e == "!NEW" {
				hasNew = true
				break
			}
		}
		if !hasNew {
			return
		}

		ctx := context.Background()
		rec, err := db.LoadRecord(ctx, etype, env.EID)
		if err != nil {
			log.Errorf("tasks: load record %s/%s: %s", etype, env.EID, err.Error())
			return
		}
		patch := planner.HandleNew(etype, env.EID, time.Now())
		rec.Set("_nru1d", patch.NRU1D)
		rec.Set("_nru1w", patch.NRU1W)
		if err := db.PushRecord(ctx, rec); err != nil {
			log.Errorf("tasks: push record %s/%s: %s", etype, env.EID, err.Error())
		}
	})
}

func splitDatapointSubject(subject string) (etype, attr string, ok bool) {
	const prefix = "dp3.datapoints."
	if len(subject) <= len(prefix) {
		return "", "", false
	}
	rest := subject[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '.' {
			return rest[:i], rest[i+1:], true
		}
	}
	return "", "", false
}

func splitTaskSubject(subject string) (etype string, ok bool) {
	const prefix = "dp3.tasks."
	if len(subject) <= len(prefix) {
		return "", false
	}
	return subject[len(prefix):], true
}
