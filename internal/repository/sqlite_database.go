// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package repository provides SQLiteDatabase, the reference implementation
// of historymanager.Database backed by sqlx/squirrel/go-sqlite3, the same
// stack the teacher's job repository is built on.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/dp3/historymgr/internal/datapoint"
	"github.com/dp3/historymgr/internal/historymanager"
	"github.com/dp3/historymgr/pkg/log"
)

// identifierPattern bounds the etype/attr strings accepted as SQL
// identifiers when composing a per-attribute table name — both come from
// AttrSpec documents loaded at startup, never from request input, but
// staying defensive here costs nothing.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteDatabase implements historymanager.Database (§4.5.a) on top of a
// sqlite3 file. Each (etype, attr) pair gets its own table, created lazily
// on first use; the single static `entity` table is created by the
// embedded golang-migrate migrations (§3 Storage representation).
type SQLiteDatabase struct {
	conn *DBConnection

	mu           sync.Mutex
	ensuredTable map[string]bool
}

// NewSQLiteDatabase wraps an already-connected DBConnection.
func NewSQLiteDatabase(conn *DBConnection) *SQLiteDatabase {
	return &SQLiteDatabase{conn: conn, ensuredTable: map[string]bool{}}
}

var _ historymanager.Database = (*SQLiteDatabase)(nil)

func tableName(etype, attr string) (string, error) {
	if !identifierPattern.MatchString(etype) || !identifierPattern.MatchString(attr) {
		return "", fmt.Errorf("invalid table identifier %s__%s", etype, attr)
	}
	return etype + "__" + attr, nil
}

func (s *SQLiteDatabase) ensureTable(ctx context.Context, etype, attr string) (string, error) {
	table, err := tableName(etype, attr)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensuredTable[table] {
		return table, nil
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		id   TEXT PRIMARY KEY,
		eid  TEXT NOT NULL,
		v    TEXT NOT NULL,
		c    REAL NOT NULL,
		src  TEXT NOT NULL,
		t1   TEXT NOT NULL,
		t2   TEXT NOT NULL,
		tag  INTEGER NOT NULL
	)`, table)
	if _, err := s.conn.DB.ExecContext(ctx, ddl); err != nil {
		return "", fmt.Errorf("create table %s: %w", table, err)
	}
	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q (eid, t1, t2)`, table+"_range_idx", table)
	if _, err := s.conn.DB.ExecContext(ctx, idx); err != nil {
		return "", fmt.Errorf("create index on %s: %w", table, err)
	}

	s.ensuredTable[table] = true
	return table, nil
}

func rfc3339(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseRFC3339(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func scanDatapoint(row interface {
	Scan(dest ...any) error
}) (datapoint.Datapoint, error) {
	var d datapoint.Datapoint
	var vJSON, t1, t2 string
	var tag int
	if err := row.Scan(&d.ID, &d.EID, &vJSON, &d.C, &d.Src, &t1, &t2, &tag); err != nil {
		return d, err
	}
	if err := json.Unmarshal([]byte(vJSON), &d.V); err != nil {
		return d, fmt.Errorf("decode value: %w", err)
	}
	t1t, err := parseRFC3339(t1)
	if err != nil {
		return d, err
	}
	t2t, err := parseRFC3339(t2)
	if err != nil {
		return d, err
	}
	d.T1, d.T2 = t1t, t2t
	d.Tag = datapoint.Tag(tag)
	return d, nil
}

// GetDatapointsRange implements §6's get_datapoints_range.
func (s *SQLiteDatabase) GetDatapointsRange(ctx context.Context, q datapoint.RangeQuery) ([]datapoint.Datapoint, error) {
	table, err := s.ensureTable(ctx, q.EType, q.Attr)
	if err != nil {
		return nil, err
	}

	sel := sq.Select("id", "eid", "v", "c", "src", "t1", "t2", "tag").From(table)
	if q.EID != "" {
		sel = sel.Where(sq.Eq{"eid": q.EID})
	}
	if q.T1 != nil && q.T2 != nil {
		if q.ClosedInterval {
			sel = sel.Where(sq.And{sq.GtOrEq{"t2": rfc3339(*q.T1)}, sq.LtOrEq{"t1": rfc3339(*q.T2)}})
		} else {
			sel = sel.Where(sq.And{sq.Gt{"t2": rfc3339(*q.T1)}, sq.Lt{"t1": rfc3339(*q.T2)}})
		}
	}
	switch q.FilterRedundant {
	case datapoint.FilterExcludeRedundant:
		sel = sel.Where(sq.NotEq{"tag": int(datapoint.Redundant)})
	case datapoint.FilterOnlyRedundant:
		sel = sel.Where(sq.Eq{"tag": int(datapoint.Redundant)})
	}
	switch q.Sort {
	case datapoint.SortDescByT2:
		sel = sel.OrderBy("t2 DESC")
	default:
		sel = sel.OrderBy("t1 ASC")
	}
	if q.Limit > 0 {
		sel = sel.Limit(uint64(q.Limit))
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, err
	}
	log.Debugf("SQL query: %s args: %v", query, args)

	rows, err := s.conn.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []datapoint.Datapoint
	for rows.Next() {
		d, err := scanDatapoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteDatabase) CreateDatapoint(ctx context.Context, etype, attrID string, dp datapoint.Datapoint) error {
	table, err := s.ensureTable(ctx, etype, attrID)
	if err != nil {
		return err
	}
	vJSON, err := json.Marshal(dp.V)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	query, args, err := sq.Insert(table).
		Columns("id", "eid", "v", "c", "src", "t1", "t2", "tag").
		Values(dp.ID, dp.EID, string(vJSON), dp.C, dp.Src, rfc3339(dp.T1), rfc3339(dp.T2), int(dp.Tag)).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.conn.DB.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLiteDatabase) RewriteDatapoints(ctx context.Context, etype, attrID string, dps []datapoint.Datapoint) error {
	table, err := s.ensureTable(ctx, etype, attrID)
	if err != nil {
		return err
	}
	tx, err := s.conn.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for _, dp := range dps {
		vJSON, err := json.Marshal(dp.V)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encode value: %w", err)
		}
		query, args, err := sq.Update(table).
			Set("v", string(vJSON)).Set("c", dp.C).Set("src", dp.Src).
			Set("t1", rfc3339(dp.T1)).Set("t2", rfc3339(dp.T2)).Set("tag", int(dp.Tag)).
			Where(sq.Eq{"id": dp.ID}).ToSql()
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteDatabase) DeleteMultipleRecords(ctx context.Context, etype, attrID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	table, err := s.ensureTable(ctx, etype, attrID)
	if err != nil {
		return err
	}
	query, args, err := sq.Delete(table).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return err
	}
	_, err = s.conn.DB.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLiteDatabase) DeleteRecord(ctx context.Context, etype, attrID, id string) error {
	return s.DeleteMultipleRecords(ctx, etype, attrID, []string{id})
}

func (s *SQLiteDatabase) DeleteOldDatapoints(ctx context.Context, etype, attrName string, tOld time.Time, tRedundant *time.Time, tag *datapoint.Tag) error {
	table, err := s.ensureTable(ctx, etype, attrName)
	if err != nil {
		return err
	}
	del := sq.Delete(table)
	cutoff := tOld
	if tRedundant != nil {
		cutoff = *tRedundant
	}
	del = del.Where(sq.Lt{"t2": rfc3339(cutoff)})
	if tag != nil {
		del = del.Where(sq.Eq{"tag": int(*tag)})
	}
	query, args, err := del.ToSql()
	if err != nil {
		return err
	}
	_, err = s.conn.DB.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLiteDatabase) GetEntities(ctx context.Context, etype string) ([]string, error) {
	query, args, err := sq.Select("eid").From("entity").Where(sq.Eq{"etype": etype}).ToSql()
	if err != nil {
		return nil, err
	}
	var out []string
	if err := s.conn.DB.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetEntitiesWithExpiredValues is only meaningful for multi_value
// attributes, whose expiration is tracked in the entity document rather
// than in the SQL schema; History Manager's housekeeping instead calls
// LoadRecord per entity and inspects the Exp field directly (§4.6), so this
// method exists only to satisfy the Database contract and is not exercised
// by this package. It does not inspect expirations: it returns every
// entity of etype.
func (s *SQLiteDatabase) GetEntitiesWithExpiredValues(ctx context.Context, etype, attrID string, now time.Time) ([]string, error) {
	return s.GetEntities(ctx, etype)
}

func (s *SQLiteDatabase) UnsetExpiredValues(ctx context.Context, etype, attrID string, hasConfidence bool, now time.Time) ([]string, error) {
	rows, err := s.loadAllDocs(ctx, etype)
	if err != nil {
		return nil, err
	}
	var touched []string
	for eid, doc := range rows {
		expKey := attrID + ":exp"
		rawExp, ok := doc[expKey]
		if !ok || rawExp == nil {
			continue
		}
		expStr, ok := rawExp.(string)
		if !ok {
			continue
		}
		expTime, err := parseRFC3339(expStr)
		if err != nil || expTime.After(now) {
			continue
		}
		delete(doc, attrID)
		delete(doc, expKey)
		if hasConfidence {
			delete(doc, attrID+":c")
		}
		if err := s.writeDoc(ctx, etype, eid, doc); err != nil {
			return nil, err
		}
		touched = append(touched, eid)
	}
	return touched, nil
}

func (s *SQLiteDatabase) loadAllDocs(ctx context.Context, etype string) (map[string]map[string]any, error) {
	query, args, err := sq.Select("eid", "doc").From("entity").Where(sq.Eq{"etype": etype}).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.conn.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]map[string]any{}
	for rows.Next() {
		var eid, raw string
		if err := rows.Scan(&eid, &raw); err != nil {
			return nil, err
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, err
		}
		out[eid] = doc
	}
	return out, rows.Err()
}

func (s *SQLiteDatabase) writeDoc(ctx context.Context, etype, eid string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	query, args, err := sq.Insert("entity").
		Columns("etype", "eid", "doc").Values(etype, eid, string(raw)).
		Suffix("ON CONFLICT(etype, eid) DO UPDATE SET doc = excluded.doc").
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.conn.DB.ExecContext(ctx, query, args...)
	return err
}

// entityDoc is the JSON shape persisted in entity.doc: parallel value,
// confidence, and expiration maps (§3).
type entityDoc struct {
	V   map[string]any      `json:"v"`
	C   map[string]any      `json:"c"`
	Exp map[string][]string `json:"exp"`
}

func (s *SQLiteDatabase) LoadRecord(ctx context.Context, etype, eid string) (*historymanager.Record, error) {
	query, args, err := sq.Select("doc").From("entity").Where(sq.Eq{"etype": etype, "eid": eid}).ToSql()
	if err != nil {
		return nil, err
	}
	var raw string
	err = s.conn.DB.GetContext(ctx, &raw, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return &historymanager.Record{EType: etype, EID: eid, V: map[string]any{}, C: map[string]any{}, Exp: map[string][]time.Time{}}, nil
	}
	if err != nil {
		return nil, err
	}

	var doc entityDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode entity doc: %w", err)
	}
	rec := &historymanager.Record{EType: etype, EID: eid, V: doc.V, C: doc.C, Exp: map[string][]time.Time{}}
	for attr, strs := range doc.Exp {
		times := make([]time.Time, 0, len(strs))
		for _, s := range strs {
			t, err := parseRFC3339(s)
			if err != nil {
				continue
			}
			times = append(times, t)
		}
		rec.Exp[attr] = times
	}
	if rec.V == nil {
		rec.V = map[string]any{}
	}
	if rec.C == nil {
		rec.C = map[string]any{}
	}
	return rec, nil
}

func (s *SQLiteDatabase) PushRecord(ctx context.Context, rec *historymanager.Record) error {
	exp := make(map[string][]string, len(rec.Exp))
	for attr, times := range rec.Exp {
		strs := make([]string, 0, len(times))
		for _, t := range times {
			strs = append(strs, rfc3339(t))
		}
		exp[attr] = strs
	}
	doc := entityDoc{V: rec.V, C: rec.C, Exp: exp}
	return s.writeDoc(ctx, rec.EType, rec.EID, doc)
}
