// Package checkpoint 把演化变量及其历史保存到 SQLite，用于重启
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	_ "modernc.org/sqlite"

	"evolve/history"
	"evolve/stepper"
	"evolve/times"
)

// ErrNotFound 没有对应的检查点
var ErrNotFound = errors.New("checkpoint: 不存在")

// Snapshot 单个单元某一时刻的状态
type Snapshot struct {
	Element int
	Vars    string
	Step    int64
	Time    times.Time
	Value   []float64
	History *stepper.History
}

// Store SQLite 存储，WAL 模式支持多个单元并发写入
type Store struct {
	db *sql.DB
}

// Open 打开或创建数据库并初始化表
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close 关闭数据库
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		element       INTEGER NOT NULL,
		vars          TEXT NOT NULL,
		step          INTEGER NOT NULL,
		slab_number   INTEGER NOT NULL,
		slab_origin   REAL NOT NULL,
		slab_duration REAL NOT NULL,
		frac_num      INTEGER NOT NULL,
		frac_den      INTEGER NOT NULL,
		value         BLOB NOT NULL,
		forward       INTEGER NOT NULL,
		capacity      INTEGER NOT NULL,
		saved_at      TEXT NOT NULL,
		PRIMARY KEY (element, vars)
	);

	CREATE TABLE IF NOT EXISTS entries (
		element       INTEGER NOT NULL,
		vars          TEXT NOT NULL,
		position      INTEGER NOT NULL,
		slab_number   INTEGER NOT NULL,
		slab_origin   REAL NOT NULL,
		slab_duration REAL NOT NULL,
		frac_num      INTEGER NOT NULL,
		frac_den      INTEGER NOT NULL,
		value         BLOB NOT NULL,
		derivative    BLOB NOT NULL,
		PRIMARY KEY (element, vars, position)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save 覆盖保存快照，历史样本按缓存顺序写入
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	if snap.History == nil {
		return errors.New("checkpoint: 快照缺少历史")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return retryOp(ctx, defaultRetryConfig, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		slab, frac := snap.Time.Slab(), snap.Time.Fraction()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO snapshots (element, vars, step, slab_number, slab_origin, slab_duration,
				frac_num, frac_den, value, forward, capacity, saved_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(element, vars) DO UPDATE SET
				step = excluded.step, slab_number = excluded.slab_number,
				slab_origin = excluded.slab_origin, slab_duration = excluded.slab_duration,
				frac_num = excluded.frac_num, frac_den = excluded.frac_den,
				value = excluded.value, forward = excluded.forward,
				capacity = excluded.capacity, saved_at = excluded.saved_at`,
			snap.Element, snap.Vars, snap.Step, slab.Number, slab.Origin, slab.Duration,
			frac.Num(), frac.Den(), encode(snap.Value), snap.History.Forward(), snap.History.Cap(), now,
		)
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM entries WHERE element = ? AND vars = ?`,
			snap.Element, snap.Vars); err != nil {
			return err
		}
		for i, e := range snap.History.All() {
			slab, frac := e.Time.Slab(), e.Time.Fraction()
			_, err = tx.ExecContext(ctx,
				`INSERT INTO entries (element, vars, position, slab_number, slab_origin, slab_duration,
					frac_num, frac_den, value, derivative)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				snap.Element, snap.Vars, i, slab.Number, slab.Origin, slab.Duration,
				frac.Num(), frac.Den(), encode(e.Value), encode(e.Derivative),
			)
			if err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// Load 读取快照，历史样本按保存时的顺序恢复
func (s *Store) Load(ctx context.Context, element int, vars string) (Snapshot, error) {
	snap := Snapshot{Element: element, Vars: vars}
	var (
		t        timeColumns
		value    []byte
		forward  bool
		capacity int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT step, slab_number, slab_origin, slab_duration, frac_num, frac_den, value, forward, capacity
		 FROM snapshots WHERE element = ? AND vars = ?`, element, vars,
	).Scan(&snap.Step, &t.number, &t.origin, &t.duration, &t.num, &t.den, &value, &forward, &capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, fmt.Errorf("%w: 单元 %d %s", ErrNotFound, element, vars)
	}
	if err != nil {
		return snap, err
	}
	if snap.Time, err = t.time(); err != nil {
		return snap, err
	}
	if snap.Value, err = decode(value); err != nil {
		return snap, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT slab_number, slab_origin, slab_duration, frac_num, frac_den, value, derivative
		 FROM entries WHERE element = ? AND vars = ? ORDER BY position`, element, vars)
	if err != nil {
		return snap, err
	}
	defer rows.Close()
	hist := history.New[[]float64](capacity, forward, slices.Clone)
	for rows.Next() {
		var (
			et     timeColumns
			vb, db []byte
		)
		if err := rows.Scan(&et.number, &et.origin, &et.duration, &et.num, &et.den, &vb, &db); err != nil {
			return snap, err
		}
		tm, err := et.time()
		if err != nil {
			return snap, err
		}
		v, err := decode(vb)
		if err != nil {
			return snap, err
		}
		d, err := decode(db)
		if err != nil {
			return snap, err
		}
		if err := hist.Append(tm, v, d); err != nil {
			return snap, fmt.Errorf("checkpoint: 历史损坏: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}
	snap.History = hist
	return snap, nil
}

// Elements 已保存的单元编号
func (s *Store) Elements(ctx context.Context, vars string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT element FROM snapshots WHERE vars = ? ORDER BY element`, vars)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// timeColumns 时间点的存储列
type timeColumns struct {
	number           int64
	origin, duration float64
	num, den         int64
}

func (c timeColumns) time() (times.Time, error) {
	if c.den <= 0 || !(c.duration > 0) {
		return times.Time{}, fmt.Errorf("checkpoint: 时间列无效 %d/%d", c.num, c.den)
	}
	slab := times.NewSlab(c.origin, c.duration).Shift(c.number)
	return times.NewTime(slab, times.NewRational(c.num, c.den)), nil
}

// encode 小端 float64 序列
func encode(v []float64) []byte {
	b := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(x))
	}
	return b
}

func decode(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("checkpoint: 数据长度 %d 不是 8 的倍数", len(b))
	}
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return v, nil
}
