// Package voicedb 把音库（二进制 CART 与音素时长统计）存放在单个 SQLite 文件中。
package voicedb

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/iabetor/prosody/internal/cart"
	"github.com/iabetor/prosody/internal/logger"
	"github.com/iabetor/prosody/internal/prosody"
)

// ErrNotFound 表示数据库中没有请求的记录。
var ErrNotFound = errors.New("voicedb: 记录不存在")

// DB 是音库数据库连接。
type DB struct {
	*sql.DB
	path string
}

// TreeInfo 是已存储树的概要。
type TreeInfo struct {
	Name      string
	NodeCount int
	Size      int
	UpdatedAt string
}

// Open 打开或创建数据库，并执行迁移。
func Open(dbPath string) (*DB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("数据库路径为空")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// 单连接，避免 :memory: 数据库在连接池中各自为政
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("启用外键约束失败: %w", err)
	}

	vdb := &DB{DB: db, path: dbPath}
	if err := vdb.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Infof("[voicedb] 数据库已打开: %s", dbPath)
	return vdb, nil
}

// Path 返回数据库文件路径。
func (db *DB) Path() string {
	return db.path
}

// Migrate 创建音库所需的表。
func (db *DB) Migrate() error {
	migrations := []string{
		// 二进制格式的 CART
		`CREATE TABLE IF NOT EXISTS cart_trees (
			name TEXT PRIMARY KEY,
			node_count INTEGER NOT NULL,
			data BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		// 音素时长统计
		`CREATE TABLE IF NOT EXISTS phone_durations (
			phone TEXT PRIMARY KEY,
			mean REAL NOT NULL,
			stddev REAL NOT NULL
		)`,
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}
	return nil
}

// SaveTree 以二进制格式保存树，同名树会被覆盖。
func (db *DB) SaveTree(name string, t *cart.Tree) error {
	var buf bytes.Buffer
	if err := t.DumpBinary(&buf); err != nil {
		return fmt.Errorf("序列化树 %s 失败: %w", name, err)
	}
	_, err := db.Exec(`
		INSERT INTO cart_trees (name, node_count, data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			node_count = excluded.node_count,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP`,
		name, t.Len(), buf.Bytes())
	if err != nil {
		return fmt.Errorf("保存树 %s 失败: %w", name, err)
	}
	logger.Debugf("[voicedb] 已保存树 %s (%d 个节点, %d 字节)", name, t.Len(), buf.Len())
	return nil
}

// LoadTree 读取并解析树，返回的树以 name 命名。
func (db *DB) LoadTree(name string) (*cart.Tree, error) {
	var data []byte
	err := db.QueryRow("SELECT data FROM cart_trees WHERE name = ?", name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: 树 %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("读取树 %s 失败: %w", name, err)
	}
	t, err := cart.LoadBinary(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解析树 %s 失败: %w", name, err)
	}
	return t.Named(name), nil
}

// ListTrees 按名称列出已存储的树。
func (db *DB) ListTrees() ([]TreeInfo, error) {
	rows, err := db.Query("SELECT name, node_count, length(data), updated_at FROM cart_trees ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("查询树列表失败: %w", err)
	}
	defer rows.Close()

	var out []TreeInfo
	for rows.Next() {
		var ti TreeInfo
		if err := rows.Scan(&ti.Name, &ti.NodeCount, &ti.Size, &ti.UpdatedAt); err != nil {
			return nil, fmt.Errorf("读取树列表失败: %w", err)
		}
		out = append(out, ti)
	}
	return out, rows.Err()
}

// DeleteTree 删除树；不存在时返回 ErrNotFound。
func (db *DB) DeleteTree(name string) error {
	res, err := db.Exec("DELETE FROM cart_trees WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("删除树 %s 失败: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: 树 %s", ErrNotFound, name)
	}
	return nil
}

// SavePhoneStats 在一个事务中写入（覆盖）音素时长统计。
func (db *DB) SavePhoneStats(table prosody.DurationTable) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO phone_durations (phone, mean, stddev) VALUES (?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET mean = excluded.mean, stddev = excluded.stddev`)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()

	for _, phone := range table.Phones() {
		st := table[phone]
		if _, err := stmt.Exec(phone, float64(st.Mean), float64(st.StdDev)); err != nil {
			return fmt.Errorf("写入音素 %s 失败: %w", phone, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	logger.Debugf("[voicedb] 已保存 %d 个音素时长", len(table))
	return nil
}

// LoadPhoneStats 读取全部音素时长统计；表为空时返回 ErrNotFound。
func (db *DB) LoadPhoneStats() (prosody.DurationTable, error) {
	rows, err := db.Query("SELECT phone, mean, stddev FROM phone_durations")
	if err != nil {
		return nil, fmt.Errorf("查询音素时长失败: %w", err)
	}
	defer rows.Close()

	table := make(prosody.DurationTable)
	for rows.Next() {
		var phone string
		var mean, std float64
		if err := rows.Scan(&phone, &mean, &std); err != nil {
			return nil, fmt.Errorf("读取音素时长失败: %w", err)
		}
		table[phone] = prosody.PhoneStats{Mean: float32(mean), StdDev: float32(std)}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("%w: 音素时长表为空", ErrNotFound)
	}
	return table, nil
}

// Close 关闭数据库连接。
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}
