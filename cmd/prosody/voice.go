package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iabetor/prosody/internal/cart"
	"github.com/iabetor/prosody/internal/config"
	"github.com/iabetor/prosody/internal/logger"
	"github.com/iabetor/prosody/internal/prosody"
	"github.com/iabetor/prosody/internal/voicedb"
)

// treeNames 是音库中的四棵树。
var treeNames = []string{"duration", "accent", "tone", "phrase"}

// requiredTrees 返回模块列表需要的树名，以及是否需要时长统计。
func requiredTrees(modules []string) ([]string, bool) {
	var names []string
	needStats := false
	for _, m := range modules {
		switch m {
		case "phraser":
			names = append(names, "phrase")
		case "intonator":
			names = append(names, "accent", "tone")
		case "durator":
			names = append(names, "duration")
			needStats = true
		}
	}
	return names, needStats
}

// loadTreeFile 读取树文件：.bin 按二进制格式，其余按文本格式。
func loadTreeFile(path string) (*cart.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开树文件 %s 失败: %w", path, err)
	}
	defer f.Close()

	var t *cart.Tree
	if strings.EqualFold(filepath.Ext(path), ".bin") {
		t, err = cart.LoadBinary(f)
	} else {
		t, err = cart.LoadText(f)
	}
	if err != nil {
		return nil, fmt.Errorf("加载树文件 %s 失败: %w", path, err)
	}
	return t, nil
}

// voiceLoader 按配置从文件或数据库加载音库，数据库只在需要时打开。
type voiceLoader struct {
	cfg config.VoiceConfig
	db  *voicedb.DB
}

func (l *voiceLoader) openDB() (*voicedb.DB, error) {
	if l.db == nil {
		db, err := voicedb.Open(l.cfg.DBPath)
		if err != nil {
			return nil, err
		}
		l.db = db
	}
	return l.db, nil
}

func (l *voiceLoader) tree(name string) (*cart.Tree, error) {
	if path, ok := l.cfg.Trees[name]; ok && path != "" {
		t, err := loadTreeFile(path)
		if err != nil {
			return nil, err
		}
		return t.Named(name), nil
	}
	db, err := l.openDB()
	if err != nil {
		return nil, err
	}
	return db.LoadTree(name)
}

func (l *voiceLoader) stats() (prosody.DurationTable, error) {
	if l.cfg.DurationStats != "" {
		return prosody.LoadDurationTableFile(l.cfg.DurationStats)
	}
	db, err := l.openDB()
	if err != nil {
		return nil, err
	}
	return db.LoadPhoneStats()
}

func (l *voiceLoader) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// loadVoice 加载模块列表所需的树和统计。
func loadVoice(cfg *config.Config) (*prosody.Voice, error) {
	l := &voiceLoader{cfg: cfg.Voice}
	defer l.Close()

	names, needStats := requiredTrees(cfg.Pipeline.Modules)
	v := &prosody.Voice{}
	for _, name := range names {
		t, err := l.tree(name)
		if err != nil {
			return nil, err
		}
		logger.Infof("[voice] 已加载树 %s (%d 个节点)", name, t.Len())
		switch name {
		case "duration":
			v.Duration = t
		case "accent":
			v.Accent = t
		case "tone":
			v.Tone = t
		case "phrase":
			v.Phrase = t
		}
	}
	if needStats {
		st, err := l.stats()
		if err != nil {
			return nil, err
		}
		logger.Infof("[voice] 已加载 %d 个音素时长", len(st))
		v.Stats = st
	}
	return v, nil
}
