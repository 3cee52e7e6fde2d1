package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iabetor/prosody/internal/cart"
	"github.com/iabetor/prosody/internal/config"
	"github.com/iabetor/prosody/internal/frontend"
	"github.com/iabetor/prosody/internal/logger"
	"github.com/iabetor/prosody/internal/metrics"
	"github.com/iabetor/prosody/internal/prosody"
	"github.com/iabetor/prosody/internal/utterance"
	"github.com/iabetor/prosody/internal/voicedb"
)

const defaultConfigPath = "configs/prosody.yaml"

// app 保存命令之间共享的状态。
type app struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "prosody",
		Short:         "CART-based prosody annotation for TTS front-ends",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfigPath, "配置文件路径")

	root.AddCommand(
		a.dumpCmd(),
		a.showCmd(),
		a.importCmd(),
		a.annotateCmd(),
		a.explainCmd(),
	)
	return root
}

// init 加载配置并初始化日志；默认配置文件不存在时使用内置默认值。
func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		if a.configPath != defaultConfigPath || !errors.Is(err, os.ErrNotExist) {
			return err
		}
		cfg = config.Default()
	}
	a.cfg = cfg

	return logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	})
}

func (a *app) dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <tree.txt> <tree.bin>",
		Short: "Convert a text-format tree to the binary format",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTreeFile(args[0])
			if err != nil {
				return err
			}
			f, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("创建 %s 失败: %w", args[1], err)
			}
			if err := t.DumpBinary(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes\n", args[1], t.Len())
			return nil
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	var fromDB bool
	cmd := &cobra.Command{
		Use:   "show <tree-file | tree-name>",
		Short: "Print a tree in text format (from a file, or from the voice database with --db)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var t *cart.Tree
			var err error
			if fromDB {
				db, derr := voicedb.Open(a.cfg.Voice.DBPath)
				if derr != nil {
					return derr
				}
				defer db.Close()
				t, err = db.LoadTree(args[0])
			} else {
				t, err = loadTreeFile(args[0])
			}
			if err != nil {
				return err
			}
			return t.DumpText(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&fromDB, "db", false, "从音库数据库读取")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Store the trees and duration table named in the config into the voice database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := voicedb.Open(a.cfg.Voice.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			for _, name := range treeNames {
				path, ok := a.cfg.Voice.Trees[name]
				if !ok || path == "" {
					continue
				}
				t, err := loadTreeFile(path)
				if err != nil {
					return err
				}
				if err := db.SaveTree(name, t); err != nil {
					return err
				}
				fmt.Fprintf(out, "tree %-8s %5d nodes  <- %s\n", name, t.Len(), path)
			}
			if p := a.cfg.Voice.DurationStats; p != "" {
				table, err := prosody.LoadDurationTableFile(p)
				if err != nil {
					return err
				}
				if err := db.SavePhoneStats(table); err != nil {
					return err
				}
				fmt.Fprintf(out, "durations %d phones  <- %s\n", len(table), p)
			}
			return nil
		},
	}
}

func (a *app) annotateCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "annotate [text...]",
		Short: "Build utterances from text and run the prosody modules on them",
		Long:  "Each argument is one utterance. With no arguments, each non-empty line of stdin is one utterance.",
		RunE: func(cmd *cobra.Command, args []string) error {
			texts := args
			if len(texts) == 0 {
				var err error
				texts, err = readLines(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}
			if workers == 0 {
				workers = a.cfg.Pipeline.Workers
			}

			voice, err := loadVoice(a.cfg)
			if err != nil {
				return err
			}
			m := metrics.New()
			mods, err := voice.Modules(a.cfg.Pipeline.Modules, prosody.WithMetrics(m))
			if err != nil {
				return err
			}

			utts := make([]*utterance.Utterance, 0, len(texts))
			for _, text := range texts {
				u, err := frontend.Build(text, frontend.Options{DurationStretch: a.cfg.Voice.DurationStretch})
				if err != nil {
					return fmt.Errorf("%q: %w", text, err)
				}
				utts = append(utts, u)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			runErr := prosody.NewPipeline(m, mods...).ProcessAll(ctx, utts, workers)

			if p := a.cfg.Metrics.Textfile; p != "" {
				if err := m.WriteTextfile(p); err != nil {
					logger.Warnf("[main] %v", err)
				}
			}
			if runErr != nil {
				return runErr
			}
			for _, u := range utts {
				printUtterance(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "并发处理的 utterance 数（默认取配置）")
	return cmd
}

func (a *app) explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <duration|accent|tone|phrase> <text> [unit-index]",
		Short: "Show the path a tree takes for one unit of the text",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			rel, ok := map[string]string{
				"duration": utterance.RelSegment,
				"accent":   utterance.RelSyllable,
				"tone":     utterance.RelSyllable,
				"phrase":   utterance.RelWord,
			}[name]
			if !ok {
				return fmt.Errorf("未知的树: %s", name)
			}
			index := 0
			if len(args) == 3 {
				n, err := strconv.Atoi(args[2])
				if err != nil || n < 0 {
					return fmt.Errorf("单元下标 %q 无效", args[2])
				}
				index = n
			}

			l := &voiceLoader{cfg: a.cfg.Voice}
			defer l.Close()
			t, err := l.tree(name)
			if err != nil {
				return err
			}
			u, err := frontend.Build(args[1], frontend.Options{DurationStretch: a.cfg.Voice.DurationStretch})
			if err != nil {
				return err
			}
			items := u.Relation(rel).Items()
			if index >= len(items) {
				return fmt.Errorf("%s 只有 %d 个单元", rel, len(items))
			}

			path, v, err := t.Trace(items[index])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s[%d] %q\n", rel, index, items[index].Name())
			for _, i := range path {
				fmt.Fprintf(out, "  %4d  %s\n", i, strings.TrimSpace(t.Node(i).Line))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "=> %s\n", v.Literal())
			return nil
		},
	}
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("读取输入失败: %w", err)
	}
	return lines, nil
}

// printUtterance 输出短语切分、音节语调和音段结束时间。
func printUtterance(w io.Writer, u *utterance.Utterance) {
	fmt.Fprintf(w, "utt %s %q\n", u.ID, u.Text)

	if phrases := u.Relation(utterance.RelPhrase); phrases != nil {
		fmt.Fprint(w, "  phrases:")
		for ph := phrases.Head(); ph != nil; ph = ph.Next() {
			var words []string
			for _, d := range ph.Daughters() {
				words = append(words, d.Name())
			}
			fmt.Fprintf(w, " [%s]", strings.Join(words, " "))
		}
		fmt.Fprintln(w)
	}

	if syls := u.Relation(utterance.RelSyllable); syls != nil {
		fmt.Fprint(w, "  syllables:")
		for s := syls.Head(); s != nil; s = s.Next() {
			var marks []string
			for _, f := range []string{"accent", "endtone"} {
				if v, ok := s.Get(f); ok {
					marks = append(marks, f+"="+v.String())
				}
			}
			if len(marks) > 0 {
				fmt.Fprintf(w, " %s(%s)", s.Name(), strings.Join(marks, ","))
			} else {
				fmt.Fprintf(w, " %s", s.Name())
			}
		}
		fmt.Fprintln(w)
	}

	if segs := u.Relation(utterance.RelSegment); segs != nil {
		fmt.Fprint(w, "  segments:")
		for s := segs.Head(); s != nil; s = s.Next() {
			if v, ok := s.Get("end"); ok {
				f, _ := v.Float32()
				fmt.Fprintf(w, " %s@%.3f", s.Name(), f)
			} else {
				fmt.Fprintf(w, " %s", s.Name())
			}
		}
		fmt.Fprintln(w)
	}
}
