package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mchmarny/agape/pkg/config"
	"github.com/mchmarny/agape/pkg/data"
	"github.com/mchmarny/agape/pkg/logging"
	"github.com/mchmarny/agape/pkg/rule"
	"github.com/mchmarny/agape/pkg/score"
	urfave "github.com/urfave/cli/v3"
)

const (
	appName      = "agape"
	appConfigKey = "app-config"

	formatJSON  = config.FormatJSON
	formatYAML  = config.FormatYAML
	formatTable = config.FormatTable
)

const (
	flagDebug  = "debug"
	flagDB     = "db"
	flagRules  = "rules"
	flagFormat = "format"
	flagConfig = "config"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp()
	if err := app.Run(ctx, os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		stop()
		os.Exit(1)
	}
}

type appConfig struct {
	HomeDir   string
	DBPath    string
	RulesPath string
	Format    string
	Port      int
	Debug     bool
	DB        *sql.DB
	Rules     *rule.RuleSet
	Scorer    *score.Scorer
}

func getConfig(cmd *urfave.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

func newApp() *urfave.Command {
	return &urfave.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Score text for alignment with a configurable set of keyword rules",
		Metadata:              map[string]any{},
		Flags: []urfave.Flag{
			&urfave.BoolFlag{
				Name:  flagDebug,
				Usage: "Prints verbose logs (optional, default: false)",
			},
			&urfave.StringFlag{
				Name:  flagDB,
				Usage: "Path to the Sqlite database file (default: $HOME/.agape/data.db)",
			},
			&urfave.StringFlag{
				Name:  flagRules,
				Usage: "Path to a JSON or YAML rule set (default: built-in rules)",
			},
			&urfave.StringFlag{
				Name:  flagFormat,
				Usage: "Output format [json, yaml, table]",
			},
			&urfave.StringFlag{
				Name:  flagConfig,
				Usage: "Directory holding config.yaml (default: $HOME/.agape)",
			},
		},
		Commands: []*urfave.Command{
			evalCommand(),
			batchCommand(),
			demoCommand(),
			interactiveCommand(),
			rulesCommand(),
			impactCommand(),
			historyCommand(),
			resetCommand(),
			authCommand(),
			serverCommand(),
		},
		Before: func(ctx context.Context, cmd *urfave.Command) (context.Context, error) {
			cfg, err := loadAppConfig(cmd)
			if err != nil {
				return ctx, err
			}
			cmd.Metadata[appConfigKey] = cfg
			return ctx, nil
		},
		After: func(_ context.Context, cmd *urfave.Command) error {
			if cfg, ok := cmd.Metadata[appConfigKey].(*appConfig); ok && cfg.DB != nil {
				cfg.DB.Close()
			}
			return nil
		},
	}
}

// loadAppConfig layers the config file, environment and flags, then opens
// the database and compiles the rule set.
func loadAppConfig(cmd *urfave.Command) (*appConfig, error) {
	dir := cmd.String(flagConfig)
	if dir == "" {
		home, _, err := config.GetOrCreateHomeDir(appName)
		if err != nil {
			return nil, fmt.Errorf("getting home dir: %w", err)
		}
		dir = home
	}

	fileCfg, err := config.ReadOrCreate(dir)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &appConfig{
		HomeDir:   dir,
		DBPath:    firstNonEmpty(cmd.String(flagDB), fileCfg.DBPath, filepath.Join(dir, data.DataFileName)),
		RulesPath: firstNonEmpty(cmd.String(flagRules), fileCfg.RulesPath),
		Format:    strings.ToLower(firstNonEmpty(cmd.String(flagFormat), fileCfg.Format)),
		Port:      fileCfg.Port,
		Debug:     cmd.Bool(flagDebug),
	}

	level := fileCfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	logging.SetDefaultCLILogger(level)

	switch cfg.Format {
	case formatJSON, formatYAML, formatTable:
	case "yml":
		cfg.Format = formatYAML
	default:
		return nil, fmt.Errorf("invalid format %q, expected one of: json, yaml, table", cfg.Format)
	}

	if cfg.Rules, err = loadRules(cfg.RulesPath); err != nil {
		return nil, err
	}
	if cfg.Scorer, err = score.New(cfg.Rules); err != nil {
		return nil, fmt.Errorf("compiling rules: %w", err)
	}

	if err := data.Init(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	if cfg.DB, err = data.GetDB(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	slog.Debug("config loaded",
		"dir", cfg.HomeDir,
		"db", cfg.DBPath,
		"rules", firstNonEmpty(cfg.RulesPath, "built-in"),
		"format", cfg.Format,
	)

	return cfg, nil
}

func loadRules(path string) (*rule.RuleSet, error) {
	if path == "" {
		return rule.Default(), nil
	}
	rs, err := rule.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading rules from %s: %w", path, err)
	}
	return rs, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func stdout(cmd *urfave.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func stdin(cmd *urfave.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}
