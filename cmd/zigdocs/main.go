package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zigdocs/zigdocs/internal/config"
	"github.com/zigdocs/zigdocs/internal/docbuilder"
	"github.com/zigdocs/zigdocs/internal/domain"
	"github.com/zigdocs/zigdocs/internal/pool"
	"github.com/zigdocs/zigdocs/internal/preload"
	"github.com/zigdocs/zigdocs/internal/repository"
	"github.com/zigdocs/zigdocs/internal/resolvecache"
	"github.com/zigdocs/zigdocs/internal/server"
	"github.com/zigdocs/zigdocs/internal/service"
	"github.com/zigdocs/zigdocs/internal/store"
	"github.com/zigdocs/zigdocs/internal/utils"
	"github.com/zigdocs/zigdocs/internal/vcs"
	"github.com/zigdocs/zigdocs/pkg/version"
)

var (
	cfgFile string
	verbose bool

	// Dependencies for testing
	execLookPath = exec.LookPath
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "zigdocs",
	Short: "On-demand documentation hosting for remote source modules",
	Long: `zigdocs serves generated HTML documentation for remote source modules.

On the first request for a repository it clones the repository, runs the
documentation generator, and caches the result on disk; subsequent requests
stream straight from the cache.`,
	Version: version.Short(),
	RunE:    runServe,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.zigdocs/config.yaml)")
	rootCmd.PersistentFlags().String("host", config.DefaultHost, "Listen address")
	rootCmd.PersistentFlags().IntP("port", "p", config.DefaultPort, "Listen port")
	rootCmd.PersistentFlags().Int("http-workers", config.DefaultHTTPWorkers, "Concurrent HTTP request limit")
	rootCmd.PersistentFlags().StringP("data-dir", "d", config.DefaultDataDir, "Artifact store root")
	rootCmd.PersistentFlags().String("git-executable", config.DefaultGitExecutable, "Path to the git binary")
	rootCmd.PersistentFlags().String("zig-executable", config.DefaultZigExecutable, "Path to the zig binary")
	rootCmd.PersistentFlags().String("zig-cache-dir", "", "Cache directory passed to the generator")
	rootCmd.PersistentFlags().String("preload-file", "", "YAML file of repositories to sync at startup")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	_ = viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("http_workers", rootCmd.PersistentFlags().Lookup("http-workers"))
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("git_executable", rootCmd.PersistentFlags().Lookup("git-executable"))
	_ = viper.BindPFlag("zig_executable", rootCmd.PersistentFlags().Lookup("zig-executable"))
	_ = viper.BindPFlag("zig_cache_dir", rootCmd.PersistentFlags().Lookup("zig-cache-dir"))
	_ = viper.BindPFlag("preload_file", rootCmd.PersistentFlags().Lookup("preload-file"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func newLogger(cfg *config.Config) *utils.Logger {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return utils.NewLogger(utils.LoggerOptions{
		Level:   level,
		Format:  cfg.Logging.Format,
		Verbose: verbose,
	})
}

// deps is the wired object graph shared by serve and sync.
type deps struct {
	store   *store.LocalDir
	resolve *resolvecache.Cache
	pool    *pool.Pool
	repo    *repository.Repository
	svc     *service.Service
}

func buildDeps(cfg *config.Config, logger *utils.Logger) (*deps, error) {
	st, err := store.NewLocalDir(store.LocalDirOptions{
		Path:   utils.ExpandPath(cfg.DataDir),
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening artifact store: %w", err)
	}

	var resolve *resolvecache.Cache
	if cfg.ResolveCache.Enabled {
		resolve, err = resolvecache.New(resolvecache.Options{
			Directory: utils.ExpandPath(cfg.ResolveCache.Directory),
			TTL:       cfg.ResolveCache.TTL,
			Logger:    logger,
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("opening resolve cache: %w", err)
		}
	}

	gitClient := vcs.NewClient(vcs.ClientOptions{
		Executable: cfg.GitExecutable,
		Logger:     logger,
	})
	builder := docbuilder.NewBuilder(docbuilder.BuilderOptions{
		Executable: cfg.ZigExecutable,
		CacheDir:   utils.ExpandPath(cfg.ZigCacheDir),
		Logger:     logger,
	})

	workerPool := pool.New(logger)
	repo := repository.New(repository.Options{
		Store:        st,
		VCS:          gitClient,
		Builder:      builder,
		Pool:         workerPool,
		ResolveCache: resolve,
		Logger:       logger,
	})

	return &deps{
		store:   st,
		resolve: resolve,
		pool:    workerPool,
		repo:    repo,
		svc:     service.New(repo, logger),
	}, nil
}

func (d *deps) close() {
	if d.resolve != nil {
		d.resolve.Close()
	}
	d.store.Close()
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the documentation server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg)

	// The handler only cancels the context; teardown happens below, on this
	// goroutine, after the server returns.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer d.close()

	if cfg.PreloadFile != "" {
		sources, err := preload.Load(utils.ExpandPath(cfg.PreloadFile))
		if err != nil {
			return err
		}
		logger.Info().Int("repositories", len(sources)).Msg("preloading")
		d.repo.Preload(sources)
	}

	srv := server.New(server.Options{
		Config:  cfg,
		Service: d.svc,
		Store:   d.store,
		Pool:    d.pool,
		Logger:  logger,
	})

	err = srv.Run(ctx)

	logger.Info().Msg("waiting for in-flight builds")
	d.pool.Deinit()

	return err
}

var syncCmd = &cobra.Command{
	Use:   "sync <host/org/repo[@version]>",
	Short: "Build one repository's documentation synchronously",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger := newLogger(cfg)

		src, err := domain.ParseSource(args[0])
		if err != nil {
			return err
		}
		if src.Module != "" {
			return fmt.Errorf("sync takes a repository path, not a module path")
		}

		d, err := buildDeps(cfg, logger)
		if err != nil {
			return err
		}
		defer d.close()

		bar := progressbar.NewOptions(4,
			progressbar.OptionSetDescription("sync"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
		loc, err := d.repo.SyncNow(cmd.Context(), src, func(step string) {
			bar.Describe(step)
			_ = bar.Add(1)
		})
		_ = bar.Finish()
		if err != nil {
			return err
		}

		fmt.Printf("synced %s\n", loc)
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system dependencies",
	Long:  "Verifies that the external binaries and directories the server needs are available.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("  Config file: WARN (%v)\n", err)
			cfg = config.Default()
		}

		fmt.Println("Checking system dependencies...")
		allPassed := true

		fmt.Print("  Git executable: ")
		if path, err := execLookPath(cfg.GitExecutable); err == nil {
			fmt.Printf("OK (%s)\n", path)
		} else {
			fmt.Println("NOT FOUND")
			allPassed = false
		}

		fmt.Print("  Zig executable: ")
		if path, err := execLookPath(cfg.ZigExecutable); err == nil {
			fmt.Printf("OK (%s)\n", path)
		} else {
			fmt.Println("NOT FOUND")
			allPassed = false
		}

		fmt.Print("  Data directory: ")
		if checkWritable(utils.ExpandPath(cfg.DataDir)) {
			fmt.Printf("OK (%s)\n", cfg.DataDir)
		} else {
			fmt.Println("FAILED")
			allPassed = false
		}

		fmt.Println()
		if allPassed {
			fmt.Println("All checks passed!")
		} else {
			fmt.Println("Some checks failed. Please resolve the issues above.")
		}
		return nil
	},
}

// checkWritable checks that dir exists (creating it if needed) and accepts writes
func checkWritable(dir string) bool {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false
	}
	probe := filepath.Join(dir, ".zigdocs_write_probe")
	f, err := os.Create(probe)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(probe)
	return true
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Full())
	},
}
