package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/steelcutops/rigup/logger"
	"github.com/steelcutops/rigup/rigup/commandmanager"
	"github.com/steelcutops/rigup/rigup/config"
	"github.com/steelcutops/rigup/rigup/dockermanager"
	"github.com/steelcutops/rigup/rigup/drivermanager"
	"github.com/steelcutops/rigup/rigup/manifest"
	"github.com/steelcutops/rigup/rigup/packagemanager"
	"github.com/steelcutops/rigup/rigup/repomanager"
	"github.com/steelcutops/rigup/rigup/sequencer"
	"github.com/steelcutops/rigup/rigup/storagemanager"
	"github.com/steelcutops/rigup/rigup/usermanager"
)

type flags struct {
	ConfigPath   string
	ManifestPath string
	LogPath      string
	Debug        bool
	SkipDriver   bool
}

func parseFlags() *flags {
	f := &flags{}
	flag.StringVar(&f.ConfigPath, "config", "", "Path to INI file overriding machine defaults")
	flag.StringVar(&f.ManifestPath, "manifest", "", "Path to YAML manifest overriding the embedded package set")
	flag.StringVar(&f.LogPath, "log", "", "Audit log file path (overrides config)")
	flag.BoolVar(&f.Debug, "debug", false, "Enable debug log level")
	flag.BoolVar(&f.SkipDriver, "skip-driver", false, "Skip the GPU driver stage")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()

	// Precondition, checked before the log file is even opened: every
	// later step mutates root-owned state.
	if os.Geteuid() != 0 {
		fmt.Fprintln(os.Stderr, "rigup must be run as root")
		os.Exit(1)
	}

	fsys := afero.NewOsFs()

	cfg, err := config.Load(fsys, f.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if f.LogPath != "" {
		cfg.LogPath = f.LogPath
	}

	log, closeLog, err := logger.New(cfg.LogPath, f.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	mf, err := loadManifest(fsys, f.ManifestPath)
	if err != nil {
		log.WithError(err).Error("manifest load failed")
		os.Exit(1)
	}

	runner := &commandmanager.UnixCommandManager{}

	repos := &repomanager.Manager{Fs: fsys, Runner: runner, Log: log, Config: cfg, Manifest: mf}
	packages := &packagemanager.Manager{Runner: runner, Log: log}
	storage := &storagemanager.Manager{Fs: fsys, Runner: runner, Log: log, Config: cfg}
	users := &usermanager.Manager{Fs: fsys, Runner: runner, Log: log, Config: cfg}
	driver := &drivermanager.Manager{Fs: fsys, Runner: runner, Log: log, Config: cfg}
	docker := &dockermanager.Manager{Fs: fsys, Runner: runner, Log: log, Config: cfg}

	stages := []sequencer.Stage{
		{Name: "repositories", Policy: sequencer.Fatal, Run: repos.Configure},
		{Name: "packages", Policy: sequencer.Fatal, Run: func(ctx context.Context) error {
			if err := packages.Update(ctx); err != nil {
				return err
			}
			return packages.Install(ctx, mf.Packages)
		}},
		{Name: "storage", Policy: sequencer.Fatal, Run: func(ctx context.Context) error {
			if err := storage.ActivateVolumeGroups(ctx); err != nil {
				return err
			}
			if err := storage.MapVolumes(ctx); err != nil {
				return err
			}
			if err := storage.EnforceMounts(ctx); err != nil {
				return err
			}
			user, err := users.PrimaryUser(ctx)
			if err != nil {
				return err
			}
			return users.BootstrapHome(ctx, user)
		}},
		{Name: "docker", Policy: sequencer.Fatal, Run: docker.Install},
		{Name: "gpu-driver", Policy: sequencer.Tolerated, Run: func(ctx context.Context) error {
			if f.SkipDriver {
				log.Info("gpu driver stage skipped by flag")
				return nil
			}
			found, err := driver.Detect(ctx)
			if err != nil {
				return err
			}
			if !found {
				log.Info("no NVIDIA device found; skipping driver install")
				return nil
			}
			return driver.Install(ctx)
		}},
	}

	// No deadline: a hung installer blocks the run rather than leaving
	// the machine half-provisioned under a timeout.
	tolerated, fatal := sequencer.Run(context.Background(), log, stages)
	if tolerated != nil {
		log.WithError(tolerated).Warn("run completed with tolerated failures")
	}
	if fatal != nil {
		log.WithError(fatal).Error("provisioning aborted")
		closeLog()
		os.Exit(1)
	}

	log.Info("provisioning complete")
}

func loadManifest(fsys afero.Fs, path string) (manifest.Manifest, error) {
	if path != "" {
		return manifest.Load(fsys, path)
	}
	return manifest.Default()
}
