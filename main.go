package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"voicefit/analytics"
	"voicefit/audio"
	"voicefit/beep"
	"voicefit/capture"
	"voicefit/config"
	"voicefit/doctor"
	"voicefit/gateway"
	"voicefit/log"
	"voicefit/store"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	view    string
	device  string
	lang    string
	config  string
	logPath string
	setup   bool
	mute    bool
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	rootCmd := &cobra.Command{
		Use:           "voicefit",
		Short:         "Voice-first workout logger: dictate a workout, review it, keep it",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runTUI(flags)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.config, "config", "", "config file (default: $XDG_CONFIG_HOME/voicefit/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flags.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	rootCmd.Flags().StringVar(&flags.view, "view", "", "initial view: dashboard, record or history")
	rootCmd.Flags().StringVar(&flags.device, "device", "", "use named microphone device")
	rootCmd.Flags().StringVar(&flags.lang, "lang", "", "language hint for extraction (e.g. en, es); empty = auto-detect")
	rootCmd.Flags().BoolVar(&flags.setup, "setup", false, "select microphone device interactively")
	rootCmd.Flags().BoolVar(&flags.mute, "mute", false, "disable audible recording cues")

	rootCmd.AddCommand(
		newHistoryCmd(&flags),
		newStatsCmd(&flags),
		newDoctorCmd(&flags),
		newVersionCmd(),
	)
	return rootCmd
}

// bootstrap resolves logging and configuration, shared by every command.
func bootstrap(flags *rootFlags) (*config.Config, error) {
	logDir, err := log.ResolveDir(flags.logPath)
	if err != nil {
		return nil, fmt.Errorf("resolve log directory: %w", err)
	}
	log.SetDir(logDir)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	} else if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open diagnostics log: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	cfg, err := config.Load(flags.config)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func runTUI(flags rootFlags) error {
	cfg, err := bootstrap(&flags)
	if err != nil {
		return err
	}
	defer log.Close()

	if flags.mute {
		beep.Disable()
	} else {
		beep.Init()
	}

	ctx, err := newAudioContext()
	if err != nil {
		return fmt.Errorf("audio init: %w", err)
	}
	defer ctx.Close()

	device, err := resolveDevice(ctx, &flags, cfg)
	if err != nil {
		return err
	}

	lang := flags.lang
	if lang == "" {
		lang = cfg.Language
	}
	ext := gateway.New(cfg.GeminiModel, lang)

	st := store.Open(cfg.StoragePath)
	ctrl := capture.New(ctx, device)

	log.SessionStart(cfg.GeminiModel)
	defer func() {
		if ctrl.Recording() {
			ctrl.Stop()
		}
		log.SessionEnd(st.Len())
	}()

	p := NewProgram(viewFromName(flags.view), ctrl, ext, st)
	_, err = p.Run()
	return err
}

// newAudioContext connects to the platform audio backend, or replays a
// WAV file when VOICEFIT_FAKE_MIC points at one. Together with
// VOICEFIT_FAKE_EXTRACTOR this gives a fully offline run.
func newAudioContext() (audio.Context, error) {
	if wav := os.Getenv("VOICEFIT_FAKE_MIC"); wav != "" {
		fake, err := audio.NewFakeContext(wav, true)
		if err != nil {
			return nil, fmt.Errorf("fake microphone %s: %w", wav, err)
		}
		return fake, nil
	}
	return audio.NewContext()
}

// resolveDevice picks the capture device: --setup runs the interactive
// picker, otherwise the --device flag, then the configured name, then
// the system default.
func resolveDevice(ctx audio.Context, flags *rootFlags, cfg *config.Config) (*audio.DeviceInfo, error) {
	if flags.setup {
		return audio.SelectDevice(ctx)
	}

	name := flags.device
	if name == "" {
		name = cfg.AudioDevice
	}
	if name == "" {
		return nil, nil
	}

	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	for i := range devices {
		if strings.EqualFold(devices[i].Name, name) {
			return &devices[i], nil
		}
	}
	fmt.Fprintf(os.Stderr, "Warning: device %q not found, using system default\n", name)
	return nil, nil
}

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List saved workout sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer log.Close()

			st := store.Open(cfg.StoragePath)
			sessions := st.List()
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions saved yet.")
				return nil
			}
			for _, s := range sessions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d exercise(s)\n", s.ID, s.Date, len(s.Exercises))
				for _, ex := range s.Exercises {
					fmt.Fprintf(cmd.OutOrStdout(), "    - %s\n", fmtExercise(ex))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "    %q\n", s.RawTranscription)
				if s.Notes != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "    notes: %s\n", s.Notes)
				}
			}
			return nil
		},
	}

	historyCmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer log.Close()

			st := store.Open(cfg.StoragePath)
			before := st.Len()
			if err := st.Delete(args[0]); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
			if st.Len() == before {
				fmt.Fprintf(cmd.OutOrStdout(), "No session with id %s\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	})
	return historyCmd
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print workout analytics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer log.Close()

			st := store.Open(cfg.StoragePath)
			sessions := st.List()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Total sessions: %d\n", len(sessions))
			fmt.Fprintf(out, "This week:      %d\n", analytics.RecentCount(sessions, time.Now()))

			trend := analytics.VolumeTrend(sessions)
			if len(trend) > 0 {
				fmt.Fprintln(out, "\nVolume (last 7 sessions):")
				for _, p := range trend {
					fmt.Fprintf(out, "  %s  %d\n", p.Date, p.Volume)
				}
			}

			top := analytics.TopExercises(sessions, 5)
			if len(top) > 0 {
				fmt.Fprintln(out, "\nTop exercises:")
				for _, e := range top {
					fmt.Fprintf(out, "  %-24s %d\n", e.Name, e.Count)
				}
			}
			return nil
		},
	}
}

func newDoctorCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run system diagnostics",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := bootstrap(flags)
			if err != nil {
				return err
			}
			code := doctor.Run(cfg)
			log.Close()
			os.Exit(code)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "voicefit %s\n", version)
			return err
		},
	}
}
