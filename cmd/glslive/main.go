package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"glslive/internal/backend"
	"glslive/internal/config"
	"glslive/internal/control"
	"glslive/internal/editor"
	"glslive/internal/engine"
	"glslive/internal/logging"
	"glslive/internal/validate"

	"github.com/spf13/cobra"
)

var (
	debug    bool
	viewAddr string
	sound    bool
	noWatch  bool
)

var rootCmd = &cobra.Command{
	Use:   "glslive [shader-file | project-dir]",
	Short: "glslive - live-reload GLSL coding",
	Long: `glslive watches a shader file (or the shaders in a project directory),
rebuilds it on every save and pushes the result to a rendering backend:
either the built-in browser view, or a remote player server configured
through .liverc.yml. OSC messages on the configured port drive uniforms
in real time.`,
	Args: cobra.MaximumNArgs(1),
	RunE: run,
}

func init() {
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "verbose logging")
	rootCmd.Flags().StringVar(&viewAddr, "view", "127.0.0.1:3000", "address the local view server binds to")
	rootCmd.Flags().BoolVar(&sound, "sound", false, "build the shader as a sound shader")
	rootCmd.Flags().BoolVar(&noWatch, "no-watch", false, "build once and keep serving without watching")
}

func run(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) == 1 {
		target = args[0]
	}

	log := logging.New(debug)
	defer log.Sync()

	ws, err := editor.Open(target, log)
	if err != nil {
		return fmt.Errorf("opening %s: %w", target, err)
	}
	defer ws.Close()

	projectPath := target
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		projectPath = "."
	}
	store := config.NewStore(projectPath, log)
	validator := validate.New(log)

	eng, err := engine.New(engine.Options{
		Log:         log,
		Config:      store,
		Workspace:   ws,
		Validator:   validator,
		ProjectPath: projectPath,
		NewLocal: func(seed backend.Seed) (backend.Player, error) {
			return backend.NewLocal(viewAddr, seed, log)
		},
		NewRemote: func(server string, handoff backend.Handoff) (backend.Player, error) {
			return backend.NewRemote(server, handoff, log)
		},
		NewControl: func(port int, onMessage func(string, []float64), onReload func()) (engine.ControlSource, error) {
			return control.New(port, onMessage, onReload, log)
		},
	})
	if err != nil {
		return err
	}
	defer eng.Destroy()

	eng.Play()
	if sound {
		eng.LoadSoundShader()
		eng.PlaySound()
	}
	if noWatch {
		eng.LoadShader()
	} else {
		eng.WatchActiveShader()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	eng.Stop()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
