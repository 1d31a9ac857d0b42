// Command nethercored is the demo host application: it loads a guest
// module, opens a window and an audio device, and drives one GuestInstance
// at a fixed tick rate. It follows the teacher's cobra/zerolog-based CLI
// shape rather than its retro-chip emulation, since a guest module here is
// a Go-level Guest, not emulated machine code.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nethercore-systems/nethercore/audio"
	"github.com/nethercore-systems/nethercore/config"
	"github.com/nethercore-systems/nethercore/driver"
	"github.com/nethercore-systems/nethercore/guest"
	"github.com/nethercore-systems/nethercore/render"
)

var log zerolog.Logger

func main() {
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	v := viper.New()
	root := &cobra.Command{
		Use:   "nethercored",
		Short: "Runs a single local demo session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(v)
		},
	}
	root.Flags().Uint8("tick-rate", 60, "simulation ticks per second")
	root.Flags().Int("max-prediction-window", 8, "rollback prediction window in frames")
	root.Flags().String("log-level", "info", "zerolog level: debug, info, warn, error")
	v.BindPFlag("tick_rate", root.Flags().Lookup("tick-rate"))
	v.BindPFlag("max_prediction_window", root.Flags().Lookup("max-prediction-window"))
	v.BindPFlag("log_level", root.Flags().Lookup("log-level"))

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("nethercored: exiting")
		os.Exit(1)
	}
}

func runSession(v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("nethercored: config: %w", err)
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(lvl)
	}
	log.Info().Uint8("tick_rate", cfg.TickRate).Uint8("max_players", cfg.MaxPlayers).
		Int("max_prediction_window", cfg.MaxPredictionWindow).Msg("starting session")

	mod := demoModule()
	inst, err := guest.NewGuestInstance(mod, 1)
	if err != nil {
		return fmt.Errorf("nethercored: instance init: %w", err)
	}

	sampleRate := 44100.0
	blockSamples := audio.BlockSamples(sampleRate, float64(cfg.TickRate))
	gen := audio.NewGenerator(mod, sampleRate)

	out, err := driver.NewOutput(int(sampleRate))
	if err != nil {
		return fmt.Errorf("nethercored: audio device: %w", err)
	}
	defer out.Close()

	var padID ebiten.GamepadID
	hasPad := false

	advance := func() (*render.Pass, render.Camera, error) {
		ids := ebiten.AppendGamepadIDs(nil)
		hasPad = len(ids) > 0
		if hasPad {
			padID = ids[0]
		}

		var inputs [guest.MaxPlayers]guest.InputFrame
		inputs[0] = driver.PollLocalInput(padID, hasPad)

		if err := inst.Update(inputs); err != nil {
			log.Error().Err(err).Msg("guest update failed")
			return nil, render.Camera{}, err
		}

		block := gen.Block(inst.State.Tracker, nil, blockSamples, inst.Sounds(), inst.SoundData)
		out.Push(block)

		rout, err := inst.Render()
		if err != nil {
			log.Error().Err(err).Msg("guest render failed")
			return nil, render.Camera{}, err
		}
		return rout.Pass, rout.Camera, nil
	}

	win := driver.NewWindow(640, 480, advance, inst.Quit)
	ebiten.SetWindowSize(640, 480)
	ebiten.SetWindowTitle("nethercore demo")
	if err := ebiten.RunGame(win); err != nil {
		log.Error().Err(err).Msg("session ended")
		return err
	}
	log.Info().Msg("session ended")
	return nil
}
