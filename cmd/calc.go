package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli"

	"github.com/okian/dripcue/internal/adapters/pulse"
	"github.com/okian/dripcue/internal/domain/beat"
	"github.com/okian/dripcue/internal/domain/model"
	"github.com/okian/dripcue/internal/domain/rate"
	"github.com/okian/dripcue/internal/domain/types"
)

const exitInvalidInput = 2

var (
	prescriptionFlags = []cli.Flag{
		cli.StringFlag{
			Name:  "volume, v",
			Usage: "volume to infuse in mL",
		},
		cli.StringFlag{
			Name:  "hours, H",
			Usage: "infusion time, hours part",
		},
		cli.StringFlag{
			Name:  "minutes, m",
			Usage: "infusion time, minutes part",
		},
		cli.IntFlag{
			Name:  "factor, f",
			Value: int(rate.DropFactor20),
			Usage: "administration set drop factor (20 or 60)",
		},
	}

	metronomeFlags = append([]cli.Flag{
		cli.Float64Flag{
			Name:  "interval-ms, i",
			Usage: "beat interval in milliseconds; overrides the prescription",
		},
		cli.BoolTFlag{
			Name:  "tone",
			Usage: "play each beat on the speaker (default: true)",
		},
		cli.BoolFlag{
			Name:  "bell",
			Usage: "ring the terminal bell on each beat",
		},
	}, prescriptionFlags...)
)

func prescription(c *cli.Context) (rate.Prescription, rate.Cadence, error) {
	p, ok := rate.ParsePrescription(c.String("volume"), c.String("hours"), c.String("minutes"), c.Int("factor"))
	if !ok {
		return rate.Prescription{}, rate.Cadence{}, cli.NewExitError("invalid prescription: volume, hours and minutes must be numbers", exitInvalidInput)
	}
	cad, ok := rate.Compute(p)
	if !ok {
		return rate.Prescription{}, rate.Cadence{}, cli.NewExitError("invalid prescription: need a positive volume and duration and a drop factor of 20 or 60", exitInvalidInput)
	}
	return p, cad, nil
}

func calc(c *cli.Context) error {
	p, cad, err := prescription(c)
	if err != nil {
		return err
	}
	res := types.NewCalcResponse(p, cad, c.String("volume"))

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "drops/min\t%d\t(%.2f exact)\n", res.DropsPerMinute, res.DropsPerMinuteExact)
	fmt.Fprintf(tw, "interval\t%.0f ms\t(%.2f s per drop)\n", res.IntervalMs, res.SecondsPerDrop)
	fmt.Fprintf(tw, "duration\t%g min\t\n", res.DurationMinutes)
	fmt.Fprintf(tw, "label\t%s\t\n", res.DefaultLabel)
	return tw.Flush()
}

func metronome(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := setup(ctx, os.Stderr)
	if err != nil {
		return err
	}

	interval := c.Float64("interval-ms")
	if interval <= 0 {
		_, cad, err := prescription(c)
		if err != nil {
			return err
		}
		interval = cad.IntervalMs
	}

	var sinks pulse.Multi
	if c.BoolT("tone") {
		sinks = append(sinks, pulse.NewTone(
			pulse.WithFrequency(cfg.ToneFrequencyHz),
			pulse.WithToneDuration(cfg.ToneDuration()),
		))
	}
	if c.Bool("bell") {
		sinks = append(sinks, pulse.NewBell(c.App.Writer))
	}

	opts := append(schedulerOptions(cfg, sinks), beat.WithBeatObserver(func(b model.Beat) {
		if b.Seq%60 == 0 {
			fmt.Fprintf(c.App.Writer, "%d beats\n", b.Seq)
		}
	}))
	s := beat.New(sinks, opts...)
	if err := s.Start(interval); err != nil {
		return cli.NewExitError(err.Error(), exitInvalidInput)
	}
	fmt.Fprintf(c.App.Writer, "beating every %.0f ms, Ctrl-C to stop\n", s.IntervalMs())

	<-ctx.Done()
	s.Stop()
	st := s.Stats()
	fmt.Fprintf(c.App.Writer, "stopped after %d beats (max lateness %s)\n", st.BeatsFired, st.MaxLateness)
	return nil
}
