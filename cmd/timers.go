package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	service "github.com/okian/dripcue/internal/app"
	"github.com/okian/dripcue/internal/domain/rate"
	"github.com/okian/dripcue/internal/domain/timer"
)

const barRefreshRate = 250 * time.Millisecond

var timerFlags = append([]cli.Flag{
	cli.StringFlag{
		Name:  "label, l",
		Usage: "countdown label (default: derived from volume and duration)",
	},
}, prescriptionFlags...)

// withService runs fn against a started service and shuts it down
// afterwards, draining any notification the start-up sweep produced.
func withService(ctx context.Context, fn func(*service.Service) error, opts ...service.Option) error {
	cfg, err := setup(ctx, os.Stderr)
	if err != nil {
		return err
	}
	w, err := wire(ctx, cfg, nil, opts...)
	if err != nil {
		return err
	}
	defer w.closeLogged()
	// delivery must outlive an interrupt so queued notifications drain
	if err := w.start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	return fn(w.svc)
}

func timersAdd(c *cli.Context) error {
	p, ok := rate.ParsePrescription(c.String("volume"), c.String("hours"), c.String("minutes"), c.Int("factor"))
	if !ok {
		return cli.NewExitError("invalid countdown: volume, hours and minutes must be numbers", exitInvalidInput)
	}
	return withService(context.Background(), func(svc *service.Service) error {
		e, err := svc.StartTimerFromCalculation(context.Background(), p, c.String("label"))
		switch {
		case errors.Is(err, timer.ErrCapacityExceeded):
			return cli.NewExitError(fmt.Sprintf("already %d countdowns running; delete one first", svc.MaxActiveTimers()), 1)
		case err != nil:
			return cli.NewExitError(err.Error(), exitInvalidInput)
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\tends %s\n", e.ID, e.Label, e.EndTime.Format(time.Kitchen))
		return nil
	})
}

func timersList(c *cli.Context) error {
	return withService(context.Background(), func(svc *service.Service) error {
		entries, now := svc.Timers()
		if len(entries) == 0 {
			fmt.Fprintln(c.App.Writer, "no active countdowns")
			return nil
		}
		tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tLABEL\tVOLUME\tENDS\tREMAINING\tDONE")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s mL\t%s\t%s\t%.0f%%\n",
				e.ID, e.Label, e.VolumeMl,
				e.EndTime.Format(time.Kitchen),
				formatRemaining(e.Remaining(now)),
				timer.Progress(e, now)*100,
			)
		}
		fmt.Fprintf(tw, "\n%d of %d slots used\n", len(entries), svc.MaxActiveTimers())
		return tw.Flush()
	})
}

func timersDelete(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return cli.NewExitError("usage: dripcue timers delete <id>", exitInvalidInput)
	}
	return withService(context.Background(), func(svc *service.Service) error {
		if !svc.DeleteTimer(context.Background(), id) {
			fmt.Fprintf(c.App.Writer, "%s: no such countdown\n", id)
			return nil
		}
		fmt.Fprintf(c.App.Writer, "%s deleted\n", id)
		return nil
	})
}

func timersWatch(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := mpb.New(
		mpb.WithOutput(c.App.Writer),
		mpb.WithWidth(48),
		mpb.WithRefreshRate(barRefreshRate),
	)
	board := newBarBoard(p)

	err := withService(ctx, func(*service.Service) error {
		<-ctx.Done()
		return nil
	}, service.WithRedraw(board.redraw))
	board.close()
	p.Wait()
	return err
}

// barBoard keeps one progress bar per countdown. It is only touched from
// the redraw driver and, after the service stopped, from close.
type barBoard struct {
	p    *mpb.Progress
	bars map[string]*mpb.Bar
}

func newBarBoard(p *mpb.Progress) *barBoard {
	return &barBoard{p: p, bars: make(map[string]*mpb.Bar)}
}

func (b *barBoard) redraw(entries []timer.Entry, now time.Time) {
	live := make(map[string]bool, len(entries))
	for _, e := range entries {
		live[e.ID] = true
		bar, ok := b.bars[e.ID]
		if !ok {
			bar = b.add(e)
			b.bars[e.ID] = bar
		}
		bar.SetCurrent(int64(now.Sub(e.StartTime) / time.Second))
	}
	for id, bar := range b.bars {
		if !live[id] {
			// ended or deleted
			bar.Abort(false)
			delete(b.bars, id)
		}
	}
}

func (b *barBoard) add(e timer.Entry) *mpb.Bar {
	total := int64(e.Duration() / time.Second)
	if total <= 0 {
		total = 1
	}
	name := e.Label
	return b.p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
			decor.OnComplete(
				decor.Any(func(s decor.Statistics) string {
					return formatRemaining(time.Duration(s.Total-s.Current) * time.Second)
				}, decor.WC{W: 9}), "done",
			),
		),
		mpb.AppendDecorators(decor.Percentage(decor.WC{W: 5})),
	)
}

func (b *barBoard) close() {
	for id, bar := range b.bars {
		bar.Abort(false)
		delete(b.bars, id)
	}
}

// formatRemaining renders d as h:mm:ss, or m:ss under an hour.
func formatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
