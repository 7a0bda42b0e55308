package main

import (
	"os"

	"github.com/urfave/cli"
)

const description = `dripcue turns an infusion prescription into a drip cadence, beats it out
   as a metronome and keeps up to seven bag countdowns with near-end and
   completion notifications. Configuration is read from DRIPCUE_* env vars and
   an optional YAML file named by DRIPCUE_CONFIG.`

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// logger may not be initialised yet
		os.Stderr.WriteString("dripcue: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "dripcue"
	app.HelpName = "dripcue"
	app.Usage = "IV drip-rate calculator, metronome and bag countdowns"
	app.UsageText = "dripcue <command> [arguments...]"
	app.Description = description
	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "run the HTTP API, web console and pulse stream",
			Action: serve,
			Flags:  serveFlags,
		},
		{
			Name:      "calc",
			Aliases:   []string{"c"},
			Usage:     "compute drops per minute and the beat interval",
			UsageText: "dripcue calc --volume 500 --hours 4 [--minutes 0] [--factor 20]",
			Action:    calc,
			Flags:     prescriptionFlags,
		},
		{
			Name:      "metronome",
			Aliases:   []string{"m"},
			Usage:     "beat the computed cadence until interrupted",
			UsageText: "dripcue metronome --volume 500 --hours 4 [--interval-ms 1440]",
			Action:    metronome,
			Flags:     metronomeFlags,
		},
		{
			Name:    "timers",
			Aliases: []string{"t"},
			Usage:   "manage bag countdowns",
			Subcommands: []cli.Command{
				{
					Name:   "add",
					Usage:  "start a countdown",
					Action: timersAdd,
					Flags:  timerFlags,
				},
				{
					Name:   "list",
					Usage:  "list active countdowns",
					Action: timersList,
				},
				{
					Name:      "delete",
					Usage:     "remove a countdown",
					ArgsUsage: "<id>",
					Action:    timersDelete,
				},
				{
					Name:   "watch",
					Usage:  "show live countdown bars and deliver notifications",
					Action: timersWatch,
				},
			},
		},
	}
	return app
}
