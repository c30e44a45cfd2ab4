package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Teleoperate TeleoperateCommand `command:"teleoperate" alias:"teleop" description:"Drive the arm from the game controller"`
	Setup       SetupCommand       `command:"setup" description:"Choose the controller and robot address"`
	Check       CheckCommand       `command:"check" description:"Check that the controller and robot are reachable"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "urteleop - Cartesian teleoperation of a UR arm from a DualShock 4"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
