package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/gwillem/urteleop/pkg/input"
	"github.com/gwillem/urteleop/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct {
	Config string `long:"config" default:"urteleop.json" description:"Configuration file to write"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("urteleop Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg := robot.DefaultConfig()
	if loaded, err := robot.LoadConfigFrom(c.Config); err == nil {
		cfg = *loaded
		fmt.Println(dimStyle.Render("Editing existing " + c.Config))
		fmt.Println()
	}

	// Step 1: controller
	fmt.Println(subHeaderStyle.Render("━━━ Controller ━━━"))
	cfg.Joystick.Index = chooseJoystick(cfg.Joystick.Index)

	// Step 2: robot
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Robot ━━━"))
	cfg.Robot = askRobot(cfg.Robot)

	if err := cfg.SaveTo(c.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", c.Config)
	fmt.Printf("  Controller: %s\n", input.DevicePath(cfg.Joystick.Index))
	fmt.Printf("  Robot:      %s\n", cfg.Robot.HostPort())
	fmt.Println()
	fmt.Println("Verify with:          " + headerStyle.Render("urteleop check"))
	fmt.Println("Start teleoperation:  " + headerStyle.Render("urteleop teleoperate"))

	return nil
}

func chooseJoystick(current int) int {
	devices := input.List()
	if len(devices) == 0 {
		fmt.Println("No joystick devices found.")
		fmt.Println("Connect the DS4 via USB and check: ls /dev/input/js*")
		fmt.Printf("Keeping %s\n", input.DevicePath(current))
		return current
	}

	if len(devices) == 1 {
		d := devices[0]
		fmt.Printf("  Found %s on %s\n", d.Name, d.Path)
		return d.Index
	}

	options := make([]huh.Option[int], 0, len(devices))
	for _, d := range devices {
		label := fmt.Sprintf("%s  %s (%d axes, %d buttons)", d.Path, d.Name, d.Axes, d.Buttons)
		options = append(options, huh.NewOption(label, d.Index))
	}

	choice := current
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Which controller drives the arm?").
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return choice
}

func askRobot(current robot.ArmConfig) robot.ArmConfig {
	address := current.Address
	if address == "" {
		address = "172.17.0.2" // URSim docker default
	}
	port := strconv.Itoa(current.Port)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Robot address").
				Description("IP or hostname of the UR controller").
				Value(&address).
				Validate(validateHost),
			huh.NewInput().
				Title("Realtime port").
				Value(&port).
				Validate(validatePort),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	current.Address = strings.TrimSpace(address)
	current.Port, _ = strconv.Atoi(port)
	return current
}

func validateHost(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("address is required")
	}
	if net.ParseIP(s) == nil && strings.ContainsAny(s, " /:") {
		return errors.New("not an IP address or hostname")
	}
	return nil
}

func validatePort(s string) error {
	p, err := strconv.Atoi(s)
	if err != nil || p <= 0 || p > 65535 {
		return errors.New("port must be 1-65535")
	}
	return nil
}
