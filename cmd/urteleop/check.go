package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/urteleop/pkg/input"
	"github.com/gwillem/urteleop/pkg/robot"
)

type CheckCommand struct {
	Config  string        `long:"config" default:"urteleop.json" description:"Configuration file"`
	Robot   string        `long:"robot" description:"Robot controller address (overrides config)"`
	Timeout time.Duration `long:"timeout" default:"2s" description:"Connection timeout"`
}

type checkResult struct {
	name   string
	ok     bool
	warn   bool
	detail string
}

func (c *CheckCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("urteleop Connection Check"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg := robot.DefaultConfig()
	if loaded, err := robot.LoadConfigFrom(c.Config); err == nil {
		cfg = *loaded
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load config: %w", err)
	}
	if c.Robot != "" {
		cfg.Robot.Address = c.Robot
	}
	cfg.Robot.ConnectTimeout = robot.Duration(c.Timeout)

	results := checkJoystick(cfg.Joystick)
	results = append(results, checkRobot(cfg.Robot)...)

	fmt.Println(renderResults(results))
	fmt.Println()

	failed := 0
	for _, r := range results {
		if !r.ok {
			failed++
		}
	}
	if failed > 0 {
		fmt.Println("Troubleshooting:")
		fmt.Println("  1. Check the DS4 is connected: ls /dev/input/js*")
		fmt.Println("  2. Check URSim is running: docker ps")
		fmt.Println("  3. Power on the robot and release the brakes in Polyscope")
		fmt.Println("  4. Verify the robot address with 'urteleop setup'")
		return fmt.Errorf("%d check(s) failed", failed)
	}

	fmt.Println(successStyle.Render("All checks passed. Ready for teleoperation."))
	return nil
}

func checkJoystick(cfg robot.JoystickConfig) []checkResult {
	devices := input.List()
	if len(devices) == 0 {
		return []checkResult{{name: "Controller", detail: "no /dev/input/js* devices found"}}
	}

	paths := make([]string, len(devices))
	for i, d := range devices {
		paths[i] = d.Path
	}
	results := []checkResult{{name: "Controller devices", ok: true, detail: strings.Join(paths, ", ")}}

	for _, d := range devices {
		if d.Index != cfg.Index {
			continue
		}
		r := checkResult{name: "Configured controller", ok: true,
			detail: fmt.Sprintf("%s: %s (%d axes, %d buttons)", d.Path, d.Name, d.Axes, d.Buttons)}
		// The DS4 layout needs 6 axes and 13 buttons
		if d.Axes < 6 || d.Buttons < 13 {
			r.warn = true
			r.detail += ", does not look like a DS4"
		}
		return append(results, r)
	}
	return append(results, checkResult{name: "Configured controller",
		detail: input.DevicePath(cfg.Index) + " not present"})
}

func checkRobot(cfg robot.ArmConfig) []checkResult {
	if cfg.Address == "" {
		return []checkResult{{name: "Robot", detail: "no address configured"}}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.WithDefaults().ConnectTimeout)*2)
	defer cancel()

	arm, err := robot.NewArm(ctx, cfg)
	if err != nil {
		return []checkResult{{name: "Robot", detail: err.Error()}}
	}
	defer arm.Close()

	st, _ := arm.State()
	results := []checkResult{{name: "Robot", ok: true, detail: "streaming state from " + arm.Config().HostPort()}}

	mode := checkResult{name: "Robot mode", ok: true, detail: st.RobotMode.String()}
	if st.RobotMode != robot.ModeRunning && st.RobotMode != robot.ModeUnknown {
		mode.warn = true
		mode.detail += ": power on and release the brakes"
	}
	results = append(results, mode)

	q := make([]string, len(st.Q))
	for i, v := range st.Q {
		q[i] = fmt.Sprintf("%.2f", v)
	}
	results = append(results, checkResult{name: "Joint positions", ok: true, detail: "[" + strings.Join(q, ", ") + "]"})

	return results
}

func renderResults(results []checkResult) string {
	passStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	warnCellStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "PASS"
		switch {
		case !r.ok:
			status = "FAIL"
		case r.warn:
			status = "WARN"
		}
		rows = append(rows, []string{r.name, status, r.detail})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Check", "Status", "Detail").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col != 1 || row < 0 || row >= len(results) {
				return cellStyle
			}
			switch r := results[row]; {
			case !r.ok:
				return failStyle
			case r.warn:
				return warnCellStyle
			default:
				return passStyle
			}
		})

	return t.Render()
}
