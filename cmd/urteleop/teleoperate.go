package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/urteleop/internal/log"
	"github.com/gwillem/urteleop/pkg/input"
	"github.com/gwillem/urteleop/pkg/robot"
	"github.com/gwillem/urteleop/pkg/teleop"
)

type TeleoperateCommand struct {
	Config   string  `long:"config" default:"urteleop.json" description:"Configuration file"`
	Robot    string  `long:"robot" description:"Robot controller address (overrides config and ROBOT_IP)"`
	Joystick int     `long:"joystick" default:"-1" description:"Joystick index N of /dev/input/jsN (overrides config)"`
	Hz       int     `long:"hz" description:"Control loop frequency (default 125)"`
	Scale    float64 `long:"scale" description:"Velocity scale in m/s and rad/s (default 0.1)"`
	NoTUI    bool    `long:"no-tui" description:"Log to stdout instead of showing the dashboard"`
	LogLevel string  `long:"log-level" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log level"`
	LogFile  string  `long:"log-file" default:"urteleop.log" description:"Log file used while the dashboard is shown"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Velocity component colors
var componentColors = [6]string{
	"196", // x: red
	"208", // y: orange
	"226", // z: yellow
	"46",  // roll: green
	"51",  // pitch: cyan
	"201", // yaw: magenta
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	modeStyles  = map[teleop.Mode]lipgloss.Style{
		teleop.Idle:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		teleop.Streaming: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		teleop.Stopped:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
)

type teleopModel struct {
	ctrl     *teleop.Controller
	chart    *streamlinechart.Model
	width    int      // terminal width
	height   int      // terminal height
	logs     []string // last N log messages
	quitting bool
	state    teleop.State
	lastVel  robot.Velocity // track previous command to detect movement
}

func (m *teleopModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg teleop.State
type logMsg string
type doneMsg struct{}

func waitForState(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

func waitForDone(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		<-ctrl.Done()
		return doneMsg{}
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *teleopModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *teleopModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialTeleopModel(ctrl *teleop.Controller) teleopModel {
	scale := ctrl.Motion().VelocityScale
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-scale, scale),
	)

	for i, name := range robot.VelocityLabels {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(componentColors[i]))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}

	return teleopModel{
		ctrl:  ctrl,
		chart: &chart,
	}
}

func (m teleopModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
		waitForDone(m.ctrl),
	)
}

func (m teleopModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.ctrl.Exit()
			m.quitting = true
			return m, tea.Quit
		case " ":
			m.ctrl.EmergencyStop()
			return m, nil
		}

	case stateMsg:
		m.state = teleop.State(msg)
		// Only update chart while the command changes (freeze when idle)
		if m.state.Velocity != m.lastVel || m.state.Mode == teleop.Streaming {
			for i, name := range robot.VelocityLabels {
				m.chart.PushDataSet(name, m.state.Velocity[i])
			}
			m.chart.DrawAll()
			m.lastVel = m.state.Velocity
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)

	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m teleopModel) View() string {
	if m.quitting {
		return "Teleoperation stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("UR Teleoperate"))
	sb.WriteString(fmt.Sprintf(" - %d Hz  ", m.ctrl.Hz()))
	mode := m.state.Mode.String()
	if m.state.Homing {
		mode = "homing"
	}
	sb.WriteString(modeStyles[m.state.Mode].Render(strings.ToUpper(mode)))
	lin, ang := m.state.Velocity.Linear().Norm(), m.state.Velocity.Angular().Norm()
	sb.WriteString(statusStyle.Render(fmt.Sprintf("  |v|=%.3f m/s  |w|=%.3f rad/s", lin, ang)))
	sb.WriteString("  " + warnStyle.Render("NO DEADMAN"))
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4).
		Foreground(lipgloss.Color("9")) // bright red

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit, space for emergency stop")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend() string {
	var items []string
	for i, name := range robot.VelocityLabels {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(componentColors[i])).Bold(true)
		item := colorStyle.Render("━━") + " " + name
		items = append(items, item)
	}
	return strings.Join(items, "  ")
}

func printControls() {
	fmt.Println(headerStyle.Render("UR TELEOPERATION - DS4 MAPPING"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	for _, b := range teleop.Bindings() {
		fmt.Printf("%-13s %s\n", b.Control+":", b.Action)
	}
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(warnStyle.Render("WARNING: No deadman switch - robot moves immediately!"))
	fmt.Println()
}

// loadConfig reads the config file and applies command line overrides.
func (c *TeleoperateCommand) loadConfig() (robot.Config, error) {
	cfg := robot.DefaultConfig()
	loaded, err := robot.LoadConfigFrom(c.Config)
	switch {
	case err == nil:
		cfg = *loaded
	case errors.Is(err, os.ErrNotExist):
		if c.Robot == "" && cfg.Robot.Address == "" {
			return cfg, fmt.Errorf("no configuration found at %s; run 'urteleop setup' or pass --robot", c.Config)
		}
	default:
		return cfg, err
	}

	if c.Robot != "" {
		cfg.Robot.Address = c.Robot
	}
	if c.Joystick >= 0 {
		cfg.Joystick.Index = c.Joystick
	}
	if c.Hz > 0 {
		cfg.Motion.RateHz = c.Hz
	}
	if c.Scale > 0 {
		cfg.Motion.VelocityScale = c.Scale
	}
	if cfg.Robot.Address == "" {
		return cfg, fmt.Errorf("robot address not configured; run 'urteleop setup' or pass --robot")
	}
	if err := cfg.Motion.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid motion parameters: %w", err)
	}
	return cfg, nil
}

func (c *TeleoperateCommand) Execute(args []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var logOut io.Writer = os.Stdout
	if !c.NoTUI {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	log.Init(c.LogLevel, logOut)

	printControls()

	ctx := context.Background()

	fmt.Printf("Connecting to robot at %s...\n", cfg.Robot.HostPort())
	arm, err := robot.NewArm(ctx, cfg.Robot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot connect to robot: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'urteleop check' for diagnostics.")
		os.Exit(1)
	}
	defer arm.Close()
	if st, ok := arm.State(); ok {
		fmt.Println(successStyle.Render("Connected to robot") + dimStyle.Render(fmt.Sprintf(" (mode: %s)", st.RobotMode)))
	}

	fmt.Printf("Opening controller %s...\n", input.DevicePath(cfg.Joystick.Index))
	js, err := input.OpenJoystick(cfg.Joystick.Index, input.DS4(), cfg.Joystick.PollHz)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open controller: %v\n", err)
		fmt.Fprintln(os.Stderr, "Make sure the DS4 is connected via USB and readable.")
		os.Exit(1)
	}
	defer js.Close()
	fmt.Println(successStyle.Render("Controller ready: ") + js.Name())

	ctrl, err := teleop.NewController(arm, teleop.Config{
		Motion: cfg.Motion,
		Logger: log.With("component", "teleop"),
	})
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}
	defer ctrl.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Interrupts take the same path as the exit button
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info("signal received", "signal", sig.String())
			ctrl.Exit()
		case <-runCtx.Done():
		}
	}()

	var wg sync.WaitGroup
	var runErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		runErr = ctrl.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		if err := js.Listen(runCtx, ctrl.Handle); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("controller input lost", "err", err)
			ctrl.Exit()
		}
	}()

	if c.NoTUI {
		<-ctrl.Done()
	} else {
		p := tea.NewProgram(initialTeleopModel(ctrl), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			ctrl.Exit()
			return fmt.Errorf("run dashboard: %w", err)
		}
		<-ctrl.Done()
	}

	cancel()
	wg.Wait()

	st := ctrl.Stats()
	log.Info("session ended", "reason", ctrl.Err(), "ticks", st.Ticks,
		"streaming", st.Streaming, "idle", st.Idle, "skipped", st.Skipped)

	switch err := ctrl.Err(); {
	case errors.Is(err, teleop.ErrExit):
		fmt.Println("Shut down.")
		return nil
	case errors.Is(err, teleop.ErrEmergencyStop):
		fmt.Println(warnStyle.Render("Emergency stop. Restart to resume teleoperation."))
		return nil
	default:
		if runErr != nil {
			return runErr
		}
		return err
	}
}
