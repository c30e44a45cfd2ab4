package robot

import (
	"encoding/json"
	"math"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const DefaultConfigFile = "urteleop.json"

// MaxRateHz bounds the control loop frequency. The UR realtime interface
// runs at 500 Hz on CB3 and 1 kHz on e-Series.
const MaxRateHz = 1000

// Config holds the teleoperation configuration
type Config struct {
	Robot    ArmConfig      `json:"robot"`
	Joystick JoystickConfig `json:"joystick"`
	Motion   MotionConfig   `json:"motion"`
}

// ArmConfig holds the connection settings for the UR controller
type ArmConfig struct {
	Address          string   `json:"address"`
	Port             int      `json:"port,omitempty"`
	ConnectTimeout   Duration `json:"connect_timeout,omitempty"`
	MoveTimeout      Duration `json:"move_timeout,omitempty"`
	StopDeceleration float64  `json:"stop_deceleration,omitempty"`
}

// JoystickConfig selects the input device
type JoystickConfig struct {
	Index  int `json:"index"`
	PollHz int `json:"poll_hz,omitempty"`
}

// MotionConfig holds the motion parameters. They are fixed once a
// teleoperation session starts. Deadzone and Epsilon are taken as given, so
// 0 disables them; DefaultMotionConfig holds their defaults.
type MotionConfig struct {
	VelocityScale    float64   `json:"velocity_scale,omitempty"` // m/s and rad/s at full deflection
	Acceleration     float64   `json:"acceleration,omitempty"`
	RateHz           int       `json:"rate_hz,omitempty"`
	Deadzone         float64   `json:"deadzone"`
	Epsilon          float64   `json:"epsilon"`
	HomePose         JointPose `json:"home_pose"`
	HomeSpeed        float64   `json:"home_speed,omitempty"`
	HomeAcceleration float64   `json:"home_acceleration,omitempty"`
}

// DefaultHomePose is the joint pose used when none is configured.
var DefaultHomePose = JointPose{-1.57, -1.57, -1.57, -1.57, 1.57, 0}

// DefaultConfig returns a configuration with every default filled in.
func DefaultConfig() Config {
	return Config{Motion: DefaultMotionConfig()}.WithDefaults()
}

// DefaultMotionConfig returns the motion parameters used when a config file
// does not set them.
func DefaultMotionConfig() MotionConfig {
	m := MotionConfig{Deadzone: 0.1, Epsilon: 0.001}
	return m.WithDefaults()
}

// WithDefaults fills zero fields with defaults
func (c Config) WithDefaults() Config {
	c.Robot = c.Robot.WithDefaults()
	if c.Joystick.PollHz <= 0 {
		c.Joystick.PollHz = 250
	}
	c.Motion = c.Motion.WithDefaults()
	if ip := os.Getenv("ROBOT_IP"); ip != "" {
		c.Robot.Address = ip
	}
	return c
}

// WithDefaults fills zero fields with defaults
func (a ArmConfig) WithDefaults() ArmConfig {
	if a.Port == 0 {
		a.Port = DefaultPort
	}
	if a.ConnectTimeout == 0 {
		a.ConnectTimeout = Duration(DefaultConnectTimeout)
	}
	if a.MoveTimeout == 0 {
		a.MoveTimeout = Duration(DefaultMoveTimeout)
	}
	if a.StopDeceleration == 0 {
		a.StopDeceleration = DefaultStopDeceleration
	}
	return a
}

// HostPort returns the dial address of the controller
func (a ArmConfig) HostPort() string {
	return net.JoinHostPort(a.Address, strconv.Itoa(a.Port))
}

// WithDefaults fills zero fields with defaults. Deadzone and Epsilon are
// kept as they are; 0 disables them.
func (m MotionConfig) WithDefaults() MotionConfig {
	if m.VelocityScale == 0 {
		m.VelocityScale = 0.1
	}
	if m.Acceleration == 0 {
		m.Acceleration = 0.2
	}
	if m.RateHz == 0 {
		m.RateHz = 125
	}
	if m.HomePose == (JointPose{}) {
		m.HomePose = DefaultHomePose
	}
	if m.HomeSpeed == 0 {
		m.HomeSpeed = 1.05
	}
	if m.HomeAcceleration == 0 {
		m.HomeAcceleration = 1.4
	}
	return m
}

// Period returns the control loop period
func (m MotionConfig) Period() time.Duration {
	return time.Second / time.Duration(m.RateHz)
}

// Validate checks that the motion parameters are usable
func (m MotionConfig) Validate() error {
	switch {
	case m.VelocityScale <= 0:
		return errors.Errorf("velocity_scale must be positive, got %v", m.VelocityScale)
	case m.Acceleration <= 0:
		return errors.Errorf("acceleration must be positive, got %v", m.Acceleration)
	case m.RateHz <= 0 || m.RateHz > MaxRateHz:
		return errors.Errorf("rate_hz must be in [1, %d], got %d", MaxRateHz, m.RateHz)
	case m.Deadzone < 0 || m.Deadzone >= 1:
		return errors.Errorf("deadzone must be in [0, 1), got %v", m.Deadzone)
	case m.Epsilon < 0:
		return errors.Errorf("epsilon must not be negative, got %v", m.Epsilon)
	case m.HomeSpeed <= 0 || m.HomeAcceleration <= 0:
		return errors.New("home_speed and home_acceleration must be positive")
	}
	for i, q := range m.HomePose {
		if math.IsNaN(q) || math.Abs(q) > 2*math.Pi {
			return errors.Errorf("home_pose[%d] out of range: %v", i, q)
		}
	}
	return nil
}

// Duration is a time.Duration that reads and writes as a string like "2s"
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "duration must be a string")
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// Keys missing from the file keep their defaults
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	cfg = cfg.WithDefaults()
	return &cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
