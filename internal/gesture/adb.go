package gesture

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"clickweaver.com/clickweaver-go/internal/logging"
)

// ADBActuator dispatches gestures to an Android device over adb
type ADBActuator struct {
	path      string
	device    string
	mu        sync.Mutex
	connected bool
	logger    *logging.Logger

	// runShell is swappable for tests
	runShell func(command string) (string, error)
}

// NewADBActuator creates an actuator for the device at 127.0.0.1:port
func NewADBActuator(adbPath, port string) *ADBActuator {
	a := &ADBActuator{
		path:   adbPath,
		device: fmt.Sprintf("127.0.0.1:%s", port),
		logger: logging.NewLogger("actuator"),
	}
	a.runShell = a.shell
	return a
}

// Connect establishes the adb connection to the device
func (a *ADBActuator) Connect() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	cmd := exec.Command(a.path, "connect", a.device)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to connect to device %s: %w, output: %s", a.device, err, output)
	}

	if !strings.Contains(string(output), "connected") && !strings.Contains(string(output), "already connected") {
		return fmt.Errorf("unexpected connect output: %s", output)
	}

	a.connected = true
	return nil
}

// Disconnect closes the adb connection
func (a *ADBActuator) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.connected {
		return nil
	}

	cmd := exec.Command(a.path, "disconnect", a.device)
	if output, err := cmd.CombinedOutput(); err != nil {
		a.logger.WarnWithContext("disconnect failed", map[string]interface{}{
			"device": a.device,
			"output": string(output),
		})
	}

	a.connected = false
	return nil
}

// IsConnected returns whether the actuator is connected
func (a *ADBActuator) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// Execute dispatches a gesture fire-and-forget. Failures are logged, never
// returned: retry policy belongs to the caller's layer, not this core.
func (a *ADBActuator) Execute(g Gesture) {
	command, err := g.ShellCommand()
	if err != nil {
		a.logger.Error("invalid gesture", err)
		return
	}

	if _, err := a.runShell(command); err != nil {
		a.logger.ErrorWithContext("gesture dispatch failed", err, map[string]interface{}{
			"command": command,
		})
	}
}

func (a *ADBActuator) shell(command string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cmd := exec.Command(a.path, "-s", a.device, "shell", command)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("shell command failed: %w, output: %s", err, output)
	}

	return strings.TrimSpace(string(output)), nil
}

// Ensure ADBActuator implements Actuator at compile time
var _ Actuator = (*ADBActuator)(nil)
