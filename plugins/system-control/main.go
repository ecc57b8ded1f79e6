// Package main provides the system-control plugin. It reads and sets the
// master output volume as a level in [0,1].
//
// macOS uses AppleScript, Linux uses pactl and falls back to amixer.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type levelData struct {
	Level float64 `json:"level"`
}

// mixer reads and writes the output volume as a percentage.
type mixer interface {
	Get() (int, error)
	Set(percent int) error
}

var errUnsupportedPlatform = errors.New("unsupported platform: " + runtime.GOOS)

func main() {
	resp := handle(os.Stdin, platformMixer())
	json.NewEncoder(os.Stdout).Encode(resp)
}

func handle(r io.Reader, m mixer) Response {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return errorResponse(fmt.Sprintf("failed to decode request: %v", err))
	}
	if m == nil {
		return errorResponse(errUnsupportedPlatform.Error())
	}

	switch req.Action {
	case "get-level":
		percent, err := m.Get()
		if err != nil {
			return errorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		}
		data, _ := json.Marshal(levelData{Level: float64(percent) / 100})
		return Response{Success: true, Data: data}

	case "set-level":
		var params levelData
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(fmt.Sprintf("invalid params: %v", err))
		}
		if params.Level < 0 || params.Level > 1 {
			return errorResponse(fmt.Sprintf("level %v out of range", params.Level))
		}
		if err := m.Set(toPercent(params.Level)); err != nil {
			return errorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		}
		return Response{Success: true}

	default:
		return errorResponse(fmt.Sprintf("unknown action: %s", req.Action))
	}
}

func errorResponse(msg string) Response {
	return Response{Success: false, Error: msg}
}

func toPercent(level float64) int {
	return int(math.Round(level * 100))
}

// platformMixer returns the mixer for this OS, or nil where none exists.
// Windows exposes the endpoint volume only through COM, which this plugin
// does not drive.
func platformMixer() mixer {
	switch runtime.GOOS {
	case "darwin":
		return appleScriptMixer{}
	case "linux":
		if _, err := exec.LookPath("pactl"); err == nil {
			return pactlMixer{}
		}
		return amixerMixer{}
	default:
		return nil
	}
}

func run(name string, args ...string) (string, error) {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

type appleScriptMixer struct{}

func (appleScriptMixer) Get() (int, error) {
	out, err := run("osascript", "-e", "output volume of (get volume settings)")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(out))
}

func (appleScriptMixer) Set(percent int) error {
	_, err := run("osascript", "-e", fmt.Sprintf("set volume output volume %d", percent))
	return err
}

type pactlMixer struct{}

func (pactlMixer) Get() (int, error) {
	out, err := run("pactl", "get-sink-volume", "@DEFAULT_SINK@")
	if err != nil {
		return 0, err
	}
	return parsePercent(out)
}

func (pactlMixer) Set(percent int) error {
	_, err := run("pactl", "set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%d%%", percent))
	return err
}

type amixerMixer struct{}

func (amixerMixer) Get() (int, error) {
	out, err := run("amixer", "get", "Master")
	if err != nil {
		return 0, err
	}
	return parsePercent(out)
}

func (amixerMixer) Set(percent int) error {
	_, err := run("amixer", "-q", "set", "Master", fmt.Sprintf("%d%%", percent))
	return err
}

var percentPattern = regexp.MustCompile(`(\d{1,3})%`)

// parsePercent returns the first percentage in mixer output, capped at 100.
func parsePercent(out string) (int, error) {
	m := percentPattern.FindStringSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("no volume in output: %q", strings.TrimSpace(out))
	}
	percent, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, err
	}
	if percent > 100 {
		percent = 100
	}
	return percent, nil
}
