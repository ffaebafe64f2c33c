package smplr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/germanamz/spaceview/pkg/viewer"
)

// bindingName is the global function the page calls to reach Go.
const bindingName = "spaceviewEvent"

// handleName is the global holding the Space instance inside the tab.
const handleName = "__spaceview"

// sdkHosts maps a target environment to the host serving the SDK.
var sdkHosts = map[string]string{
	"prod": "https://app.smplrspace.com",
	"dev":  "https://dev.smplrspace.com",
}

// SDKURL returns the script URL for target. A non-empty base replaces the
// environment's host.
func SDKURL(base string, target viewer.Target) (string, error) {
	if base == "" {
		host, ok := sdkHosts[target.Environment]
		if !ok {
			return "", fmt.Errorf("smplr: unsupported environment %q", target.Environment)
		}
		base = host
	}
	base = strings.TrimRight(base, "/")

	switch target.Format {
	case "esm":
		return base + "/lib/smplr.mjs", nil
	case "umd":
		return base + "/lib/smplr.js", nil
	default:
		return "", fmt.Errorf("smplr: unsupported format %q", target.Format)
	}
}

// loadScript returns an expression that resolves once window.smplr exposes
// the SDK.
func loadScript(url, format string) string {
	u, _ := json.Marshal(url)
	if format == "esm" {
		return fmt.Sprintf(`import(%s).then(function (m) { window.smplr = m; return true; })`, u)
	}
	return fmt.Sprintf(`new Promise(function (resolve, reject) {
	var s = document.createElement("script");
	s.src = %[1]s;
	s.onload = function () { resolve(typeof window.smplr !== "undefined"); };
	s.onerror = function () { reject(new Error("failed to load " + %[1]s)); };
	document.head.appendChild(s);
})`, u)
}

// mountScript reports whether the mount region exists.
func mountScript(mountID string) string {
	id, _ := json.Marshal(mountID)
	return fmt.Sprintf(`document.getElementById(%s) !== null`, id)
}

type spaceOptions struct {
	SpaceID     string `json:"spaceId"`
	ClientToken string `json:"clientToken"`
	ContainerID string `json:"containerId"`
}

// constructScript creates the Space instance bound to the mount region.
func constructScript(opts viewer.EngineOptions) (string, error) {
	data, err := json.Marshal(spaceOptions{
		SpaceID:     opts.SpaceID,
		ClientToken: opts.AccessToken,
		ContainerID: opts.MountID,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(function () { window.%s = new window.smplr.Space(%s); return true; })()`, handleName, data), nil
}

type startOptions struct {
	Preview         bool        `json:"preview"`
	Mode            viewer.Mode `json:"mode"`
	AllowModeChange bool        `json:"allowModeChange"`
}

// startScript calls startViewer with callbacks that report through the
// binding as JSON payloads.
func startScript(opts viewer.StartOptions) (string, error) {
	data, err := json.Marshal(startOptions{
		Preview:         opts.Preview,
		Mode:            opts.Mode,
		AllowModeChange: opts.AllowModeChange,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(function () {
	var emit = function (e) { window.%[1]s(JSON.stringify(e)); };
	window.%[2]s.startViewer(Object.assign(%[3]s, {
		onReady: function () { emit({type: "ready"}); },
		onError: function (err) { emit({type: "error", message: String((err && err.message) || err)}); },
		onModeChange: function (mode) { emit({type: "mode", mode: mode}); }
	}));
	return true;
})()`, bindingName, handleName, data), nil
}

// setModeScript switches the Space instance's mode.
func setModeScript(mode viewer.Mode) string {
	m, _ := json.Marshal(mode)
	return fmt.Sprintf(`(function () { window.%s.setMode(%s); return true; })()`, handleName, m)
}

// removeScript detaches the Space instance if it exists.
func removeScript() string {
	return fmt.Sprintf(`(function () {
	var s = window.%[1]s;
	window.%[1]s = undefined;
	if (s && typeof s.remove === "function") { s.remove(); }
	return true;
})()`, handleName)
}

// bindingEvent is the payload the page sends through the binding.
type bindingEvent struct {
	Type    string `json:"type"`
	Mode    string `json:"mode,omitempty"`
	Message string `json:"message,omitempty"`
}

// dispatch decodes one binding payload and invokes the matching callback.
func dispatch(cb viewer.StartOptions, payload string) error {
	var ev bindingEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return fmt.Errorf("smplr: decode event: %w", err)
	}

	switch ev.Type {
	case "ready":
		if cb.OnReady != nil {
			cb.OnReady()
		}
	case "error":
		if cb.OnError != nil {
			msg := ev.Message
			if msg == "" {
				msg = "viewer error"
			}
			cb.OnError(errors.New(msg))
		}
	case "mode":
		m, err := viewer.ParseMode(ev.Mode)
		if err != nil || ev.Mode == "" {
			return fmt.Errorf("smplr: bad mode %q", ev.Mode)
		}
		if cb.OnModeChange != nil {
			cb.OnModeChange(m)
		}
	default:
		return fmt.Errorf("smplr: unknown event %q", ev.Type)
	}
	return nil
}

// awaitPromise makes Evaluate wait for a returned promise.
func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}
