package bridge

import (
	_ "embed"
	"encoding/json"
)

//go:embed bridge.js
var bridgeJS string

// ScriptConfig is what the injected script needs to reach the host.
type ScriptConfig struct {
	Endpoint string   `json:"endpoint"`
	Token    string   `json:"token"`
	Session  string   `json:"session"`
	Domains  []string `json:"domains"`
}

// Script returns the page-side bridge as a self-invoking expression. Running
// it more than once in the same document is a no-op, so the host may inject
// it whenever it is unsure whether the current page has it.
func Script(cfg ScriptConfig) string {
	if cfg.Domains == nil {
		cfg.Domains = []string{}
	}
	data, _ := json.Marshal(cfg)
	return bridgeJS + "(" + string(data) + ");"
}

// PageState is the host-controlled part of the page.
type PageState struct {
	Muted     bool   `json:"muted"`
	CustomCSS string `json:"customCSS"`
}

// The helpers below build calls into window.kosmiDesktop. Each one is guarded
// so that evaluating it on a page without the bridge does nothing.

func ApplyCall(state PageState) string {
	data, _ := json.Marshal(state)
	return call("apply(" + string(data) + ")")
}

func PromptJoinCall() string { return call("promptJoin()") }

func TogglePictureInPictureCall() string { return call("togglePictureInPicture()") }

// HardReloadCall drops the page's Cache Storage and reloads.
func HardReloadCall() string { return call("hardReload()") }

// HistoryCall moves through the page history; forward=false goes back.
func HistoryCall(forward bool) string {
	if forward {
		return call("forward()")
	}
	return call("back()")
}

// LocationCall navigates the window whether or not the bridge is installed.
// Used for the first navigation away from the loader page.
func LocationCall(url string) string {
	return "window.location.href=" + jsString(url) + ";"
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func call(expr string) string {
	return "if(window.kosmiDesktop){window.kosmiDesktop." + expr + ";}"
}
