package bridge

import (
	"encoding/json"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pageStub is the slice of the browser the injected script touches. Sockets
// stay connecting until openSockets is called; timers never fire.
const pageStub = `
var window = this;
var location = {
  href: 'https://app.kosmi.io/room/abc',
  hostname: 'app.kosmi.io',
  reload: function () {}
};
var history = {
  pushState: function () {},
  replaceState: function () {},
  back: function () {},
  forward: function () {}
};
var listeners = {};
var document = {
  readyState: 'complete',
  title: 'Movie Night - Kosmi',
  head: { appendChild: function () {} },
  documentElement: { appendChild: function () {} },
  addEventListener: function (type, fn) { listeners[type] = fn; },
  querySelectorAll: function () { return []; },
  querySelector: function () { return null; },
  createElement: function () { return {}; }
};
function addEventListener() {}
function setTimeout() { return 0; }
function clearTimeout() {}
function MutationObserver() {}
MutationObserver.prototype.observe = function () {};
function EventTarget() {}

var URL = function (raw, base) {
  var m = /^([a-z][a-z0-9+.-]*:)\/\/([^\/?#:]+)/i.exec(raw);
  if (!m) {
    throw new TypeError('Invalid URL');
  }
  this.href = raw;
  this.protocol = m[1].toLowerCase();
  this.hostname = m[2].toLowerCase();
};

var sockets = [];
function WebSocket(url) {
  this.url = url;
  this.readyState = 0;
  this.sent = [];
  sockets.push(this);
}
WebSocket.prototype.send = function (data) { this.sent.push(data); };
function openSockets() {
  sockets.forEach(function (s) {
    s.readyState = 1;
    if (s.onopen) {
      s.onopen();
    }
  });
}
function sentMessages() {
  var out = [];
  sockets.forEach(function (s) { out = out.concat(s.sent); });
  return JSON.stringify(out);
}

var realBuilt = 0;
var Notification = class {
  constructor(title, options) {
    this.body = options ? options.body : undefined;
    this.title = title;
    this.listeners = [];
    this.closed = false;
    realBuilt++;
  }
  addEventListener(type, fn) { this.listeners.push(type); }
  close() { this.closed = true; }
  static get permission() { return 'granted'; }
  static requestPermission() { return Promise.resolve('granted'); }
};
var OriginalNotification = Notification;

var AudioContext = class {
  constructor() {
    this.state = 'running';
    this.suspends = 0;
    this.resumes = 0;
  }
  suspend() { this.suspends++; this.state = 'suspended'; return Promise.resolve(); }
  resume() { this.resumes++; this.state = 'running'; return Promise.resolve(); }
  close() { this.state = 'closed'; return Promise.resolve(); }
};

window.open = function () { return null; };
`

var testScriptConfig = ScriptConfig{
	Endpoint: "ws://127.0.0.1:1/bridge",
	Token:    "tok",
	Session:  "s1",
	Domains:  []string{"kosmi.io"},
}

func newPage(t *testing.T) *goja.Runtime {
	t.Helper()
	vm := goja.New()
	_, err := vm.RunString(pageStub)
	require.NoError(t, err)
	return vm
}

func eval(t *testing.T, vm *goja.Runtime, src string) goja.Value {
	t.Helper()
	v, err := vm.RunString(src)
	require.NoError(t, err, src)
	return v
}

func inject(t *testing.T, vm *goja.Runtime) {
	t.Helper()
	eval(t, vm, Script(testScriptConfig))
}

// flushed opens the page socket and decodes everything the script sent.
func flushed(t *testing.T, vm *goja.Runtime) []Message {
	t.Helper()
	eval(t, vm, "openSockets()")
	var raw []string
	require.NoError(t, json.Unmarshal([]byte(eval(t, vm, "sentMessages()").String()), &raw))
	out := make([]Message, 0, len(raw))
	for _, r := range raw {
		m, err := Decode([]byte(r))
		require.NoError(t, err, r)
		out = append(out, m)
	}
	return out
}

func ofKind(msgs []Message, kind Kind) []Message {
	var out []Message
	for _, m := range msgs {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func TestScriptRelaysNotificationOnce(t *testing.T) {
	vm := newPage(t)
	inject(t, vm)
	inject(t, vm)

	eval(t, vm, `
var n = new Notification('Alice joined', { body: 'Room: Movie Night', tag: 't' });
n.addEventListener('click', function () {});
n.close();
`)
	msgs := flushed(t, vm)

	notes := ofKind(msgs, KindShowNotification)
	require.Len(t, notes, 1)
	req := notes[0].Notification()
	assert.Equal(t, "Alice joined", req.Title)
	assert.Equal(t, "Room: Movie Night", req.Body)
	assert.JSONEq(t, `"t"`, string(req.Extra["tag"]))

	ready := ofKind(msgs, KindPageReady)
	require.Len(t, ready, 1)
	assert.Equal(t, "https://app.kosmi.io/room/abc", ready[0].URL)

	assert.EqualValues(t, 1, eval(t, vm, "realBuilt").Export())
	assert.EqualValues(t, 1, eval(t, vm, "n.listeners.length").Export())
	assert.Equal(t, true, eval(t, vm, "n.closed").Export())
	assert.Equal(t, "Room: Movie Night", eval(t, vm, "n.body").Export())
	assert.Equal(t, "granted", eval(t, vm, "Notification.permission").Export())
	assert.Equal(t, true, eval(t, vm, "n instanceof OriginalNotification").Export())
	assert.Equal(t, "s1", eval(t, vm, "kosmiDesktop.session").Export())
	assert.Len(t, eval(t, vm, "sockets").Export(), 1)
}

func TestScriptSurvivesHostileNotificationOptions(t *testing.T) {
	vm := newPage(t)
	inject(t, vm)

	eval(t, vm, `
var thrown = [];
function attempt(f) {
  try { f(); } catch (e) { thrown.push(String(e)); }
}
var loop = { body: 'b' };
loop.self = loop;
attempt(function () { new Notification('getter', { get body() { throw new Error('boom'); } }); });
attempt(function () { new Notification('circular', loop); });
attempt(function () { new Notification({ toString: function () { throw new Error('title'); } }); });
attempt(function () { kosmiDesktop.showNotification('direct', { get body() { throw new Error('boom'); } }); });
`)
	assert.Empty(t, eval(t, vm, "thrown").Export())

	notes := ofKind(flushed(t, vm), KindShowNotification)
	require.Len(t, notes, 3)
	assert.Equal(t, "getter", notes[0].Title)
	assert.Empty(t, notes[0].Notification().Body)
	assert.Equal(t, "circular", notes[1].Title)
	assert.Equal(t, "b", notes[1].Notification().Body)
	assert.Equal(t, "direct", notes[2].Title)
}

func TestScriptStaysOutOfForeignPages(t *testing.T) {
	vm := newPage(t)
	eval(t, vm, "location.href = 'https://evil.example/'; location.hostname = 'evil.example';")
	inject(t, vm)

	assert.Equal(t, "undefined", eval(t, vm, "typeof kosmiDesktop").Export())
	assert.Equal(t, true, eval(t, vm, "Notification === OriginalNotification").Export())
	assert.Empty(t, flushed(t, vm))
}

func TestScriptWithoutNotificationConstructor(t *testing.T) {
	vm := newPage(t)
	eval(t, vm, "window.Notification = undefined;")
	inject(t, vm)

	assert.Equal(t, "undefined", eval(t, vm, "typeof Notification").Export())
	eval(t, vm, "kosmiDesktop.showNotification('Bob left', { body: 'Room: Den' })")

	notes := ofKind(flushed(t, vm), KindShowNotification)
	require.Len(t, notes, 1)
	assert.Equal(t, "Room: Den", notes[0].Notification().Body)
}

func TestApplyMutesAudioContexts(t *testing.T) {
	vm := newPage(t)
	inject(t, vm)

	eval(t, vm, `
var early = new AudioContext();
var paused = new AudioContext();
paused.suspend();
var gone = new AudioContext();
gone.close();
kosmiDesktop.apply({ muted: true });
var late = new AudioContext();
`)
	assert.Equal(t, "suspended", eval(t, vm, "early.state").Export())
	assert.Equal(t, "suspended", eval(t, vm, "late.state").Export())
	assert.EqualValues(t, 1, eval(t, vm, "paused.suspends").Export())
	assert.EqualValues(t, 0, eval(t, vm, "gone.suspends").Export())

	eval(t, vm, "kosmiDesktop.apply({ muted: false });")
	assert.Equal(t, "running", eval(t, vm, "early.state").Export())
	assert.Equal(t, "running", eval(t, vm, "late.state").Export())
	assert.EqualValues(t, 0, eval(t, vm, "paused.resumes").Export())
	assert.Equal(t, "suspended", eval(t, vm, "paused.state").Export())
}
