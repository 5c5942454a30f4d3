package lua

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/raniellyferreira/resp-server/protocol"
)

const testScript = `
local counter = 0

function handle(name, args)
  if name == "PING" then
    return redis.status_reply("PONG")
  elseif name == "ECHO" then
    return args[1]
  elseif name == "NUM" then
    return 42.9
  elseif name == "NEG" then
    return -7
  elseif name == "ARGC" then
    return #args
  elseif name == "LIST" then
    return {1, "two", {3}, false, "after"}
  elseif name == "TRUE" then
    return true
  elseif name == "NIL" then
    return nil
  elseif name == "FAIL" then
    return redis.error_reply("ERR custom failure")
  elseif name == "RAISE" then
    error("something broke")
  elseif name == "INCR" then
    counter = counter + 1
    return counter
  elseif name == "LOG" then
    redis.log(redis.LOG_WARNING, "from", "script")
    return redis.status_reply("OK")
  elseif name == "MULTILINE" then
    return redis.error_reply("ERR line one\nline two")
  elseif name == "FUNC" then
    return handle
  elseif name == "LOOP" then
    local t = {}
    t[1] = t
    return t
  elseif name == "SPIN" then
    while true do end
  end
  return redis.error_reply("ERR unknown command '" .. name .. "'")
end
`

func command(name string, args ...string) *protocol.Command {
	cmd := &protocol.Command{Name: name, Args: make([][]byte, len(args))}
	for i, arg := range args {
		cmd.Args[i] = []byte(arg)
	}
	return cmd
}

func TestEngine_Replies(t *testing.T) {
	engine, err := CompileString("test.lua", testScript)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	tests := []struct {
		name     string
		cmd      *protocol.Command
		expected protocol.Frame
	}{
		{"status reply", command("PING"), protocol.SimpleString("PONG")},
		{"string", command("ECHO", "hello"), protocol.BulkStringFromString("hello")},
		{"number truncates", command("NUM"), protocol.Integer(42)},
		{"negative number", command("NEG"), protocol.Integer(-7)},
		{"args length", command("ARGC", "a", "b", "c"), protocol.Integer(3)},
		{
			"false inside an array",
			command("LIST"),
			protocol.Array(
				protocol.Integer(1),
				protocol.BulkStringFromString("two"),
				protocol.Array(protocol.Integer(3)),
				protocol.Null(),
				protocol.BulkStringFromString("after"),
			),
		},
		{"true", command("TRUE"), protocol.Integer(1)},
		{"nil", command("NIL"), protocol.Null()},
		{"error reply", command("FAIL"), protocol.Error("ERR custom failure")},
		{"error reply on one line", command("MULTILINE"), protocol.Error("ERR line one line two")},
		{"function converts to null", command("FUNC"), protocol.Null()},
		{"fallback", command("GET"), protocol.Error("ERR unknown command 'GET'")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.ServeRESP(context.Background(), tt.cmd)
			if !got.Equal(tt.expected) {
				t.Errorf("ServeRESP(%s) = %v, want %v", tt.cmd, got, tt.expected)
			}
		})
	}
}

func TestEngine_RuntimeError(t *testing.T) {
	engine, err := CompileString("test.lua", testScript)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	got := engine.ServeRESP(context.Background(), command("RAISE"))
	if !got.IsError() {
		t.Fatalf("ServeRESP(RAISE) = %v, want an error", got)
	}
	if !strings.HasPrefix(got.Error(), "ERR ") || !strings.Contains(got.Error(), "something broke") {
		t.Errorf("error = %q", got.Error())
	}
	if strings.ContainsAny(got.Error(), "\r\n") {
		t.Errorf("error %q spans lines", got.Error())
	}

	// the state is still usable
	if got := engine.ServeRESP(context.Background(), command("PING")); got.String() != "PONG" {
		t.Errorf("ServeRESP(PING) after error = %v", got)
	}
}

func TestEngine_CyclicTable(t *testing.T) {
	engine, err := CompileString("test.lua", testScript)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	got := engine.ServeRESP(context.Background(), command("LOOP"))
	if !got.IsError() || !strings.Contains(got.Error(), "depth") {
		t.Errorf("ServeRESP(LOOP) = %v, want a depth error", got)
	}
}

func TestEngine_ContextCancel(t *testing.T) {
	engine, err := CompileString("test.lua", testScript)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	got := engine.ServeRESP(ctx, command("SPIN"))
	if !got.IsError() {
		t.Fatalf("ServeRESP(SPIN) = %v, want an error", got)
	}

	if got := engine.ServeRESP(context.Background(), command("PING")); got.String() != "PONG" {
		t.Errorf("ServeRESP(PING) after cancel = %v", got)
	}
}

func TestEngine_StatesAreNotShared(t *testing.T) {
	engine, err := CompileString("test.lua", testScript, WithPoolSize(4))
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				got := engine.ServeRESP(context.Background(), command("INCR"))
				if got.Type != protocol.TypeInteger || got.Integer < 1 {
					t.Errorf("ServeRESP(INCR) = %v", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestEngine_CloseReleasesReturnedStates(t *testing.T) {
	engine, err := CompileString("test.lua", testScript)
	if err != nil {
		t.Fatal(err)
	}

	inFlight, err := engine.get()
	if err != nil {
		t.Fatal(err)
	}
	engine.Close()
	engine.put(inFlight)

	if n := len(engine.pool); n != 0 {
		t.Errorf("pool holds %d states after Close, want 0", n)
	}

	if got := engine.ServeRESP(context.Background(), command("PING")); got.String() != "PONG" {
		t.Errorf("ServeRESP(PING) after Close = %v", got)
	}
	if n := len(engine.pool); n != 0 {
		t.Errorf("pool holds %d states after a call on a closed engine, want 0", n)
	}
}

func TestEngine_LoadErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"syntax error", "function handle(", "parse"},
		{"missing handle", "local x = 1", "does not define a handle function"},
		{"handle not a function", "handle = 5", "does not define a handle function"},
		{"error at load", "error('boom')", "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString("bad.lua", tt.script)
			if err == nil {
				t.Fatal("CompileString() expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("CompileString() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/etc/resp/handler.lua", []byte(testScript), 0o644); err != nil {
		t.Fatal(err)
	}

	engine, err := LoadFile(fs, "/etc/resp/handler.lua")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	defer engine.Close()

	if got := engine.ServeRESP(context.Background(), command("ECHO", "x")); got.String() != "x" {
		t.Errorf("ServeRESP(ECHO) = %v", got)
	}

	if _, err := LoadFile(fs, "/missing.lua"); err == nil {
		t.Error("LoadFile() of a missing file expected error")
	}
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Debug(string, ...interface{}) {}
func (l *recordingLogger) Info(string, ...interface{})  {}
func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func TestEngine_Log(t *testing.T) {
	logger := &recordingLogger{}
	engine, err := CompileString("test.lua", testScript, WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	engine.ServeRESP(context.Background(), command("LOG"))

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.errors) != 1 || logger.errors[0] != "from script" {
		t.Errorf("logged %q, want [\"from script\"]", logger.errors)
	}
}
