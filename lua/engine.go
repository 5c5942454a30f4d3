package lua

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/afero"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/raniellyferreira/resp-server/protocol"
)

// HandlerFunc is the global a script must define to answer commands:
//
//	function handle(name, args) ... end
const HandlerFunc = "handle"

const defaultPoolSize = 16

// Logger receives redis.log calls made by scripts. Fields are alternating
// key/value pairs.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger used by redis.log
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPoolSize sets how many idle Lua states are kept for reuse
func WithPoolSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.poolSize = n
		}
	}
}

// Engine answers commands by calling the handle function of a Lua script.
//
// The script is compiled once. Each call runs on a Lua state taken from a
// pool, so a state is never used by two goroutines at once; globals set by
// the script persist within a state but are not shared between states.
type Engine struct {
	name     string
	proto    *lua.FunctionProto
	logger   Logger
	poolSize int
	pool     chan *lua.LState

	mu     sync.Mutex
	closed bool
}

// Compile parses and compiles a script and checks that it defines handle
func Compile(name string, src io.Reader, opts ...Option) (*Engine, error) {
	chunk, err := parse.Parse(src, name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}

	e := &Engine{
		name:     name,
		proto:    proto,
		poolSize: defaultPoolSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.pool = make(chan *lua.LState, e.poolSize)

	// Fail at load time rather than on the first command
	L, err := e.newState()
	if err != nil {
		return nil, err
	}
	e.put(L)

	return e, nil
}

// CompileString compiles a script held in memory
func CompileString(name, src string, opts ...Option) (*Engine, error) {
	return Compile(name, strings.NewReader(src), opts...)
}

// LoadFile reads and compiles the script at path
func LoadFile(fs afero.Fs, path string, opts ...Option) (*Engine, error) {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return Compile(path, bytes.NewReader(src), opts...)
}

// ServeRESP calls handle(name, args) and converts its return value into a
// reply. A Lua runtime error becomes an error reply.
func (e *Engine) ServeRESP(ctx context.Context, cmd *protocol.Command) protocol.Frame {
	L, err := e.get()
	if err != nil {
		return protocol.Error("ERR " + sanitize(err.Error()))
	}

	reply, err := e.call(ctx, L, cmd)
	if err != nil {
		// A cancelled call can leave the state mid-execution
		if ctx.Err() != nil {
			L.Close()
		} else {
			e.put(L)
		}
		return protocol.Error("ERR " + sanitize(errorMessage(err)))
	}

	e.put(L)
	return reply
}

func (e *Engine) call(ctx context.Context, L *lua.LState, cmd *protocol.Command) (protocol.Frame, error) {
	L.SetContext(ctx)
	defer L.RemoveContext()
	defer L.SetTop(0)

	args := L.CreateTable(len(cmd.Args), 0)
	for i, arg := range cmd.Args {
		args.RawSetInt(i+1, lua.LString(arg))
	}

	err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal(HandlerFunc),
		NRet:    1,
		Protect: true,
	}, lua.LString(cmd.Name), args)
	if err != nil {
		return protocol.Frame{}, err
	}

	return toFrame(L.Get(-1), 0)
}

// Close releases the pooled Lua states. Calls still running return their
// state afterwards and it is closed then.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	for {
		select {
		case L := <-e.pool:
			L.Close()
		default:
			return
		}
	}
}

func (e *Engine) get() (*lua.LState, error) {
	select {
	case L := <-e.pool:
		return L, nil
	default:
		return e.newState()
	}
}

func (e *Engine) put(L *lua.LState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		L.Close()
		return
	}
	select {
	case e.pool <- L:
	default:
		L.Close()
	}
}

// newState runs the compiled chunk on a fresh state so its globals exist
func (e *Engine) newState() (*lua.LState, error) {
	L := lua.NewState()
	e.setupRedisAPI(L)

	L.Push(L.NewFunctionFromProto(e.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, fmt.Errorf("load %s: %s", e.name, errorMessage(err))
	}
	L.SetTop(0)

	if L.GetGlobal(HandlerFunc).Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("load %s: script does not define a %s function", e.name, HandlerFunc)
	}
	return L, nil
}

// setupRedisAPI installs the redis table with the reply helpers
func (e *Engine) setupRedisAPI(L *lua.LState) {
	redisTable := L.NewTable()
	L.SetFuncs(redisTable, map[string]lua.LGFunction{
		"status_reply": statusReply,
		"error_reply":  errorReply,
		"log":          e.redisLog,
	})
	redisTable.RawSetString("LOG_DEBUG", lua.LNumber(logDebug))
	redisTable.RawSetString("LOG_NOTICE", lua.LNumber(logNotice))
	redisTable.RawSetString("LOG_WARNING", lua.LNumber(logWarning))
	L.SetGlobal("redis", redisTable)
}

func statusReply(L *lua.LState) int {
	t := L.NewTable()
	t.RawSetString("ok", lua.LString(L.CheckString(1)))
	L.Push(t)
	return 1
}

func errorReply(L *lua.LState) int {
	t := L.NewTable()
	t.RawSetString("err", lua.LString(L.CheckString(1)))
	L.Push(t)
	return 1
}

const (
	logDebug = iota
	logNotice
	logWarning
)

// redisLog implements redis.log(level, message, ...)
func (e *Engine) redisLog(L *lua.LState) int {
	level := L.CheckInt(1)
	parts := make([]string, 0, L.GetTop()-1)
	for i := 2; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	if e.logger == nil {
		return 0
	}

	msg := strings.Join(parts, " ")
	switch level {
	case logDebug:
		e.logger.Debug(msg, "script", e.name)
	case logWarning:
		e.logger.Error(msg, "script", e.name)
	default:
		e.logger.Info(msg, "script", e.name)
	}
	return 0
}

// errorMessage drops the Lua stack trace from runtime errors
func errorMessage(err error) string {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return err.Error()
}

// sanitize keeps a message on one line so it can travel as a RESP error
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
