package lua

import (
	"errors"

	lua "github.com/yuin/gopher-lua"

	"github.com/raniellyferreira/resp-server/protocol"
)

var errReplyTooDeep = errors.New("reply nesting exceeds the maximum depth")

// toFrame converts a Lua value into a reply using the Redis scripting rules:
//
//	number        -> integer (truncated)
//	string        -> bulk string
//	true          -> integer 1
//	false, nil    -> null
//	{ok = s}      -> simple string
//	{err = s}     -> error
//	array table   -> array, up to the first nil
//
// Other values convert to null.
func toFrame(lv lua.LValue, depth int) (protocol.Frame, error) {
	switch v := lv.(type) {
	case lua.LNumber:
		return protocol.Integer(int64(v)), nil
	case lua.LString:
		return protocol.BulkStringFromString(string(v)), nil
	case lua.LBool:
		if v {
			return protocol.Integer(1), nil
		}
		return protocol.Null(), nil
	case *lua.LTable:
		return tableToFrame(v, depth)
	default:
		return protocol.Null(), nil
	}
}

func tableToFrame(t *lua.LTable, depth int) (protocol.Frame, error) {
	if ok, isString := t.RawGetString("ok").(lua.LString); isString {
		return protocol.SimpleString(sanitize(string(ok))), nil
	}
	if msg, isString := t.RawGetString("err").(lua.LString); isString {
		return protocol.Error(sanitize(string(msg))), nil
	}

	if depth >= protocol.DefaultMaxDepth {
		return protocol.Frame{}, errReplyTooDeep
	}

	var items []protocol.Frame
	for i := 1; ; i++ {
		item := t.RawGetInt(i)
		if item == lua.LNil {
			break
		}
		f, err := toFrame(item, depth+1)
		if err != nil {
			return protocol.Frame{}, err
		}
		items = append(items, f)
	}
	return protocol.Array(items...), nil
}
