// Package lua lets an operator answer commands with a Lua script.
//
// The script must define a global function
//
//	function handle(name, args)
//
// where name is the upper-cased command name and args is an array of
// strings. Its return value becomes the reply using the conversion rules of
// Redis scripting; redis.status_reply and redis.error_reply build the
// {ok=...} and {err=...} tables, and redis.log writes to the engine logger.
//
// An Engine implements server.Handler.
package lua
