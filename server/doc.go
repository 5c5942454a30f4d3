// Package server accepts RESP2 connections over TCP and hands each decoded
// command to a Handler.
//
// Every connection runs in its own goroutine with its own protocol.Decoder.
// Pipelined commands are answered in order and the replies of one read are
// flushed together. A protocol error is answered with
// "-ERR Protocol error: <reason>" and the connection is closed, since a RESP
// stream cannot be resynchronized. Frames that decode but are not commands
// get an error reply and the connection stays open.
//
// The server is compatible with Redis clients such as
// github.com/redis/go-redis when they are configured for RESP2.
package server
