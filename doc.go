// Package respserver runs a RESP2 server built on the protocol codec in
// package protocol.
//
// The codec decodes frames incrementally: bytes can arrive in chunks of any
// size, an incomplete frame is retried from its start once more data is
// buffered, and malformed or oversized input is reported as a fatal
// protocol error, after which the connection is closed.
//
// Basic usage:
//
//	inst, err := respserver.New(
//		respserver.WithAddr("127.0.0.1:6379"),
//		respserver.WithHandler(server.HandlerFunc(func(ctx context.Context, cmd *protocol.Command) protocol.Frame {
//			if cmd.Name == "PING" {
//				return protocol.SimpleString("PONG")
//			}
//			return server.UnknownCommand(cmd.Name)
//		})),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Close()
//
//	if err := inst.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// Handlers may also be written in Lua, see package lua. Prometheus metrics
// are provided by package metrics and file plus environment configuration
// by package config.
package respserver
