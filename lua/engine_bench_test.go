package lua

import (
	"context"
	"testing"
)

func BenchmarkEngine_StatusReply(b *testing.B) {
	engine, err := CompileString("bench.lua", testScript)
	if err != nil {
		b.Fatal(err)
	}
	defer engine.Close()

	cmd := command("PING")
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if reply := engine.ServeRESP(ctx, cmd); reply.IsError() {
			b.Fatal(reply.Error())
		}
	}
}

func BenchmarkEngine_ArrayReply(b *testing.B) {
	engine, err := CompileString("bench.lua", testScript)
	if err != nil {
		b.Fatal(err)
	}
	defer engine.Close()

	cmd := command("LIST")
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.ServeRESP(ctx, cmd)
	}
}

func BenchmarkEngine_Parallel(b *testing.B) {
	engine, err := CompileString("bench.lua", testScript)
	if err != nil {
		b.Fatal(err)
	}
	defer engine.Close()

	cmd := command("ECHO", "payload")

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			engine.ServeRESP(ctx, cmd)
		}
	})
}
