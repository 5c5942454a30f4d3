package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	respserver "github.com/raniellyferreira/resp-server"
	"github.com/raniellyferreira/resp-server/protocol"
)

// frameRecord is the json and yaml shape of a decoded frame
type frameRecord struct {
	Offset int64  `json:"offset" yaml:"offset"`
	Type   string `json:"type" yaml:"type"`
	Value  any    `json:"value" yaml:"value"`
}

func decodeCommand(fs afero.Fs) *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a file of RESP2 frames, or stdin when FILE is -",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format: text, json, yaml",
				Value:   "text",
			},
			&cli.Int64Flag{
				Name:  "max-bulk-len",
				Usage: "Largest accepted bulk string, 0 for the default, negative for unlimited",
			},
			&cli.IntFlag{
				Name:  "max-depth",
				Usage: "Deepest accepted array nesting, 0 for the default, negative for unlimited",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return cli.Exit("decode: expected exactly one FILE argument", 2)
			}

			emit, err := newEmitter(c.App.Writer, c.String("output"))
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			var r io.Reader
			if path := c.Args().First(); path == "-" {
				r = os.Stdin
			} else {
				f, err := fs.Open(path)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				defer f.Close()
				r = f
			}

			limits := protocol.Limits{
				MaxBulkLen: c.Int64("max-bulk-len"),
				MaxDepth:   c.Int("max-depth"),
			}
			err = respserver.DecodeStream(r, limits, emit)

			var perr *respserver.ProtocolError
			if errors.As(err, &perr) {
				return cli.Exit(fmt.Sprintf("decode failed at offset %d: %s", perr.Offset, describe(perr.Err)), 1)
			}
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

func describe(err error) string {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return "input ends inside a frame"
	}
	return protocol.Reason(err)
}

func newEmitter(w io.Writer, format string) (respserver.FrameFunc, error) {
	switch format {
	case "text":
		return func(off int64, f protocol.Frame) error {
			_, err := fmt.Fprintf(w, "%d\t%s\t%s\n", off, f.Type, f)
			return err
		}, nil
	case "json":
		enc := json.NewEncoder(w)
		return func(off int64, f protocol.Frame) error {
			return enc.Encode(record(off, f))
		}, nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return func(off int64, f protocol.Frame) error {
			return enc.Encode(record(off, f))
		}, nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

func record(off int64, f protocol.Frame) frameRecord {
	return frameRecord{Offset: off, Type: f.Type.String(), Value: frameValue(f)}
}

// frameValue converts a frame into plain values: strings, int64, nil and
// slices
func frameValue(f protocol.Frame) any {
	if f.Type == protocol.TypeNull || f.IsNull {
		return nil
	}
	switch f.Type {
	case protocol.TypeInteger:
		return f.Integer
	case protocol.TypeArray:
		items := make([]any, len(f.Array))
		for i, item := range f.Array {
			items[i] = frameValue(item)
		}
		return items
	default:
		return string(f.Data)
	}
}
