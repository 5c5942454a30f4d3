package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
)

// ClientApp creates the resp-cli application
func ClientApp() *cli.App {
	return &cli.App{
		Name:      "resp-cli",
		Usage:     "Send commands to a RESP2 server",
		UsageText: "resp-cli [options] [command [args...]]",
		Version:   versionString(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Usage:   "Server host",
				Value:   "127.0.0.1",
				EnvVars: []string{"RESP_HOST"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Server port",
				Value:   6379,
				EnvVars: []string{"RESP_PORT"},
			},
		},
		Action: func(c *cli.Context) error {
			client := redis.NewClient(&redis.Options{
				Addr:            net.JoinHostPort(c.String("host"), strconv.Itoa(c.Int("port"))),
				Protocol:        2,
				DisableIdentity: true,
			})
			defer client.Close()

			if c.Args().Len() > 0 {
				return runCommand(c.Context, client, c.App.Writer, c.Args().Slice())
			}
			return repl(c.Context, client, os.Stdin, c.App.Writer)
		},
	}
}

// runCommand sends one command and prints the reply. Error replies are
// printed, not returned.
func runCommand(ctx context.Context, client *redis.Client, w io.Writer, args []string) error {
	cmdArgs := make([]interface{}, len(args))
	for i, a := range args {
		cmdArgs[i] = a
	}

	v, err := client.Do(ctx, cmdArgs...).Result()
	switch {
	case errors.Is(err, redis.Nil):
		v = nil
	case err != nil:
		var rerr redis.Error
		if !errors.As(err, &rerr) {
			return cli.Exit(err.Error(), 1)
		}
		v = rerr
	}

	_, err = fmt.Fprintln(w, formatReply(v, ""))
	return err
}

func repl(ctx context.Context, client *redis.Client, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprintf(w, "%s> ", client.Options().Addr)
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return scanner.Err()
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if err := runCommand(ctx, client, w, args); err != nil {
			return err
		}
		if strings.EqualFold(args[0], "quit") {
			return nil
		}
	}
}

// formatReply renders a reply the way redis-cli does
func formatReply(v interface{}, indent string) string {
	switch val := v.(type) {
	case nil:
		return "(nil)"
	case redis.Error:
		return "(error) " + val.Error()
	case int64:
		return "(integer) " + strconv.FormatInt(val, 10)
	case string:
		return strconv.Quote(val)
	case []interface{}:
		if len(val) == 0 {
			return "(empty array)"
		}
		width := len(strconv.Itoa(len(val)))
		var b strings.Builder
		for i, item := range val {
			prefix := fmt.Sprintf("%*d) ", width, i+1)
			if i > 0 {
				b.WriteString("\n")
				b.WriteString(indent)
			}
			b.WriteString(prefix)
			b.WriteString(formatReply(item, indent+strings.Repeat(" ", len(prefix))))
		}
		return b.String()
	default:
		return fmt.Sprint(val)
	}
}
