// Command crossingctl talks to a running crossingd over its TCP command
// port. With arguments it sends them as one command line and prints any
// feedback arriving within the wait window; without arguments it runs
// interactively, forwarding stdin lines and printing feedback as it comes.
package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "crossingctl"
	app.Usage = "send commands to a crossing controller"
	app.UsageText = "crossingctl [options] [command tokens...]\n\n" +
		"   crossingctl BZU            close the crossing\n" +
		"   crossingctl BAUF           open the crossing\n" +
		"   crossingctl 120 2000       move the primary actuator to 120 over 2s\n" +
		"   crossingctl M2 45          move the secondary actuator to 45\n" +
		"   crossingctl                interactive session"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "addr",
			Value: "localhost:4070",
			Usage: "address of the controller's command port",
		},
		cli.DurationFlag{
			Name:  "wait",
			Value: 500 * time.Millisecond,
			Usage: "how long a one-shot command listens for feedback",
		},
	}
	app.Action = func(c *cli.Context) error {
		conn, err := net.Dial("tcp", c.String("addr"))
		if err != nil {
			return fmt.Errorf("connect to %s: %w", c.String("addr"), err)
		}
		defer conn.Close()

		if c.NArg() == 0 {
			return interact(conn, os.Stdin, os.Stdout)
		}
		return oneShot(conn, strings.Join(c.Args(), " "), c.Duration("wait"), os.Stdout)
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// oneShot sends one command line and copies feedback to out until the wait
// window closes or the server disconnects.
func oneShot(conn net.Conn, line string, wait time.Duration, out io.Writer) error {
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return fmt.Errorf("send command: %w", err)
	}

	if wait <= 0 {
		return nil
	}
	conn.SetReadDeadline(time.Now().Add(wait))
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		fmt.Fprintln(out, scanner.Text())
	}
	// The deadline expiring is the normal way out.
	if err := scanner.Err(); err != nil && !os.IsTimeout(err) {
		return fmt.Errorf("read feedback: %w", err)
	}
	return nil
}

// interact forwards lines from in to the controller while printing every
// feedback line to out. It returns when the input closes.
func interact(conn net.Conn, in io.Reader, out io.Writer) error {
	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			fmt.Fprintln(out, scanner.Text())
		}
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if _, err := fmt.Fprintf(conn, "%s\n", scanner.Text()); err != nil {
			return fmt.Errorf("send command: %w", err)
		}
	}
	return scanner.Err()
}
