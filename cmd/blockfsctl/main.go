// Command blockfsctl is the interactive client of spec.md §9 / §6.3: it
// connects to a running blockfsd, then pumps stdin to the socket and the
// socket to stdout concurrently until the connection closes. This is the Go
// translation of original_source/src/bin/client.rs's writer/reader thread
// pair, using sync/atomic in place of Rust's AtomicBool+SeqCst to let the
// reader goroutine signal the writer goroutine to stop once it sees EOF.
package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:      "blockfsctl",
		Usage:     "connect to a blockfsd server",
		ArgsUsage: "[host] [port]",
		Action:    run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	host := "127.0.0.1"
	port := "4242"

	switch c.Args().Len() {
	case 0:
	case 1:
		port = c.Args().Get(0)
	case 2:
		host = c.Args().Get(0)
		port = c.Args().Get(1)
	default:
		return fmt.Errorf("possible arguments: [optional host] [optional port]")
	}

	addr := net.JoinHostPort(host, port)
	fmt.Printf("connecting to %s\n", addr)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	// keepRunning is the shared flag the reader clears once it observes EOF
	// on the socket, telling the writer goroutine to stop after its next
	// blocking stdin read returns.
	var keepRunning atomic.Bool
	keepRunning.Store(true)

	done := make(chan struct{})

	go func() {
		defer close(done)
		reader := bufio.NewReader(conn)
		buf := make([]byte, 4096)
		for {
			n, err := reader.Read(buf)
			if n > 0 {
				os.Stdout.Write(buf[:n])
			}
			if err != nil {
				break
			}
		}
		keepRunning.Store(false)
		fmt.Println("Press Enter to exit")
	}()

	stdin := bufio.NewReader(os.Stdin)
	for keepRunning.Load() {
		line, err := stdin.ReadString('\n')
		if line != "" {
			if _, werr := conn.Write([]byte(line)); werr != nil {
				break
			}
		}
		if err != nil {
			if err != io.EOF {
				fmt.Fprintln(os.Stderr, "error while reading input:", err)
			}
			break
		}
	}

	<-done
	return nil
}
