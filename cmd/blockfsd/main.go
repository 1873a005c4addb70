// Command blockfsd serves the shell protocol of spec.md §6.2 over TCP,
// mounting a single volume once at startup and driving one connection's
// shell loop at a time (spec.md §5) — the Go rendering of
// original_source/src/bin/server.rs, using urfave/cli/v2 for argument
// parsing the way the teacher's own cmd/main.go does for its single
// subcommand, and logrus for connection-lifecycle logging, which the
// engine and shell packages themselves deliberately stay free of.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	miniext2 "github.com/finn-oss/blockfs/drivers/miniext2"
	"github.com/finn-oss/blockfs/shell"
)

func main() {
	app := &cli.App{
		Name:      "blockfsd",
		Usage:     "serve the blockfs shell over TCP, one connection at a time",
		ArgsUsage: "[port]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "image",
				Usage: "path to the backing volume file",
				Value: "index.php",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("blockfsd exited")
	}
}

func run(c *cli.Context) error {
	port := "4242"
	if c.Args().Len() > 0 {
		port = c.Args().First()
	}

	imagePath := c.String("image")
	log := logrus.WithField("image", imagePath)

	f, err := os.OpenFile(imagePath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("open backing file %q: %w", imagePath, err)
	}
	defer f.Close()

	driver, err := miniext2.Mount(f)
	if err != nil {
		return fmt.Errorf("mount %q: %w", imagePath, err)
	}
	log.Info("volume mounted")

	addr := "0.0.0.0:" + port
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %q: %w", addr, err)
	}
	defer listener.Close()
	log.WithField("addr", addr).Info("listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.WithError(err).Error("accept failed")
			continue
		}
		serveConn(log, driver, conn)
	}
}

// serveConn drives a single connection's shell session to completion before
// returning, so only one client is ever served at a time, per spec.md §5.
func serveConn(log *logrus.Entry, driver *miniext2.Driver, conn net.Conn) {
	connLog := log.WithField("remote", conn.RemoteAddr().String())
	connLog.Info("connection accepted")
	defer func() {
		conn.Close()
		connLog.Info("connection closed")
	}()

	session := shell.NewSession(driver, conn, conn)
	if err := session.Run(); err != nil {
		connLog.WithError(err).Warn("session ended with error")
	}
}
