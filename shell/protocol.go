// Package shell implements the line-oriented command protocol of spec.md
// §6.2. It is deliberately independent of how the bytes arrive — a
// net.Conn in cmd/blockfsd today, potentially a local REPL tomorrow — the
// same separation original_source/src/main.rs (stdin REPL) and
// original_source/src/bin/server.rs (same Command/dispatch, over a socket)
// draw between the command model and its transport.
package shell

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// HelpText is the multi-line help message spec.md's glossary specifies,
// reproduced verbatim.
const HelpText = `pwd              - prints active directory
ls               - lists all filenames in active directory
exit             - exits the application
help             - prints this message
cd    [dest]     - sets active directory to ` + "`dest`" + `
touch [filename] - creates a new file with content of the next entered line
mkdir [dirname]  - creates a new directory
cat   [filename] - prints the content of the file
rm    [name]     - removes file or directory`

// Welcome is the banner sent once per connection, before the first prompt.
const Welcome = "Welcome to a modest ext2-like file system! Type `help` to list its capabilities."

// Command is one parsed request line.
type Command struct {
	Verb string
	Arg  string
}

// ParseCommand splits line the same way the original implementation's
// Command::from_str does: on literal spaces, matching only the exact
// one-token or two-token shapes spec.md §6.2 lists. Anything else — extra
// arguments, an unrecognized verb, or an empty line — is an "Unknown
// command" error naming whatever the first token was.
func ParseCommand(line string) (Command, error) {
	parts := strings.Split(line, " ")

	if len(parts) == 1 {
		switch parts[0] {
		case "pwd", "ls", "exit", "help":
			return Command{Verb: parts[0]}, nil
		}
	}

	if len(parts) == 2 {
		switch parts[0] {
		case "cd", "touch", "mkdir", "cat", "rm":
			return Command{Verb: parts[0], Arg: parts[1]}, nil
		}
	}

	verb := ""
	if len(parts) > 0 {
		verb = parts[0]
	}
	return Command{}, fmt.Errorf("Unknown command: %s", verb)
}

// Engine is the subset of drivers/miniext2.Driver the shell needs. Defining
// it here, rather than depending on the concrete driver type, keeps this
// package reusable against anything that implements the same operations.
type Engine interface {
	Pwd() string
	Ls() ([]string, error)
	Touch(name string, content []byte) error
	Mkdir(name string) error
	Cat(name string) (string, error)
	Rm(name string) error
	Cd(name string) error
}

type flusher interface {
	Flush() error
}

// Session drives one client's command loop against an Engine. It is not
// safe for concurrent use; spec.md §5 assumes one session at a time per
// engine.
type Session struct {
	engine Engine
	reader *bufio.Reader
	writer io.Writer
}

// NewSession builds a Session reading commands from r and writing responses
// to w.
func NewSession(engine Engine, r io.Reader, w io.Writer) *Session {
	return &Session{
		engine: engine,
		reader: bufio.NewReader(r),
		writer: w,
	}
}

func (s *Session) flush() {
	if f, ok := s.writer.(flusher); ok {
		f.Flush()
	}
}

func (s *Session) readLine() (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// WriteWelcome sends the one-time connection banner.
func (s *Session) WriteWelcome() {
	fmt.Fprintln(s.writer, Welcome)
	s.flush()
}

// WritePrompt sends "<cur_dir> > " with no trailing newline, flushed.
func (s *Session) WritePrompt() {
	fmt.Fprintf(s.writer, "%s > ", s.engine.Pwd())
	s.flush()
}

// HandleOne reads and executes a single command line. It returns
// cont=false when the session should end: on "exit", or when the
// underlying reader returns an error (the connection dropped).
func (s *Session) HandleOne() (cont bool, err error) {
	line, err := s.readLine()
	if err != nil {
		return false, err
	}

	cmd, perr := ParseCommand(line)
	if perr != nil {
		fmt.Fprintln(s.writer, perr.Error())
		s.flush()
		return true, nil
	}

	switch cmd.Verb {
	case "pwd":
		fmt.Fprintln(s.writer, s.engine.Pwd())

	case "ls":
		names, err := s.engine.Ls()
		if err != nil {
			fmt.Fprintln(s.writer, err.Error())
		} else {
			fmt.Fprintln(s.writer, strings.Join(names, "\n"))
		}

	case "help":
		fmt.Fprintln(s.writer, HelpText)

	case "exit":
		return false, nil

	case "cd":
		if err := s.engine.Cd(cmd.Arg); err != nil {
			fmt.Fprintln(s.writer, err.Error())
		}

	case "touch":
		// The content line is always consumed, even if the command ends up
		// failing, per spec.md §6.2 / §9 open question 4.
		content, rerr := s.readLine()
		if rerr != nil {
			return false, rerr
		}
		if err := s.engine.Touch(cmd.Arg, []byte(content)); err != nil {
			fmt.Fprintln(s.writer, err.Error())
		}

	case "mkdir":
		if err := s.engine.Mkdir(cmd.Arg); err != nil {
			fmt.Fprintln(s.writer, err.Error())
		}

	case "cat":
		content, err := s.engine.Cat(cmd.Arg)
		if err != nil {
			fmt.Fprintln(s.writer, err.Error())
		} else {
			fmt.Fprintln(s.writer, content)
		}

	case "rm":
		if err := s.engine.Rm(cmd.Arg); err != nil {
			fmt.Fprintln(s.writer, err.Error())
		}
	}

	s.flush()
	return true, nil
}

// Run drives the full per-connection loop: welcome banner, then
// prompt/read/execute until HandleOne reports the session is over.
func (s *Session) Run() error {
	s.WriteWelcome()
	for {
		s.WritePrompt()
		cont, err := s.HandleOne()
		if !cont {
			return err
		}
	}
}
