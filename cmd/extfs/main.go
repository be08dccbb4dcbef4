package main

import (
	"bufio"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/kjorund/extfs/fsops"
	"github.com/kjorund/extfs/image"
	"github.com/kjorund/extfs/persistence"
)

func main() {
	app := &cli.App{
		Name:  "extfs",
		Usage: "a persistent, block-structured toy filesystem reached through an interactive shell",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "image",
				Usage: "path to the disk image file",
				Value: "data.dsk",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "format",
				Usage:  "wipe the image and write a fresh, empty filesystem",
				Action: formatImage,
			},
		},
		Action: runShell,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("extfs: %s", err)
	}
}

func formatImage(c *cli.Context) error {
	path := c.String("image")
	fs := fsops.New()
	if err := persistence.Save(path, fs.Img); err != nil {
		return fmt.Errorf("extfs: format: %w", err)
	}
	fmt.Printf("Formatting done, wrote %s\n", path)
	return nil
}

func runShell(c *cli.Context) error {
	path := c.String("image")

	fmt.Printf("Reading fs from %s ...\n", path)
	img, fresh, err := persistence.Load(path)
	if err != nil {
		return fmt.Errorf("extfs: %w", err)
	}
	if fresh {
		fmt.Println("File not found or version mismatch -- creating a new disk.")
	} else {
		fmt.Println("Reading done.")
	}

	fs := openFS(img, fresh)

	sh := &shell{fs: fs, path: path, out: os.Stdout}
	sh.run(os.Stdin)
	return nil
}

// shell is the REPL loop described in spec.md §6: a prompt, a quote-aware
// line tokenizer, and dispatch to one fsops.FS method per command.
type shell struct {
	fs   *fsops.FS
	path string
	out  *os.File
}

func (s *shell) run(in *os.File) {
	scanner := bufio.NewScanner(in)

	fmt.Fprint(s.out, ">> ")
	for scanner.Scan() {
		line := scanner.Text()

		args, err := tokenize(line)
		if err != nil {
			fmt.Fprintln(s.out, "ERR: Quotes not balanced.")
			fmt.Fprint(s.out, ">> ")
			continue
		}
		if len(args) == 0 {
			fmt.Fprint(s.out, ">> ")
			continue
		}

		if s.dispatch(args) {
			return
		}
		fmt.Fprint(s.out, ">> ")
	}
}

// dispatch runs one command and reports whether the shell should exit.
func (s *shell) dispatch(args []string) bool {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "q":
		fmt.Fprintln(s.out, "Now quitting...")
		if err := persistence.Save(s.path, s.fs.Img); err != nil {
			fmt.Fprintf(os.Stderr, "Open %s failed. Will lose all changes.\n", s.path)
		}
		return true
	case "read":
		img, fresh, err := persistence.Load(s.path)
		if err != nil {
			fmt.Fprintf(s.out, "ERR: %s\n", err)
			return false
		}
		if fresh {
			fmt.Fprintln(s.out, "File not found -- creating a new disk.")
		}
		s.fs = openFS(img, fresh)
	case "write":
		fmt.Fprintln(s.out, "Now saving data to disk..")
		if err := persistence.Save(s.path, s.fs.Img); err != nil {
			fmt.Fprintf(os.Stderr, "Open %s failed. Will lose all changes.\n", s.path)
		} else {
			fmt.Fprintln(s.out, "Saving done.")
		}
	case "pwd":
		fmt.Fprintln(s.out, s.fs.Pwd())
	case "cd":
		s.reportErr(s.fs.Cd(arg(rest, 0)))
	case "mkdir":
		s.reportErr(s.fs.Mkdir(arg(rest, 0)))
	case "ls":
		s.ls(arg(rest, 0))
	case "rmdir":
		s.reportErr(s.fs.Rmdir(arg(rest, 0)))
	case "echo":
		s.reportErr(s.fs.Echo(arg(rest, 0), arg(rest, 1)))
	case "cat":
		s.cat(arg(rest, 0))
	case "rm":
		s.reportErr(s.fs.Rm(arg(rest, 0)))
	case "fmt":
		fmt.Fprintln(s.out, "Formatting disk...")
		s.fs.Fmt()
		fmt.Fprintln(s.out, "Formatting done...")
	case "dmp":
		for _, r := range s.fs.Dmp() {
			fmt.Fprintln(s.out, r.String())
		}
	default:
		s.usage()
	}
	return false
}

func (s *shell) ls(path string) {
	listing, err := s.fs.Ls(path)
	if err != nil {
		fmt.Fprintf(s.out, "ERR: %s\n", err)
		return
	}
	for _, e := range listing {
		if e.IsDir {
			fmt.Fprintf(s.out, "%s/\n", e.Name)
		} else {
			fmt.Fprintln(s.out, e.Name)
		}
	}
}

func (s *shell) cat(path string) {
	content, err := s.fs.Cat(path)
	if err != nil {
		fmt.Fprintf(s.out, "ERR: %s\n", err)
		return
	}
	fmt.Fprintln(s.out, content)
}

func (s *shell) reportErr(err error) {
	if err != nil {
		fmt.Fprintf(s.out, "ERR: %s\n", err)
	}
}

func (s *shell) usage() {
	fmt.Fprintln(s.out, "extfs: A persistent in-memory fs.")
	fmt.Fprintln(s.out, "commands:")
	fmt.Fprintln(s.out, "\tq: quit extfs.")
	fmt.Fprintln(s.out, "\tread: read from disk.")
	fmt.Fprintln(s.out, "\twrite: write to disk.")
	fmt.Fprintln(s.out, "\tpwd: print working directory.")
	fmt.Fprintln(s.out, "\tcd: change directory.")
	fmt.Fprintln(s.out, "\tmkdir: make directory.")
	fmt.Fprintln(s.out, "\tls: list directory.")
	fmt.Fprintln(s.out, "\techo: write to file.")
	fmt.Fprintln(s.out, "\tcat: show file.")
	fmt.Fprintln(s.out, "\trm: remove file.")
	fmt.Fprintln(s.out, "\tfmt: format disk.")
	fmt.Fprintln(s.out, "\tdmp: dump internal representation.")
}

// openFS builds an *fsops.FS from a persistence.Load result. A fresh load
// (missing file, short file, or version mismatch) carries no allocated root
// directory, so it must go through fsops.New (which formats and allocates
// root) rather than fsops.Open (which only assumes one already exists).
func openFS(img *image.Image, fresh bool) *fsops.FS {
	if fresh {
		return fsops.New()
	}
	return fsops.Open(img)
}

func arg(args []string, i int) string {
	if i >= len(args) {
		return ""
	}
	return args[i]
}
