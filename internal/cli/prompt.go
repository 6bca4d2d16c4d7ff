package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// confirmYesNo asks a yes/no question on the terminal and reads a single
// key. Without a terminal on stdin the answer is no.
func confirmYesNo(question string) bool {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return false
	}

	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	state, err := term.MakeRaw(fd)
	if err != nil {
		// Raw mode unavailable: fall back to reading a line
		return readYesNo(os.Stdin)
	}
	defer term.Restore(fd, state)

	buf := make([]byte, 1)
	_, err = os.Stdin.Read(buf)
	fmt.Fprint(os.Stderr, "\r\n")
	return err == nil && (buf[0] == 'y' || buf[0] == 'Y')
}

// readYesNo reads one line from r and reports whether it is "y" or "yes".
func readYesNo(r io.Reader) bool {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// promptLine prints label (and the default in brackets) and returns the
// trimmed input, or def when the input is empty.
func promptLine(reader *bufio.Reader, out io.Writer, label, def string) string {
	if def != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}
