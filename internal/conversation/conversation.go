// Package conversation provides the default interactive conversation
// callback (spec.md §4.7), installed by the orchestrator so policy
// scripts can prompt via the standard mechanism even when the host
// application did not preinstall one.
package conversation

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"

	"github.com/aras-services/pam-policy-bridge/internal/hostitem"
	"github.com/aras-services/pam-policy-bridge/internal/pamcode"
)

// Default is a hostapi.Handle-independent conversation callback: it reads
// from in/ttyFd and writes to out/errOut, rather than reaching for a
// particular terminal handle, so it can be driven by both a real
// controlling terminal and tests.
type Default struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
	// TTYFd is the file descriptor to toggle echo on for
	// PromptEchoOff messages (0, standard input, in the zero value). If it
	// does not refer to a terminal, echo toggling is skipped and the line
	// is read from In as-is.
	TTYFd int
}

// Converse implements the style dispatch from spec.md §4.7. On any
// failure mid-loop, all previously produced responses are zeroed before
// the error is returned — callers must not reuse a partial responses
// slice after an error.
func (d Default) Converse(msgs []hostitem.Message) (pamcode.Code, []hostitem.Response, error) {
	resps := make([]hostitem.Response, 0, len(msgs))
	reader := bufio.NewReader(d.In)

	fail := func() (pamcode.Code, []hostitem.Response, error) {
		for i := range resps {
			resps[i].Zero()
		}
		return pamcode.ConvErr, nil, nil
	}

	for _, m := range msgs {
		switch m.Style {
		case hostitem.PromptEchoOff:
			fmt.Fprint(d.ErrOut, m.Text)
			line, err := d.readLineNoEcho(reader)
			if err != nil {
				return fail()
			}
			resps = append(resps, hostitem.Response{Text: line, HasText: true})
		case hostitem.PromptEchoOn:
			fmt.Fprint(d.ErrOut, m.Text)
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				return fail()
			}
			resps = append(resps, hostitem.Response{Text: []byte(strings.TrimRight(line, "\r\n")), HasText: true})
		case hostitem.ErrorMsg:
			writeWithNewline(d.ErrOut, m.Text)
			resps = append(resps, hostitem.Response{})
		case hostitem.TextInfo:
			writeWithNewline(d.Out, m.Text)
			resps = append(resps, hostitem.Response{})
		default:
			return fail()
		}
	}
	return pamcode.Success, resps, nil
}

func (d Default) readLineNoEcho(r *bufio.Reader) ([]byte, error) {
	if term.IsTerminal(d.TTYFd) {
		line, err := term.ReadPassword(d.TTYFd)
		if err != nil {
			return nil, err
		}
		return line, nil
	}
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func writeWithNewline(w io.Writer, text string) {
	fmt.Fprint(w, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprint(w, "\n")
	}
}
