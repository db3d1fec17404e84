package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// linePrompter reads connection input from a line-oriented stream. An
// empty line or end of input cancels.
type linePrompter struct {
	in  io.Reader
	out io.Writer

	reader *bufio.Reader
}

func (p *linePrompter) PromptConnection(ctx context.Context, title, template string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if p.reader == nil {
		p.reader = bufio.NewReader(p.in)
	}

	fmt.Fprintf(p.out, "%s\n  %s\n> ", title, template)
	line, err := p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", false, err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false, nil
	}
	return line, true, nil
}
