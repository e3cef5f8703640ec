package control

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/jhu066/ijon-taliro/internal/dynamo"
)

// Serialize renders the sequence in the simulator's stdin format: one command
// per line, each line newline-terminated including the last.
func Serialize(seq dynamo.CommandSequence) []byte {
	var b strings.Builder
	b.Grow(len(seq) * 4)
	for _, c := range seq {
		b.WriteString(string(c))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// ReadSequence parses a command stream written by Serialize. Blank lines are
// ignored; unknown tokens are an error.
func ReadSequence(r io.Reader) (dynamo.CommandSequence, error) {
	var seq dynamo.CommandSequence
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		c := dynamo.Command(text)
		if !c.Valid() {
			return nil, fmt.Errorf("line %d: unknown command %q", line, text)
		}
		seq = append(seq, c)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return seq, nil
}
