package cli

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/application/commands"
)

// maxLineSize bounds one JSON Lines record.
const maxLineSize = 8 << 20

// record is one input line.
type record struct {
	line int
	cmd  *commands.SyncRecordCommand
	err  error
}

// openInput opens path, or the command's stdin for "-".
func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// readRecords parses JSON Lines input. Blank lines are skipped; a line that
// fails to parse is returned with its error so callers can report it.
func readRecords(r io.Reader) ([]record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var out []record
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		cmd, err := commands.ParseSyncRecordCommand(raw)
		out = append(out, record{line: line, cmd: cmd, err: err})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
