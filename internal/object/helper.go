package object

import (
	"bytes"
	"fmt"

	"eos/internal/util"
)

// FormatError renders a script error together with the offending source
// line, in the same margin-and-caret style the teacher's parser used for
// syntax errors.
func FormatError(src string, pos int, message string) string {
	var buf bytes.Buffer
	line, col := util.GetLineAndColumn(src, pos)
	fmt.Fprintf(&buf, "error: %s\n", message)
	buf.WriteString(util.GetContextLines(src, line, col))
	return buf.String()
}
