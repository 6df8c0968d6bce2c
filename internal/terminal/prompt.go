package terminal

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Confirm asks a yes/no question on out and reads the answer from in. Only
// "y" or "yes" (any case) confirms. When clear is set the prompt and answer
// are erased afterwards so the transcript stays tidy.
func Confirm(in io.Reader, out io.Writer, question string, clear bool) bool {
	prompt := question + " [y/N]: "
	fmt.Fprint(out, prompt)
	ans, _ := bufio.NewReader(in).ReadString('\n')
	ans = strings.TrimSpace(ans)
	if clear {
		ClearPreviousLines(out, utf8.RuneCountInString(prompt)+utf8.RuneCountInString(ans))
	}
	switch strings.ToLower(ans) {
	case "y", "yes":
		return true
	}
	return false
}
