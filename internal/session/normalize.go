package session

import "strings"

var inputNormalizer = strings.NewReplacer(
	"\r\n", " ",
	"\r", " ",
	"\n", " ",
	";", " ; ",
)

// NormalizeInput flattens a client line for tools that read one statement
// list per line: line breaks become spaces and semicolons are padded.
func NormalizeInput(line string) string {
	return inputNormalizer.Replace(line)
}
