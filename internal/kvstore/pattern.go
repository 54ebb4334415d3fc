package kvstore

import "strings"

var (
	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
)

// likePrefix builds a SQL/N1QL LIKE pattern matching every key starting with
// prefix, using backslash as the escape character.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

// globPrefix builds a Redis MATCH pattern for keys starting with prefix.
func globPrefix(prefix string) string {
	return globEscaper.Replace(prefix) + "*"
}
