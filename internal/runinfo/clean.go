package runinfo

import "strings"

// problemChars are replaced by "_" in sample lanes and descriptions.
const problemChars = " ./\\[]&;#+:)("

// cleanCharacters sanitizes a lane or description value to the restricted
// naming character set.
func cleanCharacters(x string) string {
	var b strings.Builder
	b.Grow(len(x))
	for _, r := range x {
		if strings.ContainsRune(problemChars, r) {
			b.WriteByte('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CleanName squeezes any run of non-alphanumeric characters down to a
// single underscore and trims a trailing one, producing file-safe names.
func CleanName(x string) string {
	var b []rune
	const safe = '_'
	for _, r := range x {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if alnum {
			b = append(b, r)
		} else if len(b) > 0 && b[len(b)-1] != safe {
			b = append(b, safe)
		}
	}
	if len(b) > 0 && b[len(b)-1] == safe {
		b = b[:len(b)-1]
	}
	return string(b)
}
