package strconvx

// detectBase resolves base 0 for both parser flavors: 0x/0X hex, 0b/0B
// binary, 0o/0O octal, otherwise decimal. Unlike strconv, a bare leading
// zero stays decimal.
func detectBase(ps *string) int {
	s := *ps
	if len(s) >= 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			*ps = s[2:]
			return 16
		case 'b', 'B':
			*ps = s[2:]
			return 2
		case 'o', 'O':
			*ps = s[2:]
			return 8
		}
	}
	return 10
}
