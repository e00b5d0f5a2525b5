package beastmaster

import "regexp"

var petNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z \-']*[A-Za-z]$`)

// ValidPetName reports whether name is 2-16 characters of letters, spaces,
// hyphens and apostrophes, starting and ending with a letter.
func ValidPetName(name string) bool {
	if len(name) < 2 || len(name) > 16 {
		return false
	}
	return petNameRe.MatchString(name)
}
