package domain

import "strings"

// ProjectIDPrefix is the table prefix clients use for project references.
const ProjectIDPrefix = "projects:"

// ParseProjectID splits a "projects:<key>" reference and returns the key.
// Anything that does not split into exactly the projects prefix and one
// non-empty key is rejected with ErrBadProjectID.
func ParseProjectID(ref string) (string, error) {
	parts := strings.Split(ref, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || parts[0] != "projects" {
		return "", ErrBadProjectID
	}
	return parts[1], nil
}
