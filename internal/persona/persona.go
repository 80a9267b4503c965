// Package persona defines the companion personas and the selection quiz.
package persona

import (
	"github.com/companionlabs/companion/internal/domain"
)

// ID names one of the fixed companion personas.
type ID string

// The closed persona set, in declaration order. Ranking ties resolve by this
// order, so it must not be reordered.
const (
	Jill     ID = "jill"
	Zee      ID = "zee"
	Whiskers ID = "whiskers"
	Buddy    ID = "buddy"
	Sean     ID = "sean"
	Olivia   ID = "olivia"
	Arlo     ID = "arlo"
	Max      ID = "max"
	Frank    ID = "frank"
	Kai      ID = "kai"
	Sophia   ID = "sophia"
	Leo      ID = "leo"
	Dante    ID = "dante"
	Grace    ID = "grace"
	Alex     ID = "alex"
)

// All lists every persona in declaration order.
var All = []ID{
	Jill, Zee, Whiskers, Buddy, Sean, Olivia, Arlo, Max,
	Frank, Kai, Sophia, Leo, Dante, Grace, Alex,
}

// GenericAvatarURL is shown for every persona when the UI runs in simple mode.
const GenericAvatarURL = "/static/img/personas/generic.svg"

// Valid reports whether id belongs to the persona set.
func Valid(id ID) bool {
	for _, p := range All {
		if p == id {
			return true
		}
	}
	return false
}

// AvatarURL returns the image path for a persona under the given UI mode.
// Simple mode always uses the generic image.
func AvatarURL(id ID, mode domain.UIMode) string {
	if mode == domain.UIModeSimple || !Valid(id) {
		return GenericAvatarURL
	}
	return "/static/img/personas/" + string(id) + ".svg"
}

// DisplayName returns the persona name with the first letter upper-cased.
func DisplayName(id ID) string {
	s := string(id)
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
