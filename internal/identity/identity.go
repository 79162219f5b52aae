// Package identity maps free-form character references onto stable ids.
package identity

import (
	"github.com/rcliao/worldstate/internal/keyword"
	"github.com/rcliao/worldstate/internal/model"
)

// UserPlaceholder is the chat-host macro for the operator's persona.
const UserPlaceholder = "{{user}}"

// Resolution is the outcome of resolving one token.
type Resolution struct {
	ID    string
	IsNew bool
	// IDMap is the map to keep using. It is the input map when nothing
	// changed and a fresh copy otherwise.
	IDMap map[string]string
}

// Resolve turns token into a canonical id. It never fails: an unknown token
// becomes a new id whose placeholder display name is the token itself.
// The input map is never modified.
//
// Order: operator aliases, exact id, display name, new id. An exact id wins
// over a display name so an id that happens to equal another character's
// name is not treated as a rename.
func Resolve(idMap map[string]string, token string) Resolution {
	if keyword.In(token, model.UserID, UserPlaceholder) {
		if name, ok := idMap[model.UserID]; ok && name == model.UserName {
			return Resolution{ID: model.UserID, IDMap: idMap}
		}
		out := with(idMap, model.UserID, model.UserName)
		return Resolution{ID: model.UserID, IDMap: out}
	}
	if _, ok := idMap[token]; ok {
		return Resolution{ID: token, IDMap: idMap}
	}
	if id, ok := ByName(idMap, token); ok {
		return Resolution{ID: id, IDMap: idMap}
	}
	return Resolution{ID: token, IsNew: true, IDMap: with(idMap, token, token)}
}

// ByName finds the id whose display name equals name. When several ids
// share a name the lexically smallest wins so the result is stable.
func ByName(idMap map[string]string, name string) (string, bool) {
	found := ""
	for id, n := range idMap {
		if n == name && (found == "" || id < found) {
			found = id
		}
	}
	return found, found != ""
}

// DisplayName returns the name recorded for id, or id itself.
func DisplayName(idMap map[string]string, id string) string {
	if n, ok := idMap[id]; ok && n != "" {
		return n
	}
	return id
}

// Rename sets the display name of id. The operator id keeps its fixed name.
// It reports whether the map changed.
func Rename(idMap map[string]string, id, name string) (map[string]string, bool) {
	if id == model.UserID || name == "" || idMap[id] == name {
		return idMap, false
	}
	return with(idMap, id, name), true
}

func with(idMap map[string]string, id, name string) map[string]string {
	out := make(map[string]string, len(idMap)+1)
	for k, v := range idMap {
		out[k] = v
	}
	out[id] = name
	return out
}
