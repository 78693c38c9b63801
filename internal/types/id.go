// README: Entity identifiers shared by all modules.
package types

import "github.com/google/uuid"

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

// Valid reports whether v parses as a UUID.
func (id ID) Valid() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}

// IDPtr returns nil for the empty id.
func IDPtr(id ID) *ID {
	if id == "" {
		return nil
	}
	return &id
}
