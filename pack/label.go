package pack

import (
	"github.com/google/uuid"

	"github.com/rstspack/rstspack/ondisk"
)

// Label wraps the on-disk pack label with the in-memory, non-persisted
// identity RSTS/E packs never carried on disk: a session UUID tagging one
// mount of this Pack handle, the way go-diskfs's ext4 filesystem carries a
// stable volume UUID, so repeated tool invocations against the same
// container can be told apart in logs.
type Label struct {
	ondisk.PackLabel
	VolumeUUID uuid.UUID
}

// PackID decodes the label's two RAD-50 words into the six-character pack
// identification string.
func (l Label) PackID() string {
	return ondisk.R50ToASCII(l.PckID[0]) + ondisk.R50ToASCII(l.PckID[1])
}
