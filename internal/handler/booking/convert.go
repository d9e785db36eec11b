package booking

import (
	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
)

func parseUUID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.BadRequest("invalid "+field, err)
	}
	return id, nil
}
