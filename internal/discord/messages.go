package discord

import (
	"errors"

	"pubg-rank-bot/internal/domain"
)

// userMessage turns a sync error into the short text shown in the channel.
func userMessage(err error) string {
	var partial *domain.PartialFailure
	if errors.As(err, &partial) {
		return "Stats updated, but your role could not be changed: " + userMessage(partial.Err)
	}

	switch {
	case errors.Is(err, domain.ErrUnregisteredAccount):
		return "This user is not registered yet"
	case errors.Is(err, domain.ErrTokenMissing):
		return "Could not open this dak.gg profile, check the account name"
	case errors.Is(err, domain.ErrFetchFailed):
		return "dak.gg is not answering right now, try again later"
	case errors.Is(err, domain.ErrParseFailed):
		return "Your dak.gg profile does not look up to date"
	case errors.Is(err, domain.ErrInsufficientPermission):
		return "I don't have permission to manage roles"
	case errors.Is(err, domain.ErrRoleNotFound):
		return "The tier role does not exist, ask an admin to run create"
	default:
		return "Something went wrong, try again later"
	}
}
