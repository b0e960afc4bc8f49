package services

import (
	"fmt"

	"github.com/avargasm/medchat-cli/internal/api"
)

// opError guarantees a user-facing message for a failed operation while
// keeping the api error inspectable. The message is derived in order:
// validation details, backend message, the per-operation fallback.
func opError(err error, fallback string) error {
	apiErr, ok := api.AsError(err)
	if !ok {
		return fmt.Errorf("%s: %w", fallback, err)
	}
	if apiErr.Msg == "" && len(apiErr.Details) == 0 {
		apiErr.Msg = fallback
	}
	return apiErr
}
