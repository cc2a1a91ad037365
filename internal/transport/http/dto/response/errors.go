package response

var (
	ErrInvalidRequestFormat = ErrorResponse{
		Status:  "error",
		Error:   "invalid_request",
		Details: "Invalid request format",
	}

	ErrInvalidSlotCount = ErrorResponse{
		Status:  "error",
		Error:   "invalid_slot_count",
		Details: "A grid draft must contain exactly 3 posts",
	}

	ErrDraftNotFound = ErrorResponse{
		Status: "error",
		Error:  "draft_not_found",
	}

	ErrAlreadyPosted = ErrorResponse{
		Status:  "error",
		Error:   "already_posted",
		Details: "Draft was already published; pass force=true to re-publish",
	}

	ErrStorageUnavailable = ErrorResponse{
		Status:  "error",
		Error:   "storage_unavailable",
		Details: "Image storage backend is unavailable",
	}
)
