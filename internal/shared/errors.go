package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrCacheMiss          = fmt.Errorf("cache miss")

	// Store errors
	ErrUserNotFound   = fmt.Errorf("user not found")
	ErrRecordNotFound = fmt.Errorf("record not found")

	// Pipeline errors
	ErrQuotaExceeded          = fmt.Errorf("monthly playlist quota exceeded")
	ErrTierLookupFailed       = fmt.Errorf("subscription tier lookup failed")
	ErrGenerationUnavailable  = fmt.Errorf("playlist generation unavailable")
	ErrNoTracksFound          = fmt.Errorf("no tracks found in catalog")
	ErrPlaylistCreateFailed   = fmt.Errorf("playlist creation failed")
	ErrAddTracksFailed        = fmt.Errorf("adding tracks to playlist failed")
	ErrCoverUploadFailed      = fmt.Errorf("cover upload failed")
	ErrCoverTooLarge          = fmt.Errorf("cover image exceeds size limit")
	ErrPersistenceFailed      = fmt.Errorf("playlist record could not be saved")
	ErrUsageAccountingFailed  = fmt.Errorf("usage accounting failed")
	ErrAuthExpired            = fmt.Errorf("access token expired")
	ErrAtomicIncrementMissing = fmt.Errorf("store has no atomic increment")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
