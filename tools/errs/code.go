package errs

// 网关错误码
const (
	ServerInternalError = 500

	DecodeErrorCode    = 1001 // malformed frame, connection survives
	NotFoundErrorCode  = 1002 // registry lookup missed, benign race
	SendErrorCode      = 1003 // transport write failed, connection is dropped
	TransportErrorCode = 1004 // accept/upgrade/listen failure
	ConfigErrorCode    = 1005
)

var (
	ErrDecode    = NewCodeError(DecodeErrorCode, "DecodeError")
	ErrNotFound  = NewCodeError(NotFoundErrorCode, "NotFoundError")
	ErrSend      = NewCodeError(SendErrorCode, "SendError")
	ErrTransport = NewCodeError(TransportErrorCode, "TransportError")
	ErrConfig    = NewCodeError(ConfigErrorCode, "ConfigError")
)
