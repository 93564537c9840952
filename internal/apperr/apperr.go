// Package apperr defines the coded errors the HTTP layer turns into
// structured {code, message} responses.
package apperr

import "errors"

// Error is a machine-readable failure: a dotted code plus a human message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// New builds a coded error.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the code from err, or "" when err is not a coded error.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Standard codes. Not-found codes deliberately cover foreign-user access
// too, so IDs cannot be probed.
const (
	CodeDeviceNotFound       = "Device.NotFound"
	CodeBlockNotFound        = "Block.NotFound"
	CodeBlockTypeInvalid     = "Block.Type.Invalid"
	CodeUploadInvalidStatus  = "Block.Upload.InvalidStatus"
	CodeAssetClientMismatch  = "Asset.ClientId.Mismatch"
	CodeAssetSizeInvalid     = "Asset.Size.Invalid"
	CodeAssetSizeTooLarge    = "Asset.Size.TooLarge"
	CodeAssetUploadFailed    = "Asset.Upload.Failed"
	CodeAssetNotFound        = "Asset.NotFound"
	CodeDownloadTokenInvalid = "Asset.DownloadToken.Invalid"
)
