package library

import "errors"

// ErrUnsupportedType is returned for uploads that are neither a processable
// document nor an image.
var ErrUnsupportedType = errors.New("unsupported file type")
