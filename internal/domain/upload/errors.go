package upload

import "errors"

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNotAnImage      = errors.New("file is not a decodable image")
)
