package domain

import "errors"

var (
	ErrEmptyFile          = errors.New("no file uploaded")
	ErrInvalidFileName    = errors.New("invalid file name")
	ErrInvalidFileType    = errors.New("unsupported file type, allowed: csv, xlsx, xls, txt")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrMissingField       = errors.New("missing required field")

	ErrBatchNotFound    = errors.New("batch not found")
	ErrMerchantNotFound = errors.New("merchant not found")
	ErrFileNotFound     = errors.New("file not found")

	ErrMerchantExists = errors.New("merchant id already exists")

	ErrMalformedRow = errors.New("malformed row")
)
