package service

import "errors"

// Ошибки валидации: возвращаются до любой записи.
var (
	ErrEmptyMessage   = errors.New("message has no text and no images")
	ErrUploadFailed   = errors.New("no attachment could be uploaded")
	ErrBlocked        = errors.New("messaging between these users is blocked")
	ErrReportResolved = errors.New("report is resolved")
	ErrReportNotFound = errors.New("report not found")
	ErrForbidden      = errors.New("forbidden")
	ErrMessageDeleted = errors.New("message is deleted")
	ErrInvalidInput   = errors.New("invalid input")
)
