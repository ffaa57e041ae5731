package core

import "errors"

var (
	ErrNotFound         = errors.New("teamsite: not found")
	ErrTemplateNotFound = errors.New("teamsite: template not found")
	ErrInvalidRoute     = errors.New("teamsite: route outside the output directory")
)

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrTemplateNotFound)
}
