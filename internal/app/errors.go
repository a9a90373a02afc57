package app

import (
	"errors"

	"github.com/dkeye/Callbox/internal/domain"
)

var (
	ErrEmptyName          = domain.ErrUsernameEmpty
	ErrNameTooLong        = domain.ErrUsernameTooLong
	ErrNameTaken          = errors.New("name already registered")
	ErrUnknownPeer        = errors.New("unknown peer")
	ErrInvalidState       = errors.New("invalid state")
	ErrDelivery           = errors.New("transport delivery failure")
	ErrCredentialProvider = errors.New("credential provider failure")
	ErrBufferOverflow     = errors.New("candidate buffer overflow")
)
