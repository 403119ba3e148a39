package domain

import "errors"

var (
	ErrRoomNotFound            = errors.New("room not found")
	ErrCallEnded               = errors.New("call has ended")
	ErrTransportNotInitialized = errors.New("transport not initialized")
	ErrMediaAcquisitionFailed  = errors.New("media acquisition failed")
	ErrSignalingDecodeFailed   = errors.New("signaling decode failed")
)
