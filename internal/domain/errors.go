package domain

import (
	"errors"
	"fmt"
)

type DeliveryReason int

const (
	ReasonOther DeliveryReason = iota
	// ReasonForbidden means the bot is no longer a member of the target chat.
	ReasonForbidden
	ReasonTimeout
)

func (r DeliveryReason) String() string {
	switch r {
	case ReasonForbidden:
		return "forbidden"
	case ReasonTimeout:
		return "timeout"
	default:
		return "other"
	}
}

type DeliveryError struct {
	Reason DeliveryReason
	Code   int
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("delivery failed (%s, code %d): %v", e.Reason, e.Code, e.Err)
	}
	return fmt.Sprintf("delivery failed (%s): %v", e.Reason, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// DeliveryReasonOf extracts the reason from err, defaulting to ReasonOther.
func DeliveryReasonOf(err error) DeliveryReason {
	var derr *DeliveryError
	if errors.As(err, &derr) {
		return derr.Reason
	}
	return ReasonOther
}

func IsForbidden(err error) bool {
	return err != nil && DeliveryReasonOf(err) == ReasonForbidden
}

func IsTimeout(err error) bool {
	return err != nil && DeliveryReasonOf(err) == ReasonTimeout
}

type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
