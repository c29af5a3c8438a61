package flotillaerrors

import (
	"context"
	"net/http"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestStatusFromError(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusFromError(nil))
	assert.Equal(t, http.StatusNotFound, StatusFromError(&ErrNotFound{Type: "agent", Value: "agent-1"}))
	assert.Equal(t, http.StatusConflict, StatusFromError(&ErrAlreadyExists{Type: "offer", Value: "offer-1"}))
	assert.Equal(t, http.StatusBadRequest, StatusFromError(&ErrInvalidArgument{Name: "machineIds", Value: ""}))
	assert.Equal(t, http.StatusConflict, StatusFromError(&ErrConflict{Action: "RESERVE", Message: "insufficient resources"}))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFromError(&ErrUnavailable{}))
	assert.Equal(t, http.StatusInternalServerError, StatusFromError(errors.New("boom")))
}

func TestStatusFromError_LooksThroughWrappedErrors(t *testing.T) {
	err := errors.Wrap(&ErrNotFound{Type: "machine", Value: "machine-1"}, "bring down failed")
	assert.Equal(t, http.StatusNotFound, StatusFromError(err))
}

func TestStatusFromError_ContextErrors(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, StatusFromError(context.DeadlineExceeded))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFromError(errors.Wrap(context.Canceled, "request aborted")))
}

func TestStatusFromError_Multierror(t *testing.T) {
	var err *multierror.Error
	err = multierror.Append(err, errors.New("untyped"))
	err = multierror.Append(err, &ErrInvalidArgument{Name: "machineIds", Value: "m1", Message: "duplicate"})
	err = multierror.Append(err, &ErrNotFound{Type: "machine", Value: "m2"})

	// The first typed error in the collection decides the status.
	assert.Equal(t, http.StatusBadRequest, StatusFromError(err))

	var untyped *multierror.Error
	untyped = multierror.Append(untyped, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, StatusFromError(untyped))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t,
		`resource "agent-1" of type "agent" does not exist`,
		(&ErrNotFound{Type: "agent", Value: "agent-1"}).Error())
	assert.Equal(t,
		`resource "machine-1" of type "machine" does not exist; machine is not part of a maintenance schedule`,
		(&ErrNotFound{Type: "machine", Value: "machine-1", Message: "machine is not part of a maintenance schedule"}).Error())
	assert.Equal(t,
		`resource "offer-1" of type "offer" already exists`,
		(&ErrAlreadyExists{Type: "offer", Value: "offer-1"}).Error())
	assert.Equal(t,
		`value "m1" is invalid for field "machineIds"; duplicate machine id`,
		(&ErrInvalidArgument{Name: "machineIds", Value: "m1", Message: "duplicate machine id"}).Error())
	assert.Equal(t,
		"conflict applying RESERVE: insufficient resources",
		(&ErrConflict{Action: "RESERVE", Message: "insufficient resources"}).Error())
	assert.Equal(t,
		"control plane unavailable",
		(&ErrUnavailable{}).Error())
}
