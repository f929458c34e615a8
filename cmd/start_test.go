package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRunStart_Success(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("Start", mock.Anything).Return(nil)

	var buf bytes.Buffer
	err := runStart(context.Background(), mockClient, &buf)

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ Service started successfully")
	mockClient.AssertExpectations(t)
}

func TestRunStart_AlreadyRunning(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("Start", mock.Anything).Return(errors.New("service is already running"))

	var buf bytes.Buffer
	err := runStart(context.Background(), mockClient, &buf)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
	mockClient.AssertExpectations(t)
}

// TestRunStart_SpawnFailure covers the auto-spawn path failing for a reason
// other than "already running" (e.g. the daemon binary couldn't bind its
// control socket), which must still surface as a wrapped error rather than
// being mistaken for the already-running case by a caller pattern-matching
// on the message.
func TestRunStart_SpawnFailure(t *testing.T) {
	mockClient := new(MockClient)
	mockClient.On("Start", mock.Anything).Return(errors.New("bind: address already in use"))

	var buf bytes.Buffer
	err := runStart(context.Background(), mockClient, &buf)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start")
	assert.Empty(t, buf.String())
	mockClient.AssertExpectations(t)
}
