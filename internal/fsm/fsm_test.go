package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriterStateString(t *testing.T) {
	cases := map[WriterState]string{
		WriterUninitialised: "UNINITIALISED",
		WriterInitialising:  "INITIALISING",
		WriterReady:         "READY",
		WriterSending:       "SENDING",
		WriterCompleted:     "COMPLETED",
		WriterState(99):     "UNKNOWN",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestReaderStateString(t *testing.T) {
	cases := map[ReaderState]string{
		ReaderUninitialised:    "UNINITIALISED",
		ReaderWaitingForWriter: "WAITING_FOR_WRITER",
		ReaderReady:            "READY",
		ReaderProcessing:       "PROCESSING",
		ReaderAcknowledged:     "ACKNOWLEDGED",
		ReaderState(99):        "UNKNOWN",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestReadyTokenNonZero(t *testing.T) {
	assert.NotZero(t, ReadyToken)
}
