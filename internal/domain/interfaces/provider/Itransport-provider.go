package Iprovider

import "context"

// ITransportProvider abstracts the origin of a call and its audio stream.
// The engine never branches on the concrete transport; the simulated and
// carrier implementations expose the same contract.
type ITransportProvider interface {
	Name() string
	PlaceCall(ctx context.Context, sessionID string, phoneNumber string) error
	SendAudio(sessionID string, audio []byte) error
	Hangup(sessionID string) error
}
