package order

import "fmt"

// State implements the state pattern for the order lifecycle. Each status
// knows the statuses it may advance to.
type State interface {
	Status() Status
	Allows(next Status) bool
	Terminal() bool
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }
func (pendingState) Allows(next Status) bool {
	return next == StatusReceived || next == StatusCancelled
}
func (pendingState) Terminal() bool { return false }

type receivedState struct{}

func (receivedState) Status() Status { return StatusReceived }
func (receivedState) Allows(next Status) bool {
	return next == StatusPrepared || next == StatusCancelled
}
func (receivedState) Terminal() bool { return false }

type preparedState struct{}

func (preparedState) Status() Status          { return StatusPrepared }
func (preparedState) Allows(next Status) bool { return next == StatusProofUploaded }
func (preparedState) Terminal() bool          { return false }

type proofUploadedState struct{}

func (proofUploadedState) Status() Status          { return StatusProofUploaded }
func (proofUploadedState) Allows(next Status) bool { return next == StatusDelivered }
func (proofUploadedState) Terminal() bool          { return false }

type deliveredState struct{}

func (deliveredState) Status() Status     { return StatusDelivered }
func (deliveredState) Allows(Status) bool { return false }
func (deliveredState) Terminal() bool     { return true }

type cancelledState struct{}

func (cancelledState) Status() Status     { return StatusCancelled }
func (cancelledState) Allows(Status) bool { return false }
func (cancelledState) Terminal() bool     { return true }

var states = map[Status]State{
	StatusPending:       pendingState{},
	StatusReceived:      receivedState{},
	StatusPrepared:      preparedState{},
	StatusProofUploaded: proofUploadedState{},
	StatusDelivered:     deliveredState{},
	StatusCancelled:     cancelledState{},
}

func StateOf(s Status) (State, error) {
	st, ok := states[s]
	if !ok {
		return nil, fmt.Errorf("order: unknown status %q", s)
	}
	return st, nil
}

// CanTransition reports whether from → to is an edge of the lifecycle.
func CanTransition(from, to Status) bool {
	st, err := StateOf(from)
	if err != nil {
		return false
	}
	return st.Allows(to)
}

// Cancellable reports whether an order in s may still be cancelled.
func Cancellable(s Status) bool { return CanTransition(s, StatusCancelled) }
