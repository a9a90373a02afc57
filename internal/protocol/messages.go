// Package protocol defines the closed set of JSON messages exchanged with
// browser clients. Every message carries its kind in the "id" field.
package protocol

import (
	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/domain"
	"github.com/pion/webrtc/v4"
)

type Kind string

// Inbound kinds.
const (
	KindRegister             Kind = "register"
	KindCall                 Kind = "call"
	KindIncomingCallResponse Kind = "incomingCallResponse"
	KindStop                 Kind = "stop"
	KindOnIceCandidate       Kind = "onIceCandidate"
	KindPing                 Kind = "ping"
	KindStart                Kind = "start"
)

// Outbound kinds.
const (
	KindRegisterResponse  Kind = "registerResponse"
	KindCallResponse      Kind = "callResponse"
	KindIncomingCall      Kind = "incomingCall"
	KindStopCommunication Kind = "stopCommunication"
	KindIceCandidate      Kind = "iceCandidate"
	KindError             Kind = "error"
	KindPong              Kind = "pong"
	KindStartResponse     Kind = "startResponse"
)

type Inbound interface {
	Kind() Kind
}

type Register struct {
	Name string `json:"name"`
}

type Call struct {
	To       string `json:"to"`
	From     string `json:"from"`
	SDPOffer string `json:"sdpOffer" validate:"required"`
}

type IncomingCallResponse struct {
	From         string              `json:"from"`
	CallResponse domain.CallResponse `json:"callResponse"`
	SDPAnswer    string              `json:"sdpAnswer"`
}

type Stop struct{}

type OnIceCandidate struct {
	Candidate *webrtc.ICECandidateInit `json:"candidate" validate:"required"`
}

type Ping struct{}

type Start struct {
	SDPOffer string `json:"sdpOffer" validate:"required"`
}

func (Register) Kind() Kind             { return KindRegister }
func (Call) Kind() Kind                 { return KindCall }
func (IncomingCallResponse) Kind() Kind { return KindIncomingCallResponse }
func (Stop) Kind() Kind                 { return KindStop }
func (OnIceCandidate) Kind() Kind       { return KindOnIceCandidate }
func (Ping) Kind() Kind                 { return KindPing }
func (Start) Kind() Kind                { return KindStart }

type Outbound interface {
	Kind() Kind
}

type RegisterResponse struct {
	ID               Kind                   `json:"id"`
	Response         domain.Verdict         `json:"response"`
	Message          string                 `json:"message,omitempty"`
	ICEConfiguration *core.IceConfiguration `json:"iceConfiguration,omitempty"`
}

type CallResponse struct {
	ID        Kind           `json:"id"`
	Response  domain.Verdict `json:"response"`
	Message   string         `json:"message,omitempty"`
	SDPAnswer string         `json:"sdpAnswer,omitempty"`
}

type IncomingCall struct {
	ID       Kind   `json:"id"`
	From     string `json:"from"`
	SDPOffer string `json:"sdpOffer"`
}

type StopCommunication struct {
	ID      Kind   `json:"id"`
	Message string `json:"message,omitempty"`
}

type IceCandidate struct {
	ID        Kind                    `json:"id"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type Error struct {
	ID      Kind   `json:"id"`
	Message string `json:"message"`
}

type Pong struct {
	ID Kind `json:"id"`
}

type StartResponse struct {
	ID        Kind   `json:"id"`
	SDPAnswer string `json:"sdpAnswer"`
}

func (RegisterResponse) Kind() Kind  { return KindRegisterResponse }
func (CallResponse) Kind() Kind      { return KindCallResponse }
func (IncomingCall) Kind() Kind      { return KindIncomingCall }
func (StopCommunication) Kind() Kind { return KindStopCommunication }
func (IceCandidate) Kind() Kind      { return KindIceCandidate }
func (Error) Kind() Kind             { return KindError }
func (Pong) Kind() Kind              { return KindPong }
func (StartResponse) Kind() Kind     { return KindStartResponse }

func RegisterAccepted(cfg core.IceConfiguration) RegisterResponse {
	return RegisterResponse{ID: KindRegisterResponse, Response: domain.Accepted, ICEConfiguration: &cfg}
}

func RegisterRejected(reason string) RegisterResponse {
	return RegisterResponse{ID: KindRegisterResponse, Response: domain.Rejected, Message: reason}
}

func CallAccepted(sdpAnswer string) CallResponse {
	return CallResponse{ID: KindCallResponse, Response: domain.Accepted, SDPAnswer: sdpAnswer}
}

func CallRejected(reason string) CallResponse {
	return CallResponse{ID: KindCallResponse, Response: domain.Rejected, Message: reason}
}

func NewIncomingCall(from, sdpOffer string) IncomingCall {
	return IncomingCall{ID: KindIncomingCall, From: from, SDPOffer: sdpOffer}
}

func NewStopCommunication(reason string) StopCommunication {
	return StopCommunication{ID: KindStopCommunication, Message: reason}
}

func NewIceCandidate(c webrtc.ICECandidateInit) IceCandidate {
	return IceCandidate{ID: KindIceCandidate, Candidate: c}
}

func NewError(message string) Error {
	return Error{ID: KindError, Message: message}
}

func NewPong() Pong {
	return Pong{ID: KindPong}
}

func NewStartResponse(sdpAnswer string) StartResponse {
	return StartResponse{ID: KindStartResponse, SDPAnswer: sdpAnswer}
}
