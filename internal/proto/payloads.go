package proto

import (
	"encoding/json"

	"github.com/vovakirdan/arview-server/internal/auth"
)

// Requests use pointer fields so a missing key can be told apart from a zero value.
// Each request normalizes into the value type that is broadcast to peers.

type DrawRequest struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
	Z *float64 `json:"z" validate:"required"`
}

type DrawData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (r *DrawRequest) Normalize() any {
	return DrawData{X: *r.X, Y: *r.Y, Z: *r.Z}
}

type LaserRequest struct {
	X       *float64 `json:"x" validate:"required"`
	Y       *float64 `json:"y" validate:"required"`
	Z       *float64 `json:"z" validate:"required"`
	LaserOn *bool    `json:"laserOn" validate:"required"`
}

type LaserData struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	LaserOn bool    `json:"laserOn"`
}

func (r *LaserRequest) Normalize() any {
	return LaserData{X: *r.X, Y: *r.Y, Z: *r.Z, LaserOn: *r.LaserOn}
}

type LayerToggleRequest struct {
	LayerID *string `json:"layerId" validate:"required"`
	Value   *bool   `json:"value" validate:"required"`
}

type LayerToggleData struct {
	LayerID string `json:"layerId"`
	Value   bool   `json:"value"`
}

func (r *LayerToggleRequest) Normalize() any {
	return LayerToggleData{LayerID: *r.LayerID, Value: *r.Value}
}

// LayerTransparencyRequest carries an opacity percentage.
type LayerTransparencyRequest struct {
	LayerID *string  `json:"layerId" validate:"required"`
	Value   *float64 `json:"value" validate:"required,gte=0,lte=100"`
}

type LayerTransparencyData struct {
	LayerID string  `json:"layerId"`
	Value   float64 `json:"value"`
}

func (r *LayerTransparencyRequest) Normalize() any {
	return LayerTransparencyData{LayerID: *r.LayerID, Value: *r.Value}
}

type LockModelRequest struct {
	Value *bool `json:"value" validate:"required"`
}

type LockModelData struct {
	Value bool `json:"value"`
}

func (r *LockModelRequest) Normalize() any {
	return LockModelData{Value: *r.Value}
}

// RotateRequest carries rotation angles in degrees.
type RotateRequest struct {
	Vertical   *float64 `json:"vertical" validate:"required,gte=-360,lte=360"`
	Horizontal *float64 `json:"horizontal" validate:"required,gte=-360,lte=360"`
}

type RotateData struct {
	Vertical   float64 `json:"vertical"`
	Horizontal float64 `json:"horizontal"`
}

func (r *RotateRequest) Normalize() any {
	return RotateData{Vertical: *r.Vertical, Horizontal: *r.Horizontal}
}

type SelectModelRequest struct {
	ModelID *string `json:"modelId" validate:"required"`
}

type SelectModelData struct {
	ModelID string `json:"modelId"`
}

func (r *SelectModelRequest) Normalize() any {
	return SelectModelData{ModelID: *r.ModelID}
}

// WebRTC signaling. The SDP and candidate values are relayed untouched.

type SendOfferRequest struct {
	Type  *string         `json:"type" validate:"required"`
	Offer json.RawMessage `json:"offer" validate:"present"`
}

type SendOfferData struct {
	Type  string          `json:"type"`
	Offer json.RawMessage `json:"offer"`
}

func (r *SendOfferRequest) Normalize() any {
	return SendOfferData{Type: *r.Type, Offer: r.Offer}
}

type SendCandidateRequest struct {
	Type      *string         `json:"type" validate:"required"`
	Candidate json.RawMessage `json:"candidate" validate:"present"`
}

type SendCandidateData struct {
	Type      string          `json:"type"`
	Candidate json.RawMessage `json:"candidate"`
}

func (r *SendCandidateRequest) Normalize() any {
	return SendCandidateData{Type: *r.Type, Candidate: r.Candidate}
}

// SendCanidateRequest is the legacy candidate shape. Receivers on those builds
// read the misspelled key, so it is broadcast unchanged.
type SendCanidateRequest struct {
	Type     *string         `json:"type" validate:"required"`
	Canidate json.RawMessage `json:"canidate" validate:"present"`
}

type SendCanidateData struct {
	Type     string          `json:"type"`
	Canidate json.RawMessage `json:"canidate"`
}

func (r *SendCanidateRequest) Normalize() any {
	return SendCanidateData{Type: *r.Type, Canidate: r.Canidate}
}

type SendAnswerRequest struct {
	Type   *string         `json:"type" validate:"required"`
	Answer json.RawMessage `json:"answer" validate:"present"`
}

type SendAnswerData struct {
	Type   string          `json:"type"`
	Answer json.RawMessage `json:"answer"`
}

func (r *SendAnswerRequest) Normalize() any {
	return SendAnswerData{Type: *r.Type, Answer: r.Answer}
}

// ICEServer is one entry of the ICE list handed to peers. Only urls goes on the wire.
type ICEServer struct {
	URLs []string `json:"urls"`
}

// StartStreamData is injected by the server; clients send no payload.
type StartStreamData struct {
	IceServers []ICEServer `json:"iceServers"`
}

// PresenceData is broadcast for join and disconnect.
type PresenceData struct {
	User   *auth.Identity `json:"user"`
	RoomID string         `json:"roomId"`
}
