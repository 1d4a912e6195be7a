package proto

// Inbound event names.
const (
	EventJoin              = "join"
	EventDisconnect        = "disconnect"
	EventDraw              = "draw"
	EventLaser             = "laser"
	EventLayerToggle       = "layerToggle"
	EventLayerTransparency = "layerTransparency"
	EventLockModel         = "lockModel"
	EventRotate            = "rotate"
	EventSelectModel       = "selectModel"
	EventReset             = "reset"
	EventStartStream       = "startStream"
	EventSendOffer         = "sendOffer"
	EventSendCandidate     = "sendCandidate"
	EventSendAnswer        = "sendAnswer"

	// EventSendCanidate is the misspelled name older headset builds still emit.
	EventSendCanidate = "sendCanidate"
)

// Outbound event names. sendCanidateMessage keeps its historical spelling on the wire.
const (
	EventUserJoined               = "userJoined"
	EventUserLeft                 = "userLeft"
	EventDrawCommand              = "drawCommand"
	EventLaserCommand             = "laserCommand"
	EventLayerToggleCommand       = "layerToggleCommand"
	EventLayerTransparencyCommand = "layerTransparencyCommand"
	EventLockModelCommand         = "lockModelCommand"
	EventRotateCommand            = "rotateCommand"
	EventSelectModelCommand       = "selectModelCommand"
	EventResetCommand             = "resetCommand"
	EventStartStreamCommand       = "startStreamCommand"
	EventSendOfferMessage         = "sendOfferMessage"
	EventSendCandidateMessage     = "sendCanidateMessage"
	EventSendAnswerMessage        = "sendAnswerMessage"

	EventHandlerError = "handler_error"
)
