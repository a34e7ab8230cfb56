package api

type (
	// SocketMessage is sent to monitor stream clients. Event messages
	// carry a MonitorEvent, subscribed messages carry the run's status
	SocketMessage struct {
		Type   string          `json:"type"`
		Event  *MonitorEvent   `json:"event,omitempty"`
		Status *InstanceStatus `json:"status,omitempty"`
	}

	// SubscribeRequest is sent by clients to narrow the monitor stream
	SubscribeRequest struct {
		Type  string        `json:"type"`
		Kinds []MonitorKind `json:"kinds,omitempty"`
	}
)

const (
	SocketSubscribe  = "subscribe"
	SocketSubscribed = "subscribed"
	SocketEvent      = "event"
	SocketEnded      = "ended"
)
