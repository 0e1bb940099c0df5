package transport

import (
	"encoding/json"

	"github.com/photon-run/photon/internal/protocol"
)

func marshalNotification(n protocol.Notification) ([]byte, error) {
	return json.Marshal(n)
}
